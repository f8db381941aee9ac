package crypto

import (
	"crypto"
	"crypto/hmac"
	"fmt"
	"hash"
	"io"
)

// MACAlgorithm is a custom keyed digest registered under BaseHMAC.
type MACAlgorithm struct {
	Name string
	Size int
	New  func(key []byte) (hash.Hash, error)
}

// HMACHasher is a digest engine bound to a type class and a secret key.
// The key is copied at construction and never exposed.
type HMACHasher struct {
	typeClass string
	native    bool
	size      int
	key       []byte
	newFn     func(key []byte) (hash.Hash, error)
}

// newHMACHasher resolves typeClass against the native keyed digest list, then the registry.
// An empty key is valid HMAC input (RFC 2104).
func newHMACHasher(p Provider, r *Registry, typeClass string, key []byte) (*HMACHasher, error) {
	if typeClass == "" {
		tc, err := r.DefaultTypeClass(BaseHMAC)
		if err != nil {
			return nil, err
		}
		typeClass = tc
	}

	k := make([]byte, len(key))
	copy(k, key)

	if h, ok := p.KeyedDigest(typeClass); ok {
		return nativeHMAC(typeClass, h, k), nil
	}

	impl, err := r.Resolve(BaseHMAC, typeClass)
	if err != nil {
		wipe(k)
		return nil, err
	}
	switch alg := impl.(type) {
	case crypto.Hash:
		if !alg.Available() {
			wipe(k)
			return nil, newError("hmac", typeClass, fmt.Errorf("%w: digest not linked", ErrUnsupportedTypeClass))
		}
		return nativeHMAC(typeClass, alg, k), nil
	case *MACAlgorithm:
		// Key-size errors surface at construction.
		if _, err := alg.New(k); err != nil {
			wipe(k)
			return nil, newError("hmac", typeClass, fmt.Errorf("%w: %w", ErrUnsupportedValue, err))
		}
		return &HMACHasher{typeClass: typeClass, size: alg.Size, key: k, newFn: alg.New}, nil
	default:
		wipe(k)
		return nil, newError("hmac", typeClass, fmt.Errorf("%w: %T is not a MAC algorithm", ErrClassNotOfExpectedType, impl))
	}
}

func nativeHMAC(typeClass string, h crypto.Hash, key []byte) *HMACHasher {
	return &HMACHasher{
		typeClass: typeClass,
		native:    true,
		size:      h.Size(),
		key:       key,
		newFn: func(k []byte) (hash.Hash, error) {
			return hmac.New(h.New, k), nil
		},
	}
}

// TypeClass returns the algorithm identifier.
func (h *HMACHasher) TypeClass() string { return h.typeClass }

// Size returns the MAC length in bytes.
func (h *HMACHasher) Size() int { return h.size }

// IsNative reports whether the MAC uses a native keyed digest.
func (h *HMACHasher) IsNative() bool { return h.native }

// Hash computes the MAC over src.
func (h *HMACHasher) Hash(src Source) (BinaryData, error) {
	if src == nil {
		return BinaryData{}, newError("hmac", h.typeClass, fmt.Errorf("%w: nil source", ErrMissingArgument))
	}
	rc, err := src.open()
	if err != nil {
		return BinaryData{}, newError("hmac", h.typeClass, err)
	}
	defer rc.Close()
	return h.HashReader(rc)
}

// HashString computes the MAC over the UTF-8 bytes of s.
func (h *HMACHasher) HashString(s string) (BinaryData, error) {
	return h.Hash(StringSource(s))
}

// HashBytes computes the MAC over b.
func (h *HMACHasher) HashBytes(b []byte) (BinaryData, error) {
	return h.Hash(BytesSource(b))
}

// HashFile streams the file at path through the MAC.
func (h *HMACHasher) HashFile(path string) (BinaryData, error) {
	return h.Hash(FileSource(path))
}

// HashReader streams r through the MAC.
func (h *HMACHasher) HashReader(r io.Reader) (BinaryData, error) {
	if h.key == nil {
		return BinaryData{}, newError("hmac", h.typeClass, fmt.Errorf("%w: key wiped", ErrMissingArgument))
	}
	m, err := h.newFn(h.key)
	if err != nil {
		return BinaryData{}, nativeError("hmac", err)
	}
	if _, err := io.Copy(m, r); err != nil {
		return BinaryData{}, newError("hmac", h.typeClass, fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return BinaryData{b: m.Sum(nil)}, nil
}

// Verify reports whether mac is the MAC of msg, in constant time.
func (h *HMACHasher) Verify(msg []byte, mac BinaryData) (bool, error) {
	got, err := h.HashBytes(msg)
	if err != nil {
		return false, err
	}
	return got.Equal(mac), nil
}

// Wipe zeroes the key. The hasher is unusable afterwards.
func (h *HMACHasher) Wipe() {
	wipe(h.key)
	h.key = nil
}
