package crypto

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Source is the input of a digest: a string, a byte buffer or a file.
type Source interface {
	open() (io.ReadCloser, error)
}

// StringSource hashes the UTF-8 bytes of a string.
type StringSource string

// BytesSource hashes a byte buffer.
type BytesSource []byte

// FileSource hashes the content of the file at the given path.
type FileSource string

func (s StringSource) open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s))), nil
}

func (s BytesSource) open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s)), nil
}

func (s FileSource) open() (io.ReadCloser, error) {
	f, err := os.Open(string(s))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrPersistence, string(s), err)
	}
	return f, nil
}

// HashAlgorithm is a custom digest registered under BaseHasher.
type HashAlgorithm struct {
	Name string
	Size int
	New  func() hash.Hash
}

// Hasher is a stateless digest engine bound to one type class.
// Native and custom algorithms share this one type; only the constructor differs.
type Hasher struct {
	typeClass string
	native    bool
	size      int
	newFn     func() hash.Hash
}

// newHasher resolves typeClass against the native digest table first, then the registry.
// An empty type class selects the registry default.
func newHasher(p Provider, r *Registry, typeClass string) (*Hasher, error) {
	if typeClass == "" {
		tc, err := r.DefaultTypeClass(BaseHasher)
		if err != nil {
			return nil, err
		}
		typeClass = tc
	}

	if h, ok := p.Digest(typeClass); ok {
		return nativeHasher(typeClass, h), nil
	}

	impl, err := r.Resolve(BaseHasher, typeClass)
	if err != nil {
		return nil, err
	}
	switch alg := impl.(type) {
	case crypto.Hash:
		if !alg.Available() {
			return nil, newError("hash", typeClass, fmt.Errorf("%w: digest not linked", ErrUnsupportedTypeClass))
		}
		return nativeHasher(typeClass, alg), nil
	case *HashAlgorithm:
		if alg.New == nil || alg.Size <= 0 {
			return nil, newError("hash", typeClass, fmt.Errorf("%w: incomplete hash algorithm", ErrClassNotOfExpectedType))
		}
		return &Hasher{typeClass: typeClass, size: alg.Size, newFn: alg.New}, nil
	default:
		return nil, newError("hash", typeClass, fmt.Errorf("%w: %T is not a hash algorithm", ErrClassNotOfExpectedType, impl))
	}
}

func nativeHasher(typeClass string, h crypto.Hash) *Hasher {
	return &Hasher{typeClass: typeClass, native: true, size: h.Size(), newFn: h.New}
}

// TypeClass returns the algorithm identifier.
func (h *Hasher) TypeClass() string { return h.typeClass }

// Size returns the digest length in bytes.
func (h *Hasher) Size() int { return h.size }

// IsNative reports whether the digest comes from the native table.
func (h *Hasher) IsNative() bool { return h.native }

// Hash digests src. Files are streamed, never loaded whole.
func (h *Hasher) Hash(src Source) (BinaryData, error) {
	if src == nil {
		return BinaryData{}, newError("hash", h.typeClass, fmt.Errorf("%w: nil source", ErrMissingArgument))
	}
	rc, err := src.open()
	if err != nil {
		return BinaryData{}, newError("hash", h.typeClass, err)
	}
	defer rc.Close()
	return h.HashReader(rc)
}

// HashString digests the UTF-8 bytes of s.
func (h *Hasher) HashString(s string) BinaryData {
	d := h.newFn()
	_, _ = io.WriteString(d, s)
	return BinaryData{b: d.Sum(nil)}
}

// HashBytes digests b.
func (h *Hasher) HashBytes(b []byte) BinaryData {
	d := h.newFn()
	_, _ = d.Write(b)
	return BinaryData{b: d.Sum(nil)}
}

// HashFile streams the file at path through the digest.
func (h *Hasher) HashFile(path string) (BinaryData, error) {
	return h.Hash(FileSource(path))
}

// HashReader streams r through the digest. A read failure is a persistence error.
func (h *Hasher) HashReader(r io.Reader) (BinaryData, error) {
	d := h.newFn()
	if _, err := io.Copy(d, r); err != nil {
		if !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return BinaryData{}, newError("hash", h.typeClass, err)
	}
	out := d.Sum(nil)
	if len(out) != h.size {
		return BinaryData{}, newError("hash", h.typeClass, fmt.Errorf("%w: digest is %d bytes, expected %d", ErrOperationFailed, len(out), h.size))
	}
	return BinaryData{b: out}, nil
}
