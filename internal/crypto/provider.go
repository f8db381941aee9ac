package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"
	"sort"

	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"

	_ "golang.org/x/crypto/blake2b"
	_ "golang.org/x/crypto/blake2s"
	_ "golang.org/x/crypto/md4"       //nolint:staticcheck // legacy digest kept for interoperability
	_ "golang.org/x/crypto/ripemd160" //nolint:staticcheck // legacy digest kept for interoperability
	_ "golang.org/x/crypto/sha3"
)

// Provider is the single seam to the underlying native cryptographic library.
// An alternate library is substituted by implementing this interface.
type Provider interface {
	// Name identifies the native library.
	Name() string

	// Digest returns the native unkeyed digest for name, if the library has one.
	Digest(name string) (crypto.Hash, bool)

	// KeyedDigest returns the native digest usable for HMAC under name.
	KeyedDigest(name string) (crypto.Hash, bool)

	// Digests lists the native digest names available on this platform.
	Digests() []string

	// Random fills b from the library's secure random source.
	Random(b []byte) error

	GenerateRSA(bits int) (*rsa.PrivateKey, error)
	GenerateEC(curve elliptic.Curve) (*ecdsa.PrivateKey, error)

	// SignRSA signs a digest with PKCS#1 v1.5, or RSA-PSS when pss is set.
	SignRSA(priv *rsa.PrivateKey, hash crypto.Hash, digest []byte, pss bool) ([]byte, error)
	VerifyRSA(pub *rsa.PublicKey, hash crypto.Hash, digest, sig []byte, pss bool) error
	SignEC(priv *ecdsa.PrivateKey, digest []byte) ([]byte, error)
	VerifyEC(pub *ecdsa.PublicKey, digest, sig []byte) bool

	// EncryptBlock runs one public-key encryption over a single block.
	EncryptBlock(pub *rsa.PublicKey, p Padding, block []byte) ([]byte, error)

	// DecryptBlock runs one private-key decryption over a single full-width block.
	DecryptBlock(priv *rsa.PrivateKey, p Padding, block []byte) ([]byte, error)
}

// nativeDigests is the digest table of the Go crypto library.
var nativeDigests = map[string]crypto.Hash{
	"md4":         crypto.MD4,
	"md5":         crypto.MD5,
	"sha1":        crypto.SHA1,
	"sha224":      crypto.SHA224,
	"sha256":      crypto.SHA256,
	"sha384":      crypto.SHA384,
	"sha512":      crypto.SHA512,
	"sha512-224":  crypto.SHA512_224,
	"sha512-256":  crypto.SHA512_256,
	"sha3-224":    crypto.SHA3_224,
	"sha3-256":    crypto.SHA3_256,
	"sha3-384":    crypto.SHA3_384,
	"sha3-512":    crypto.SHA3_512,
	"blake2s-256": crypto.BLAKE2s_256,
	"blake2b-256": crypto.BLAKE2b_256,
	"blake2b-384": crypto.BLAKE2b_384,
	"blake2b-512": crypto.BLAKE2b_512,
	"ripemd160":   crypto.RIPEMD160,
}

// nativeKeyedDigests lists digests with a native HMAC binding.
// MD4 and the BLAKE2 family are absent: BLAKE2 has its own keyed mode.
var nativeKeyedDigests = map[string]bool{
	"md5":        true,
	"sha1":       true,
	"sha224":     true,
	"sha256":     true,
	"sha384":     true,
	"sha512":     true,
	"sha512-224": true,
	"sha512-256": true,
	"sha3-224":   true,
	"sha3-256":   true,
	"sha3-384":   true,
	"sha3-512":   true,
	"ripemd160":  true,
}

// NativeProvider implements Provider over the Go standard crypto tree and x/crypto.
type NativeProvider struct {
	rand io.Reader
}

// Ensure NativeProvider implements Provider.
var _ Provider = (*NativeProvider)(nil)

// NewNativeProvider creates a provider reading randomness from random (crypto/rand if nil).
func NewNativeProvider(random io.Reader) *NativeProvider {
	if random == nil {
		random = rand.Reader
	}
	return &NativeProvider{rand: random}
}

func (p *NativeProvider) Name() string { return "go-crypto" }

func (p *NativeProvider) Digest(name string) (crypto.Hash, bool) {
	h, ok := nativeDigests[name]
	if !ok || !h.Available() {
		return 0, false
	}
	return h, true
}

func (p *NativeProvider) KeyedDigest(name string) (crypto.Hash, bool) {
	if !nativeKeyedDigests[name] {
		return 0, false
	}
	return p.Digest(name)
}

func (p *NativeProvider) Digests() []string {
	out := make([]string, 0, len(nativeDigests))
	for name, h := range nativeDigests {
		if h.Available() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (p *NativeProvider) Random(b []byte) error {
	if _, err := io.ReadFull(p.rand, b); err != nil {
		return nativeError("random", err)
	}
	return nil
}

func (p *NativeProvider) GenerateRSA(bits int) (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(p.rand, bits)
	if err != nil {
		return nil, nativeError("generate", err)
	}
	return priv, nil
}

func (p *NativeProvider) GenerateEC(curve elliptic.Curve) (*ecdsa.PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(curve, p.rand)
	if err != nil {
		return nil, nativeError("generate", err)
	}
	return priv, nil
}

func (p *NativeProvider) SignRSA(priv *rsa.PrivateKey, hash crypto.Hash, digest []byte, pss bool) ([]byte, error) {
	var (
		sig []byte
		err error
	)
	if pss {
		sig, err = rsa.SignPSS(p.rand, priv, hash, digest, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
			Hash:       hash,
		})
	} else {
		sig, err = rsa.SignPKCS1v15(p.rand, priv, hash, digest)
	}
	if err != nil {
		return nil, nativeError("sign", err)
	}
	return sig, nil
}

func (p *NativeProvider) VerifyRSA(pub *rsa.PublicKey, hash crypto.Hash, digest, sig []byte, pss bool) error {
	var err error
	if pss {
		err = rsa.VerifyPSS(pub, hash, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: hash})
	} else {
		err = rsa.VerifyPKCS1v15(pub, hash, digest, sig)
	}
	if err != nil {
		return nativeError("verify", err)
	}
	return nil
}

func (p *NativeProvider) SignEC(priv *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := ecdsa.SignASN1(p.rand, priv, digest)
	if err != nil {
		return nil, nativeError("sign", err)
	}
	return sig, nil
}

func (p *NativeProvider) VerifyEC(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	return ecdsa.VerifyASN1(pub, digest, sig)
}

func (p *NativeProvider) EncryptBlock(pub *rsa.PublicKey, pad Padding, block []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch pad.Scheme {
	case PaddingPKCS1:
		out, err = rsa.EncryptPKCS1v15(p.rand, pub, block)
	case PaddingOAEP:
		out, err = rsa.EncryptOAEP(pad.oaepHash().New(), p.rand, pub, block, nil)
	case PaddingSSLv23:
		var em []byte
		em, err = p.sslv23Pad(pub.Size(), block)
		if err == nil {
			out, err = rawEncrypt(pub, em)
		}
	case PaddingNone:
		if len(block) != pub.Size() {
			err = fmt.Errorf("data must be exactly %d bytes without padding, got %d", pub.Size(), len(block))
			break
		}
		out, err = rawEncrypt(pub, block)
	default:
		err = fmt.Errorf("unknown padding %d", pad.Scheme)
	}
	if err != nil {
		return nil, nativeError("encrypt", err)
	}
	return out, nil
}

func (p *NativeProvider) DecryptBlock(priv *rsa.PrivateKey, pad Padding, block []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch pad.Scheme {
	case PaddingPKCS1, PaddingSSLv23:
		// The SSLv23 marker bytes are valid non-zero PKCS#1 padding.
		out, err = rsa.DecryptPKCS1v15(nil, priv, block)
	case PaddingOAEP:
		out, err = rsa.DecryptOAEP(pad.oaepHash().New(), nil, priv, block, nil)
	case PaddingNone:
		out, err = rawDecrypt(priv, block)
	default:
		err = fmt.Errorf("unknown padding %d", pad.Scheme)
	}
	if err != nil {
		return nil, nativeError("decrypt", err)
	}
	return out, nil
}

// sslv23Pad builds a PKCS#1 v1.5 type 2 block whose last eight padding bytes are 0x03.
func (p *NativeProvider) sslv23Pad(k int, msg []byte) ([]byte, error) {
	if len(msg) > k-11 {
		return nil, rsa.ErrMessageTooLong
	}
	em := make([]byte, k)
	em[1] = 2
	ps := em[2 : k-len(msg)-1]
	if err := nonZeroRandom(p.rand, ps[:len(ps)-8]); err != nil {
		return nil, err
	}
	for i := len(ps) - 8; i < len(ps); i++ {
		ps[i] = 3
	}
	copy(em[k-len(msg):], msg)
	return em, nil
}

// nonZeroRandom fills b with random non-zero bytes.
func nonZeroRandom(r io.Reader, b []byte) error {
	if _, err := io.ReadFull(r, b); err != nil {
		return err
	}
	one := make([]byte, 1)
	for i := range b {
		for b[i] == 0 {
			if _, err := io.ReadFull(r, one); err != nil {
				return err
			}
			b[i] = one[0]
		}
	}
	return nil
}

// rawEncrypt computes em^e mod n, left-padded to the modulus width.
func rawEncrypt(pub *rsa.PublicKey, em []byte) ([]byte, error) {
	m := new(big.Int).SetBytes(em)
	if m.Cmp(pub.N) >= 0 {
		return nil, fmt.Errorf("message representative out of range")
	}
	c := new(big.Int).Exp(m, big.NewInt(int64(pub.E)), pub.N)
	return c.FillBytes(make([]byte, pub.Size())), nil
}

// rawDecrypt computes c^d mod n, left-padded to the modulus width.
func rawDecrypt(priv *rsa.PrivateKey, block []byte) ([]byte, error) {
	c := new(big.Int).SetBytes(block)
	if c.Cmp(priv.N) >= 0 {
		return nil, fmt.Errorf("ciphertext representative out of range")
	}
	m := new(big.Int).Exp(c, priv.D, priv.N)
	defer wipeBig(m)
	return m.FillBytes(make([]byte, priv.Size())), nil
}
