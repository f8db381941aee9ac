package crypto

import (
	"crypto"
	"fmt"
	"strings"
)

// PaddingScheme is one of the closed set of public-key padding variants.
type PaddingScheme int

const (
	PaddingNone PaddingScheme = iota
	PaddingPKCS1
	PaddingOAEP
	PaddingSSLv23
)

// pkcs1Overhead is the fixed PKCS#1 v1.5 (and SSLv23) per-block overhead.
const pkcs1Overhead = 11

// String returns the canonical scheme name.
func (s PaddingScheme) String() string {
	switch s {
	case PaddingNone:
		return "none"
	case PaddingPKCS1:
		return "pkcs1"
	case PaddingOAEP:
		return "pkcs1-oaep"
	case PaddingSSLv23:
		return "sslv23"
	default:
		return fmt.Sprintf("padding(%d)", int(s))
	}
}

// Padding selects a scheme and, for OAEP, the digest used inside the padding.
// A zero OAEPHash means SHA-1.
type Padding struct {
	Scheme   PaddingScheme
	OAEPHash crypto.Hash
}

// Common paddings.
var (
	NoPadding     = Padding{Scheme: PaddingNone}
	PKCS1Padding  = Padding{Scheme: PaddingPKCS1}
	OAEPPadding   = Padding{Scheme: PaddingOAEP, OAEPHash: crypto.SHA1}
	SSLv23Padding = Padding{Scheme: PaddingSSLv23}
)

// ParsePadding parses "none", "pkcs1", "oaep", "pkcs1-oaep", "oaep-sha256", "sslv23".
func ParsePadding(s string) (Padding, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "none", "no", "raw":
		return NoPadding, nil
	case "pkcs1", "pkcs1v15", "pkcs1-v1_5":
		return PKCS1Padding, nil
	case "oaep", "pkcs1-oaep", "oaep-sha1":
		return OAEPPadding, nil
	case "sslv23":
		return SSLv23Padding, nil
	}
	if rest, ok := strings.CutPrefix(name, "oaep-"); ok {
		h, ok := nativeDigests[rest]
		if !ok || !h.Available() {
			return Padding{}, fmt.Errorf("%w: oaep digest %q", ErrUnsupportedValue, rest)
		}
		return Padding{Scheme: PaddingOAEP, OAEPHash: h}, nil
	}
	return Padding{}, fmt.Errorf("%w: padding %q", ErrUnsupportedValue, s)
}

// String returns the padding name, including the OAEP digest when not SHA-1.
func (p Padding) String() string {
	if p.Scheme == PaddingOAEP && p.oaepHash() != crypto.SHA1 {
		for name, h := range nativeDigests {
			if h == p.OAEPHash {
				return "oaep-" + name
			}
		}
	}
	return p.Scheme.String()
}

func (p Padding) oaepHash() crypto.Hash {
	if p.OAEPHash == 0 {
		return crypto.SHA1
	}
	return p.OAEPHash
}

// Overhead returns the per-block overhead in bytes for encryption.
// OAEP costs 2*H+2 where H is the digest length of the configured OAEP hash.
func (p Padding) Overhead() (int, error) {
	switch p.Scheme {
	case PaddingNone:
		return 0, nil
	case PaddingPKCS1, PaddingSSLv23:
		return pkcs1Overhead, nil
	case PaddingOAEP:
		h := p.oaepHash()
		if !h.Available() {
			return 0, fmt.Errorf("%w: oaep digest %v not available", ErrUnsupportedValue, h)
		}
		return 2*h.Size() + 2, nil
	default:
		return 0, fmt.Errorf("%w: padding %d", ErrUnsupportedValue, int(p.Scheme))
	}
}

// ChunkSize returns the input chunk size for one public-key operation.
// Encryption accepts floor(numBits/8) - overhead bytes; decryption always consumes one
// full ciphertext block, the modulus width. The two agree for byte-aligned moduli.
// A non-positive size is a configuration error raised here, before any native call.
func ChunkSize(numBits int, p Padding, encrypt bool) (int, error) {
	if numBits <= 0 {
		return 0, newError("chunk-size", "", fmt.Errorf("%w: key size %d", ErrUnsupported, numBits))
	}
	if !encrypt {
		return (numBits + 7) / 8, nil
	}
	block := numBits / 8
	overhead, err := p.Overhead()
	if err != nil {
		return 0, newError("chunk-size", "", err)
	}
	size := block - overhead
	if size <= 0 {
		return 0, newError("chunk-size", "", fmt.Errorf("%w: %d-bit key too small for %s padding (%d bytes overhead)", ErrUnsupported, numBits, p, overhead))
	}
	return size, nil
}
