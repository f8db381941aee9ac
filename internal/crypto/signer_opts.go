package crypto

import (
	"crypto"
	"fmt"
)

// signatureHashes maps hash type classes to the native digests accepted for signatures.
var signatureHashes = map[string]crypto.Hash{
	"md5":        crypto.MD5,
	"sha1":       crypto.SHA1,
	"sha224":     crypto.SHA224,
	"sha256":     crypto.SHA256,
	"sha384":     crypto.SHA384,
	"sha512":     crypto.SHA512,
	"sha512-224": crypto.SHA512_224,
	"sha512-256": crypto.SHA512_256,
	"sha3-224":   crypto.SHA3_224,
	"sha3-256":   crypto.SHA3_256,
	"sha3-384":   crypto.SHA3_384,
	"sha3-512":   crypto.SHA3_512,
	"ripemd160":  crypto.RIPEMD160,
}

// signatureHash translates a hash type class to its native identifier.
func signatureHash(typeClass string) (crypto.Hash, error) {
	h, ok := signatureHashes[typeClass]
	if !ok || !h.Available() {
		return 0, newError("sign", typeClass, fmt.Errorf("%w: hash not supported for signatures", ErrUnsupportedValue))
	}
	return h, nil
}

// SignOptions holds configuration for signature operations.
type SignOptions struct {
	// Hash is the digest type class. Empty selects the key's default.
	Hash string

	// PSS selects RSA-PSS instead of PKCS#1 v1.5. Ignored for EC keys.
	PSS bool
}

// DefaultSignOptions returns the default signature options for a key.
// RSA uses PKCS#1 v1.5 with SHA-256; EC matches the digest to the curve size.
func DefaultSignOptions(k *AsymmetricKey) SignOptions {
	if k == nil || k.ec == nil {
		return SignOptions{Hash: "sha256"}
	}
	switch bits := k.NumBits(); {
	case bits <= 256:
		return SignOptions{Hash: "sha256"}
	case bits <= 384:
		return SignOptions{Hash: "sha384"}
	default:
		return SignOptions{Hash: "sha512"}
	}
}

// PKCS1SignOptions returns options for RSA PKCS#1 v1.5 (or plain ECDSA) over hash.
func PKCS1SignOptions(hash string) SignOptions {
	return SignOptions{Hash: hash}
}

// PSSSignOptions returns options for RSA-PSS over hash with salt length equal to the digest.
func PSSSignOptions(hash string) SignOptions {
	return SignOptions{Hash: hash, PSS: true}
}
