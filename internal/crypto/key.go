package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"math/big"
)

// Key family type classes.
const (
	KeyTypeRSA = "rsa"
	KeyTypeEC  = "ec"
)

// rsaKeyData is the RSA arm of AsymmetricKey. priv is nil for a public-only key.
type rsaKeyData struct {
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey
}

// ecKeyData is the EC arm of AsymmetricKey. priv is nil for a public-only key.
type ecKeyData struct {
	pub   *ecdsa.PublicKey
	priv  *ecdsa.PrivateKey
	curve EcCurve
}

// AsymmetricKey is a handle over an RSA or EC public key, optionally with its
// private half. Exactly one of rsa and ec is set.
type AsymmetricKey struct {
	rsa *rsaKeyData
	ec  *ecKeyData
	ctx *Context
}

func newRSAKey(ctx *Context, pub *rsa.PublicKey, priv *rsa.PrivateKey) *AsymmetricKey {
	if priv != nil {
		pub = &priv.PublicKey
	}
	return &AsymmetricKey{rsa: &rsaKeyData{pub: pub, priv: priv}, ctx: ctx}
}

func newECKey(ctx *Context, pub *ecdsa.PublicKey, priv *ecdsa.PrivateKey, curve EcCurve) *AsymmetricKey {
	if priv != nil {
		pub = &priv.PublicKey
	}
	return &AsymmetricKey{ec: &ecKeyData{pub: pub, priv: priv, curve: curve}, ctx: ctx}
}

// TypeClass returns "rsa" or "ec".
func (k *AsymmetricKey) TypeClass() string {
	if k.rsa != nil {
		return KeyTypeRSA
	}
	return KeyTypeEC
}

// NumBits returns the modulus length for RSA or the field size for EC.
func (k *AsymmetricKey) NumBits() int {
	switch {
	case k.rsa != nil:
		return k.rsa.pub.N.BitLen()
	case k.ec != nil:
		return k.ec.pub.Curve.Params().BitSize
	}
	return 0
}

// HasPrivate reports whether the private half is present.
func (k *AsymmetricKey) HasPrivate() bool {
	switch {
	case k.rsa != nil:
		return k.rsa.priv != nil
	case k.ec != nil:
		return k.ec.priv != nil
	}
	return false
}

// Public returns the public-only counterpart. A public key returns itself.
func (k *AsymmetricKey) Public() *AsymmetricKey {
	if !k.HasPrivate() {
		return k
	}
	if k.rsa != nil {
		pub := &rsa.PublicKey{N: k.rsa.pub.N, E: k.rsa.pub.E}
		return newRSAKey(k.ctx, pub, nil)
	}
	pub := &ecdsa.PublicKey{Curve: k.ec.pub.Curve, X: k.ec.pub.X, Y: k.ec.pub.Y} //nolint:staticcheck // legacy fields carry non-NIST curves
	return newECKey(k.ctx, pub, nil, k.ec.curve)
}

// Sign hashes msg with the hash type class and signs the digest.
// RSA uses PKCS#1 v1.5; see SignWith for PSS.
func (k *AsymmetricKey) Sign(msg []byte, hash string) (BinaryData, error) {
	return k.SignWith(msg, SignOptions{Hash: hash})
}

// SignWith signs msg with explicit options.
func (k *AsymmetricKey) SignWith(msg []byte, opts SignOptions) (BinaryData, error) {
	if opts.Hash == "" {
		opts.Hash = DefaultSignOptions(k).Hash
	}
	if !k.HasPrivate() {
		return BinaryData{}, newError("sign", k.TypeClass(), fmt.Errorf("%w: private key required", ErrMissingArgument))
	}
	h, digest, err := k.digest(msg, opts.Hash)
	if err != nil {
		return BinaryData{}, err
	}

	var sig []byte
	if k.rsa != nil {
		sig, err = k.ctx.provider.SignRSA(k.rsa.priv, h, digest, opts.PSS)
	} else {
		sig, err = k.ctx.provider.SignEC(k.ec.priv, digest)
	}
	if err != nil {
		return BinaryData{}, err
	}
	if err := k.ctx.record(EventDataSigned, map[string]string{
		"key_type": k.TypeClass(),
		"hash":     opts.Hash,
		"pss":      fmt.Sprint(opts.PSS),
	}); err != nil {
		return BinaryData{}, err
	}
	return BinaryData{b: sig}, nil
}

// Verify reports whether sig is a PKCS#1 v1.5 or ECDSA signature of msg.
// An unsupported hash is an error; a bad signature is false.
func (k *AsymmetricKey) Verify(msg, sig []byte, hash string) (bool, error) {
	return k.VerifyWith(msg, sig, SignOptions{Hash: hash})
}

// VerifyWith verifies sig with explicit options.
func (k *AsymmetricKey) VerifyWith(msg, sig []byte, opts SignOptions) (bool, error) {
	if opts.Hash == "" {
		opts.Hash = DefaultSignOptions(k).Hash
	}
	h, digest, err := k.digest(msg, opts.Hash)
	if err != nil {
		return false, err
	}
	if k.rsa != nil {
		return k.ctx.provider.VerifyRSA(k.rsa.pub, h, digest, sig, opts.PSS) == nil, nil
	}
	return k.ctx.provider.VerifyEC(k.ec.pub, digest, sig), nil
}

// Encrypt encrypts plaintext of any length with the public key, block by block.
func (k *AsymmetricKey) Encrypt(plaintext []byte, p Padding) (BinaryData, error) {
	if k.rsa == nil {
		return BinaryData{}, newError("encrypt", k.TypeClass(), fmt.Errorf("%w: encryption requires an RSA key", ErrUnsupported))
	}
	size, err := ChunkSize(k.NumBits(), p, true)
	if err != nil {
		return BinaryData{}, err
	}
	pub := k.rsa.pub
	out, err := k.ctx.pipeline().run(plaintext, size, p.Scheme == PaddingNone, func(block []byte) ([]byte, error) {
		return k.ctx.provider.EncryptBlock(pub, p, block)
	})
	if err != nil {
		return BinaryData{}, newError("encrypt", KeyTypeRSA, err)
	}
	k.ctx.logger.Debug("encrypted payload", "padding", p.String(), "chunk", size, "bytes", len(plaintext))
	return out, nil
}

// Decrypt decrypts ciphertext made of whole modulus-width blocks.
func (k *AsymmetricKey) Decrypt(ciphertext []byte, p Padding) (BinaryData, error) {
	if k.rsa == nil {
		return BinaryData{}, newError("decrypt", k.TypeClass(), fmt.Errorf("%w: decryption requires an RSA key", ErrUnsupported))
	}
	if k.rsa.priv == nil {
		return BinaryData{}, newError("decrypt", KeyTypeRSA, fmt.Errorf("%w: private key required", ErrMissingArgument))
	}
	size, err := ChunkSize(k.NumBits(), p, false)
	if err != nil {
		return BinaryData{}, err
	}
	priv := k.rsa.priv
	out, err := k.ctx.pipeline().run(ciphertext, size, true, func(block []byte) ([]byte, error) {
		return k.ctx.provider.DecryptBlock(priv, p, block)
	})
	if err != nil {
		return BinaryData{}, newError("decrypt", KeyTypeRSA, err)
	}
	if err := k.ctx.record(EventDataDecrypted, map[string]string{
		"key_type": KeyTypeRSA,
		"padding":  p.String(),
		"blocks":   fmt.Sprint(len(ciphertext) / size),
	}); err != nil {
		out.Wipe()
		return BinaryData{}, err
	}
	return out, nil
}

// digest resolves the signature hash and hashes msg through the layer's own hasher.
func (k *AsymmetricKey) digest(msg []byte, hash string) (crypto.Hash, []byte, error) {
	h, err := signatureHash(hash)
	if err != nil {
		return 0, nil, err
	}
	hasher, err := k.ctx.NewHasher(hash)
	if err != nil {
		return 0, nil, err
	}
	return h, hasher.HashBytes(msg).b, nil
}

// Wipe zeroes the exported private big.Int fields and drops the private half.
// Copies held internally by crypto/rsa are released, not zeroed.
// The key stays usable as a public key.
func (k *AsymmetricKey) Wipe() {
	switch {
	case k.rsa != nil && k.rsa.priv != nil:
		priv := k.rsa.priv
		k.rsa.pub = &rsa.PublicKey{N: new(big.Int).Set(priv.N), E: priv.E}
		wipeBig(priv.D)
		for _, p := range priv.Primes {
			wipeBig(p)
		}
		wipeBig(priv.Precomputed.Dp)
		wipeBig(priv.Precomputed.Dq)
		wipeBig(priv.Precomputed.Qinv)
		priv.Precomputed = rsa.PrecomputedValues{}
		k.rsa.priv = nil
	case k.ec != nil && k.ec.priv != nil:
		priv := k.ec.priv
		k.ec.pub = &ecdsa.PublicKey{Curve: priv.Curve, X: priv.X, Y: priv.Y} //nolint:staticcheck // legacy fields carry non-NIST curves
		wipeBig(priv.D)                                                      //nolint:staticcheck // legacy fields carry non-NIST curves
		k.ec.priv = nil
	}
}
