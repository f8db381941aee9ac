package crypto

import (
	"crypto/hmac"
	"hash"

	"github.com/cloudflare/circl/xof"
	"github.com/emmansun/gmsm/sm3"
	"golang.org/x/crypto/blake2b"
)

// xofDigest adapts an extendable-output function to hash.Hash with a fixed output length.
type xofDigest struct {
	id        xof.ID
	x         xof.XOF
	size      int
	blockSize int
}

func newXOFDigest(id xof.ID, size, blockSize int) func() hash.Hash {
	return func() hash.Hash {
		return &xofDigest{id: id, x: id.New(), size: size, blockSize: blockSize}
	}
}

func (d *xofDigest) Write(p []byte) (int, error) { return d.x.Write(p) }

// Sum reads from a clone so the running state stays writable.
func (d *xofDigest) Sum(b []byte) []byte {
	out := make([]byte, d.size)
	if _, err := d.x.Clone().Read(out); err != nil {
		panic("crypto: xof read failed: " + err.Error())
	}
	return append(b, out...)
}

func (d *xofDigest) Reset()         { d.x.Reset() }
func (d *xofDigest) Size() int      { return d.size }
func (d *xofDigest) BlockSize() int { return d.blockSize }

// Custom digests outside the native table.
var (
	HashSM3 = &HashAlgorithm{Name: "sm3", Size: sm3.Size, New: sm3.New}

	HashSHAKE128 = &HashAlgorithm{Name: "shake128", Size: 32, New: newXOFDigest(xof.SHAKE128, 32, 168)}
	HashSHAKE256 = &HashAlgorithm{Name: "shake256", Size: 64, New: newXOFDigest(xof.SHAKE256, 64, 136)}
	HashK12      = &HashAlgorithm{Name: "k12", Size: 32, New: newXOFDigest(xof.K12D10, 32, 168)}
)

// Custom keyed digests outside the native HMAC list.
var (
	MACSM3 = &MACAlgorithm{
		Name: "sm3",
		Size: sm3.Size,
		New: func(key []byte) (hash.Hash, error) {
			return hmac.New(sm3.New, key), nil
		},
	}

	// BLAKE2b keyed mode, not HMAC. Keys are limited to 64 bytes.
	MACBLAKE2b256 = &MACAlgorithm{Name: "blake2b-256", Size: blake2b.Size256, New: blake2b.New256}
	MACBLAKE2b512 = &MACAlgorithm{Name: "blake2b-512", Size: blake2b.Size, New: blake2b.New512}
)
