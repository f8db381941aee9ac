package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/emmansun/gmsm/sm4"
	"golang.org/x/crypto/chacha20poly1305"
)

// CipherMode is the block chaining or AEAD construction of a symmetric cipher.
type CipherMode string

const (
	ModeGCM  CipherMode = "gcm"
	ModeCBC  CipherMode = "cbc"
	ModeCTR  CipherMode = "ctr"
	ModeAEAD CipherMode = "aead"
)

// CipherAlgorithm is a symmetric cipher registered under BaseCipher.
// Block ciphers set Block; stream AEADs set AEAD.
type CipherAlgorithm struct {
	Name    string
	KeySize int
	Mode    CipherMode
	Block   func(key []byte) (cipher.Block, error)
	AEAD    func(key []byte) (cipher.AEAD, error)
}

// Symmetric ciphers.
var (
	CipherAES128GCM         = &CipherAlgorithm{Name: "aes-128-gcm", KeySize: 16, Mode: ModeGCM, Block: aes.NewCipher}
	CipherAES192GCM         = &CipherAlgorithm{Name: "aes-192-gcm", KeySize: 24, Mode: ModeGCM, Block: aes.NewCipher}
	CipherAES256GCM         = &CipherAlgorithm{Name: "aes-256-gcm", KeySize: 32, Mode: ModeGCM, Block: aes.NewCipher}
	CipherAES128CBC         = &CipherAlgorithm{Name: "aes-128-cbc", KeySize: 16, Mode: ModeCBC, Block: aes.NewCipher}
	CipherAES256CBC         = &CipherAlgorithm{Name: "aes-256-cbc", KeySize: 32, Mode: ModeCBC, Block: aes.NewCipher}
	CipherAES256CTR         = &CipherAlgorithm{Name: "aes-256-ctr", KeySize: 32, Mode: ModeCTR, Block: aes.NewCipher}
	CipherChaCha20Poly1305  = &CipherAlgorithm{Name: "chacha20-poly1305", KeySize: chacha20poly1305.KeySize, Mode: ModeAEAD, AEAD: chacha20poly1305.New}
	CipherXChaCha20Poly1305 = &CipherAlgorithm{Name: "xchacha20-poly1305", KeySize: chacha20poly1305.KeySize, Mode: ModeAEAD, AEAD: chacha20poly1305.NewX}
	CipherSM4GCM            = &CipherAlgorithm{Name: "sm4-gcm", KeySize: sm4.BlockSize, Mode: ModeGCM, Block: sm4.NewCipher}
	CipherSM4CBC            = &CipherAlgorithm{Name: "sm4-cbc", KeySize: sm4.BlockSize, Mode: ModeCBC, Block: sm4.NewCipher}
)

// SymmetricCipher is a keyed cipher instance. Output layout is iv || ciphertext.
type SymmetricCipher struct {
	typeClass string
	alg       *CipherAlgorithm
	block     cipher.Block
	aead      cipher.AEAD
	random    func([]byte) error
}

func newSymmetricCipher(alg *CipherAlgorithm, typeClass string, key []byte, random func([]byte) error) (*SymmetricCipher, error) {
	if len(key) != alg.KeySize {
		return nil, newError("cipher", typeClass, fmt.Errorf("%w: key must be %d bytes, got %d", ErrUnsupportedValue, alg.KeySize, len(key)))
	}
	c := &SymmetricCipher{typeClass: typeClass, alg: alg, random: random}

	var err error
	switch alg.Mode {
	case ModeAEAD:
		if alg.AEAD == nil {
			return nil, newError("cipher", typeClass, fmt.Errorf("%w: missing AEAD constructor", ErrClassNotOfExpectedType))
		}
		c.aead, err = alg.AEAD(key)
	case ModeGCM, ModeCBC, ModeCTR:
		if alg.Block == nil {
			return nil, newError("cipher", typeClass, fmt.Errorf("%w: missing block constructor", ErrClassNotOfExpectedType))
		}
		c.block, err = alg.Block(key)
		if err == nil && alg.Mode == ModeGCM {
			c.aead, err = cipher.NewGCM(c.block)
		}
	default:
		return nil, newError("cipher", typeClass, fmt.Errorf("%w: mode %q", ErrUnsupportedValue, alg.Mode))
	}
	if err != nil {
		return nil, nativeError("cipher", err)
	}
	return c, nil
}

// TypeClass returns the cipher identifier.
func (c *SymmetricCipher) TypeClass() string { return c.typeClass }

// KeySize returns the key length in bytes.
func (c *SymmetricCipher) KeySize() int { return c.alg.KeySize }

// IVSize returns the nonce or IV length in bytes.
func (c *SymmetricCipher) IVSize() int {
	if c.aead != nil {
		return c.aead.NonceSize()
	}
	return c.block.BlockSize()
}

// Encrypt encrypts plaintext under a fresh random IV. aad is only used by AEAD modes.
func (c *SymmetricCipher) Encrypt(plaintext, aad []byte) (BinaryData, error) {
	iv := make([]byte, c.IVSize())
	if err := c.random(iv); err != nil {
		return BinaryData{}, err
	}

	switch {
	case c.aead != nil:
		return BinaryData{b: c.aead.Seal(iv, iv, plaintext, aad)}, nil

	case c.alg.Mode == ModeCBC:
		padded := pkcs7Pad(plaintext, c.block.BlockSize())
		out := make([]byte, len(iv)+len(padded))
		copy(out, iv)
		cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[len(iv):], padded)
		return BinaryData{b: out}, nil

	default:
		out := make([]byte, len(iv)+len(plaintext))
		copy(out, iv)
		cipher.NewCTR(c.block, iv).XORKeyStream(out[len(iv):], plaintext)
		return BinaryData{b: out}, nil
	}
}

// Decrypt reverses Encrypt. Authentication and padding failures are OperationFailed.
func (c *SymmetricCipher) Decrypt(ciphertext, aad []byte) (BinaryData, error) {
	n := c.IVSize()
	if len(ciphertext) < n {
		return BinaryData{}, newError("decrypt", c.typeClass, fmt.Errorf("%w: ciphertext shorter than IV", ErrUnsupportedValue))
	}
	iv, body := ciphertext[:n], ciphertext[n:]

	switch {
	case c.aead != nil:
		out, err := c.aead.Open(nil, iv, body, aad)
		if err != nil {
			return BinaryData{}, nativeError("decrypt", err)
		}
		return BinaryData{b: out}, nil

	case c.alg.Mode == ModeCBC:
		bs := c.block.BlockSize()
		if len(body) == 0 || len(body)%bs != 0 {
			return BinaryData{}, newError("decrypt", c.typeClass, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrUnsupportedValue))
		}
		out := make([]byte, len(body))
		cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, body)
		plain, err := pkcs7Unpad(out, bs)
		if err != nil {
			wipe(out)
			return BinaryData{}, nativeError("decrypt", err)
		}
		return BinaryData{b: plain}, nil

	default:
		out := make([]byte, len(body))
		cipher.NewCTR(c.block, iv).XORKeyStream(out, body)
		return BinaryData{b: out}, nil
	}
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("invalid padding")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
