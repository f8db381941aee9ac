package crypto

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"sort"
)

// algorithmInfo is one row of the builtin registration table.
type algorithmInfo struct {
	Base        Base
	TypeClass   string
	Impl        any
	Description string
}

// defaultRule is one row of the builtin default-selection policy.
type defaultRule struct {
	Base      Base
	Priority  int
	TypeClass string
	Available AvailabilityFunc
}

// builtinAlgorithms lists every builtin type class. Native digests are
// registered as crypto.Hash values so that default resolution and listings see them.
var builtinAlgorithms = []algorithmInfo{
	// Custom digests
	{BaseHasher, "sm3", HashSM3, "SM3 (GB/T 32905)"},
	{BaseHasher, "shake128", HashSHAKE128, "SHAKE128 with 256-bit output"},
	{BaseHasher, "shake256", HashSHAKE256, "SHAKE256 with 512-bit output"},
	{BaseHasher, "k12", HashK12, "KangarooTwelve with 256-bit output"},

	// Custom MACs
	{BaseHMAC, "sm3", MACSM3, "HMAC-SM3"},
	{BaseHMAC, "blake2b-256", MACBLAKE2b256, "BLAKE2b-256 keyed mode"},
	{BaseHMAC, "blake2b-512", MACBLAKE2b512, "BLAKE2b-512 keyed mode"},

	// Symmetric ciphers
	{BaseCipher, "aes-128-gcm", CipherAES128GCM, "AES-128 in GCM mode"},
	{BaseCipher, "aes-192-gcm", CipherAES192GCM, "AES-192 in GCM mode"},
	{BaseCipher, "aes-256-gcm", CipherAES256GCM, "AES-256 in GCM mode"},
	{BaseCipher, "aes-128-cbc", CipherAES128CBC, "AES-128 in CBC mode with PKCS#7 padding"},
	{BaseCipher, "aes-256-cbc", CipherAES256CBC, "AES-256 in CBC mode with PKCS#7 padding"},
	{BaseCipher, "aes-256-ctr", CipherAES256CTR, "AES-256 in CTR mode (unauthenticated)"},
	{BaseCipher, "chacha20-poly1305", CipherChaCha20Poly1305, "ChaCha20-Poly1305 (RFC 8439)"},
	{BaseCipher, "xchacha20-poly1305", CipherXChaCha20Poly1305, "XChaCha20-Poly1305 with 192-bit nonce"},
	{BaseCipher, "sm4-gcm", CipherSM4GCM, "SM4 in GCM mode"},
	{BaseCipher, "sm4-cbc", CipherSM4CBC, "SM4 in CBC mode with PKCS#7 padding"},

	// Asymmetric key families
	{BaseAsymmetricKey, KeyTypeRSA, FamilyRSA, "RSA (PKCS#1)"},
	{BaseAsymmetricKey, KeyTypeEC, FamilyEC, "Elliptic curve (ECDSA)"},
}

var builtinDefaults = []defaultRule{
	{BaseHasher, 0, "sha256", hashAvailable(crypto.SHA256)},
	{BaseHasher, 10, "sm3", nil},
	{BaseHMAC, 0, "sha256", hashAvailable(crypto.SHA256)},
	{BaseHMAC, 10, "sm3", nil},
	{BaseCipher, 0, "aes-256-gcm", aesGCMAvailable},
	{BaseCipher, 10, "chacha20-poly1305", nil},
	{BaseAsymmetricKey, 0, KeyTypeRSA, nil},
	{BaseAsymmetricKey, 10, KeyTypeEC, nil},
}

// RegisterDefaults populates r with the builtin algorithms and default policy.
// It is the explicit registration table run once at the composition root.
func RegisterDefaults(r *Registry) error {
	for name, h := range nativeDigests {
		if err := r.Register(BaseHasher, name, h); err != nil {
			return err
		}
		if nativeKeyedDigests[name] {
			if err := r.Register(BaseHMAC, name, h); err != nil {
				return err
			}
		}
	}
	for _, a := range builtinAlgorithms {
		if err := r.Register(a.Base, a.TypeClass, a.Impl); err != nil {
			return err
		}
	}
	for _, d := range builtinDefaults {
		if err := r.RegisterDefault(d.Base, d.Priority, d.TypeClass, d.Available); err != nil {
			return err
		}
	}
	return nil
}

// AlgorithmEntry describes one registered type class for listings.
type AlgorithmEntry struct {
	Base        Base
	TypeClass   string
	Native      bool
	Description string
}

// Algorithms lists the type classes registered in r, sorted by base then name.
func Algorithms(r *Registry) []AlgorithmEntry {
	desc := make(map[Base]map[string]string)
	for _, a := range builtinAlgorithms {
		if desc[a.Base] == nil {
			desc[a.Base] = make(map[string]string)
		}
		desc[a.Base][a.TypeClass] = a.Description
	}

	var out []AlgorithmEntry
	for _, base := range []Base{BaseHasher, BaseHMAC, BaseCipher, BaseAsymmetricKey} {
		for _, tc := range r.TypeClasses(base) {
			impl, _ := r.Lookup(base, tc)
			e := AlgorithmEntry{Base: base, TypeClass: tc, Description: desc[base][tc]}
			if h, ok := impl.(crypto.Hash); ok {
				e.Native = true
				if e.Description == "" {
					e.Description = h.String()
				}
			}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].TypeClass < out[j].TypeClass
	})
	return out
}

func hashAvailable(h crypto.Hash) AvailabilityFunc {
	return func() error {
		if !h.Available() {
			return fmt.Errorf("%v is not linked into the binary", h)
		}
		return nil
	}
}

func aesGCMAvailable() error {
	block, err := aes.NewCipher(make([]byte, 32))
	if err != nil {
		return err
	}
	if _, err := cipher.NewGCM(block); err != nil {
		return errors.Join(errors.New("aes-gcm unavailable"), err)
	}
	return nil
}
