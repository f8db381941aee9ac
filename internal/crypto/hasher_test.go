package crypto

import (
	"bytes"
	"crypto"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// [Unit] Hasher Tests
// =============================================================================

func TestU_Hasher_KnownVectors(t *testing.T) {
	tests := []struct {
		name      string
		typeClass string
		input     string
		want      string
	}{
		{"[Unit] Hash: md5 empty", "md5", "", "d41d8cd98f00b204e9800998ecf8427e"},
		{"[Unit] Hash: sha1 abc", "sha1", "abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"[Unit] Hash: sha256 abc", "sha256", "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"[Unit] Hash: sha3-256 abc", "sha3-256", "abc", "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
		{"[Unit] Hash: sm3 abc", "sm3", "abc", "66c7f0f462eeedd9d1f2d46bdc10e4e24167c4875cf2f7a2297da02b8f4ba8e0"},
		{"[Unit] Hash: shake128 empty", "shake128", "", "7f9c2ba4e88f827d616045507605853ed73b8093f6efbc88eb1a6eacfa66ef26"},
		{"[Unit] Hash: shake256 empty", "shake256", "", "46b9dd2b0ba88d13233b3feb743eeb243fcd52ea62b81b82b50c27646ed5762fd75dc4ddd8c0f200cb05019d67b592f6fc821c49479ab48640292eacb3b7c4be"},
	}

	ctx := newTestContext(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ctx.NewHasher(tt.typeClass)
			if err != nil {
				t.Fatalf("NewHasher(%q) error = %v", tt.typeClass, err)
			}
			got := h.HashString(tt.input)
			if got.Hex() != tt.want {
				t.Errorf("HashString() = %s, want %s", got.Hex(), tt.want)
			}
			if got.Len() != h.Size() {
				t.Errorf("digest length %d != Size() %d", got.Len(), h.Size())
			}
		})
	}
}

func TestU_Hasher_Sources(t *testing.T) {
	ctx := newTestContext(t)
	h, err := ctx.NewHasher("sha256")
	if err != nil {
		t.Fatal(err)
	}
	want := h.HashString("abc")

	path := filepath.Join(t.TempDir(), "abc.txt")
	if err := os.WriteFile(path, []byte("abc"), 0600); err != nil {
		t.Fatal(err)
	}

	sources := []struct {
		name string
		src  Source
	}{
		{"[Unit] Sources: string", StringSource("abc")},
		{"[Unit] Sources: bytes", BytesSource("abc")},
		{"[Unit] Sources: file", FileSource(path)},
	}
	for _, s := range sources {
		t.Run(s.name, func(t *testing.T) {
			got, err := h.Hash(s.src)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if !got.Equal(want) {
				t.Errorf("Hash() = %s, want %s", got.Hex(), want.Hex())
			}
		})
	}

	t.Run("[Unit] Sources: reader", func(t *testing.T) {
		got, err := h.HashReader(strings.NewReader("abc"))
		if err != nil || !got.Equal(want) {
			t.Errorf("HashReader() = %s, %v", got.Hex(), err)
		}
	})

	t.Run("[Unit] Sources: missing file", func(t *testing.T) {
		_, err := h.HashFile(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("HashFile() error = %v, want ErrPersistence", err)
		}
	})
}

func TestU_Hasher_Resolution(t *testing.T) {
	ctx := newTestContext(t)

	t.Run("[Unit] Resolution: default is native sha256", func(t *testing.T) {
		h, err := ctx.NewHasher("")
		if err != nil {
			t.Fatal(err)
		}
		if h.TypeClass() != "sha256" || !h.IsNative() {
			t.Errorf("default hasher = %s native=%v", h.TypeClass(), h.IsNative())
		}
	})

	t.Run("[Unit] Resolution: registered digest is not native", func(t *testing.T) {
		h, err := ctx.NewHasher("k12")
		if err != nil {
			t.Fatal(err)
		}
		if h.IsNative() || h.Size() != 32 {
			t.Errorf("k12 native=%v size=%d", h.IsNative(), h.Size())
		}
	})

	t.Run("[Unit] Resolution: unknown", func(t *testing.T) {
		_, err := ctx.NewHasher("whirlpool")
		if !errors.Is(err, ErrUnsupportedTypeClass) {
			t.Errorf("NewHasher() error = %v", err)
		}
	})

	t.Run("[Unit] Resolution: falls back to sm3 without sha256", func(t *testing.T) {
		r := NewRegistry()
		_ = r.Register(BaseHasher, "sm3", HashSM3)
		_ = r.RegisterDefault(BaseHasher, 0, "sha256", nil)
		_ = r.RegisterDefault(BaseHasher, 10, "sm3", nil)
		h, err := newHasher(&emptyProvider{NewNativeProvider(nil)}, r, "")
		if err != nil {
			t.Fatal(err)
		}
		if h.TypeClass() != "sm3" {
			t.Errorf("default hasher = %s, want sm3", h.TypeClass())
		}
	})
}

// emptyProvider hides every native digest.
type emptyProvider struct {
	*NativeProvider
}

func (p *emptyProvider) Digests() []string {
	return nil
}

func (p *emptyProvider) Digest(string) (crypto.Hash, bool) {
	return 0, false
}

func (p *emptyProvider) KeyedDigest(string) (crypto.Hash, bool) {
	return 0, false
}

// =============================================================================
// [Unit] HMAC Tests
// =============================================================================

func TestU_HMAC_KnownVectors(t *testing.T) {
	tests := []struct {
		name      string
		typeClass string
		key       []byte
		msg       string
		want      string
	}{
		{
			name:      "[Unit] HMAC: RFC 4231 case 1",
			typeClass: "sha256",
			key:       bytes.Repeat([]byte{0x0b}, 20),
			msg:       "Hi There",
			want:      "b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7",
		},
		{
			name:      "[Unit] HMAC: RFC 4231 case 2",
			typeClass: "sha256",
			key:       []byte("Jefe"),
			msg:       "what do ya want for nothing?",
			want:      "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		},
		{
			name:      "[Unit] HMAC: RFC 2104 md5",
			typeClass: "md5",
			key:       bytes.Repeat([]byte{0x0b}, 16),
			msg:       "Hi There",
			want:      "9294727a3638bb1c13f48ef8158bfc9d",
		},
	}

	ctx := newTestContext(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ctx.NewHMACHasher(tt.typeClass, tt.key)
			if err != nil {
				t.Fatal(err)
			}
			got, err := h.HashString(tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			if got.Hex() != tt.want {
				t.Errorf("HashString() = %s, want %s", got.Hex(), tt.want)
			}
			ok, err := h.Verify([]byte(tt.msg), got)
			if err != nil || !ok {
				t.Errorf("Verify() = %v, %v", ok, err)
			}
		})
	}
}

func TestU_HMAC_Behavior(t *testing.T) {
	ctx := newTestContext(t)
	key := []byte("0123456789abcdef")

	t.Run("[Unit] HMAC: empty key", func(t *testing.T) {
		for _, k := range [][]byte{nil, {}} {
			h, err := ctx.NewHMACHasher("sha256", k)
			if err != nil {
				t.Fatalf("NewHMACHasher() error = %v", err)
			}
			mac, err := h.HashString("")
			if err != nil {
				t.Fatal(err)
			}
			if want := "b613679a0814d9ec772f95d778c35fc5ff1697c493715653c6c712144292c5ad"; mac.Hex() != want {
				t.Errorf("HMAC-SHA256(\"\", \"\") = %s, want %s", mac.Hex(), want)
			}
		}
		if _, err := ctx.NewHMACHasher("blake2b-256", nil); err != nil {
			t.Errorf("NewHMACHasher(blake2b-256, nil) error = %v", err)
		}
	})

	t.Run("[Unit] HMAC: key is copied", func(t *testing.T) {
		k := append([]byte(nil), key...)
		h, err := ctx.NewHMACHasher("sha256", k)
		if err != nil {
			t.Fatal(err)
		}
		before, _ := h.HashString("msg")
		clear(k)
		after, _ := h.HashString("msg")
		if !before.Equal(after) {
			t.Error("mutating the caller's key changed the MAC")
		}
	})

	t.Run("[Unit] HMAC: sm3 and blake2b", func(t *testing.T) {
		for tc, size := range map[string]int{"sm3": 32, "blake2b-256": 32, "blake2b-512": 64} {
			h, err := ctx.NewHMACHasher(tc, key)
			if err != nil {
				t.Fatalf("NewHMACHasher(%s) error = %v", tc, err)
			}
			mac, err := h.HashBytes([]byte("data"))
			if err != nil || mac.Len() != size {
				t.Errorf("%s MAC len = %d, %v", tc, mac.Len(), err)
			}
			if h.IsNative() {
				t.Errorf("%s should not be native", tc)
			}
		}
	})

	t.Run("[Unit] HMAC: blake2b key too long", func(t *testing.T) {
		_, err := ctx.NewHMACHasher("blake2b-512", make([]byte, 65))
		if !errors.Is(err, ErrUnsupportedValue) {
			t.Errorf("NewHMACHasher() error = %v", err)
		}
	})

	t.Run("[Unit] HMAC: md4 has no HMAC", func(t *testing.T) {
		_, err := ctx.NewHMACHasher("md4", key)
		if !errors.Is(err, ErrUnsupportedTypeClass) {
			t.Errorf("NewHMACHasher(md4) error = %v", err)
		}
	})

	t.Run("[Unit] HMAC: tampered message fails", func(t *testing.T) {
		h, _ := ctx.NewHMACHasher("sha256", key)
		mac, _ := h.HashString("message")
		ok, err := h.Verify([]byte("messagE"), mac)
		if err != nil || ok {
			t.Errorf("Verify() = %v, %v; want false", ok, err)
		}
	})

	t.Run("[Unit] HMAC: wiped hasher", func(t *testing.T) {
		h, _ := ctx.NewHMACHasher("sha256", key)
		h.Wipe()
		if _, err := h.HashString("x"); err == nil {
			t.Error("HashString() after Wipe should fail")
		}
	})
}
