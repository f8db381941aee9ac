package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newTestContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	ctx, err := NewContext(opts...)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	return ctx
}

var sharedRSA1024 = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 1024)
})

// rsaTestKey returns a 1024-bit RSA key bound to ctx. The native key is
// shared across tests, so callers must not Wipe it.
func rsaTestKey(t *testing.T, ctx *Context) *AsymmetricKey {
	t.Helper()
	priv, err := sharedRSA1024()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return newRSAKey(ctx, nil, priv)
}

// generateKey generates a fresh key that the test owns.
func generateKey(t *testing.T, ctx *Context, typeClass string, configure func(KeyGenerator) error) *AsymmetricKey {
	t.Helper()
	gen, err := ctx.NewKeyGenerator(typeClass)
	if err != nil {
		t.Fatalf("NewKeyGenerator(%q) error = %v", typeClass, err)
	}
	if configure != nil {
		if err := configure(gen); err != nil {
			t.Fatalf("configure generator: %v", err)
		}
	}
	key, err := gen.Go()
	if err != nil {
		t.Fatalf("Go() error = %v", err)
	}
	return key
}

// recordingSink collects audit events.
type recordingSink struct {
	mu     sync.Mutex
	events []string
	attrs  []map[string]string
}

func (s *recordingSink) Record(event string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.attrs = append(s.attrs, attrs)
	return nil
}

// =============================================================================
// [Unit] Context Tests
// =============================================================================

func TestU_Context_New(t *testing.T) {
	t.Run("[Unit] NewContext: default registry is sealed", func(t *testing.T) {
		ctx := newTestContext(t)
		err := ctx.Registry().Register(BaseHasher, "evil", HashSM3)
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Register() on context registry error = %v", err)
		}
		if ctx.Provider().Name() != "go-crypto" {
			t.Errorf("Provider().Name() = %q", ctx.Provider().Name())
		}
	})

	t.Run("[Unit] NewContext: custom registry", func(t *testing.T) {
		r := NewRegistry()
		_ = r.Register(BaseHasher, "sm3", HashSM3)
		_ = r.RegisterDefault(BaseHasher, 0, "sm3", nil)
		ctx := newTestContext(t, WithRegistry(r))

		h, err := ctx.NewHasher("")
		if err != nil || h.TypeClass() != "sm3" {
			t.Fatalf("NewHasher() = %v, %v", h, err)
		}
		if _, err := ctx.NewCipher("", make([]byte, 32)); !errors.Is(err, ErrNoDefault) {
			t.Errorf("NewCipher() with empty registry error = %v", err)
		}
	})

	t.Run("[Unit] NewContext: random source drives generation", func(t *testing.T) {
		seed := bytes.Repeat([]byte{0x42}, 64)
		ctx := newTestContext(t, WithRandom(bytes.NewReader(seed)))
		b, err := ctx.Random(16)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(b.Bytes(), seed[:16]) {
			t.Errorf("Random() did not read from the configured source")
		}
	})
}

func TestU_Context_Random(t *testing.T) {
	ctx := newTestContext(t)

	for _, n := range []int{0, 1, 32, 1000} {
		b, err := ctx.Random(n)
		if err != nil || b.Len() != n {
			t.Errorf("Random(%d) = %d bytes, %v", n, b.Len(), err)
		}
	}
	if _, err := ctx.Random(-1); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("Random(-1) error = %v", err)
	}

	a, _ := ctx.Random(32)
	b, _ := ctx.Random(32)
	if a.Equal(b) {
		t.Error("two random draws are equal")
	}

	exhausted := newTestContext(t, WithRandom(bytes.NewReader(nil)))
	if _, err := exhausted.Random(8); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("Random() from empty source error = %v", err)
	}
}

func TestU_Context_DeriveKey(t *testing.T) {
	ctx := newTestContext(t)
	salt := []byte("0123456789abcdef")

	t.Run("[Unit] DeriveKey: pbkdf2 deterministic", func(t *testing.T) {
		a, err := ctx.DeriveKey([]byte("pw"), salt, 32, KDFPBKDF2SHA256)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := ctx.DeriveKey([]byte("pw"), salt, 32, KDFPBKDF2SHA256)
		c, _ := ctx.DeriveKey([]byte("pw2"), salt, 32, KDFPBKDF2SHA256)
		if !a.Equal(b) || a.Equal(c) || a.Len() != 32 {
			t.Errorf("pbkdf2 outputs a=%s b=%s c=%s", a, b, c)
		}
	})

	t.Run("[Unit] DeriveKey: argon2id default", func(t *testing.T) {
		a, err := ctx.DeriveKey([]byte("pw"), salt, 24, "")
		if err != nil || a.Len() != 24 {
			t.Fatalf("DeriveKey() = %d bytes, %v", a.Len(), err)
		}
		b, _ := ctx.DeriveKey([]byte("pw"), salt, 24, KDFArgon2id)
		if !a.Equal(b) {
			t.Error("empty KDF should select argon2id")
		}
	})

	errTests := []struct {
		name    string
		pw      []byte
		salt    []byte
		size    int
		kdf     KDF
		wantErr error
	}{
		{"[Unit] DeriveKey: empty password", nil, salt, 32, KDFArgon2id, ErrMissingArgument},
		{"[Unit] DeriveKey: short salt", []byte("pw"), []byte("short"), 32, KDFArgon2id, ErrUnsupportedValue},
		{"[Unit] DeriveKey: zero size", []byte("pw"), salt, 0, KDFArgon2id, ErrUnsupportedValue},
		{"[Unit] DeriveKey: unknown kdf", []byte("pw"), salt, 32, KDF("scrypt"), ErrUnsupportedTypeClass},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctx.DeriveKey(tt.pw, tt.salt, tt.size, tt.kdf)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DeriveKey() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestU_Context_Audit(t *testing.T) {
	sink := &recordingSink{}
	ctx := newTestContext(t, WithAudit(sink))

	key := generateKey(t, ctx, KeyTypeEC, nil)
	if _, err := key.Sign([]byte("msg"), ""); err != nil {
		t.Fatal(err)
	}
	pem, err := key.Export(FormatPEM, ExportOptions{Private: true, Password: []byte("hunter2")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.ParseKey(pem.Bytes(), WithPassword([]byte("hunter2"))); err != nil {
		t.Fatal(err)
	}
	if _, err := key.Public().Export(FormatPEM, ExportOptions{}); err != nil {
		t.Fatal(err)
	}

	want := []string{EventKeyGenerated, EventDataSigned, EventKeyExported, EventKeyImported}
	if strings.Join(sink.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", sink.events, want)
	}
	for _, attrs := range sink.attrs {
		for k, v := range attrs {
			if strings.Contains(v, "hunter2") || strings.Contains(v, "msg") {
				t.Errorf("audit attribute %s leaks input: %q", k, v)
			}
		}
	}
}

func TestU_Context_CurveParams(t *testing.T) {
	ctx := newTestContext(t)

	info, err := ctx.CurveParams("P-384")
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "secp384r1" || info.OID != "1.3.132.0.34" || info.BitSize != 384 {
		t.Errorf("CurveParams(P-384) = %s %s %d", info.Name, info.OID, info.BitSize)
	}
	if info.P.BitLen() != 384 {
		t.Errorf("P has %d bits", info.P.BitLen())
	}

	if _, err := ctx.CurveParams("brainpoolP256r1"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("CurveParams(brainpool) error = %v", err)
	}
	if _, err := ctx.CurveParams("curve9000"); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("CurveParams(unknown) error = %v", err)
	}
}

// failingSink rejects every event after the first allowed ones.
type failingSink struct {
	allow int
	seen  int
}

func (s *failingSink) Record(string, map[string]string) error {
	s.seen++
	if s.seen > s.allow {
		return errors.New("disk full")
	}
	return nil
}

func TestU_Context_AuditFailure(t *testing.T) {
	t.Run("[Unit] Audit: generation fails", func(t *testing.T) {
		ctx := newTestContext(t, WithAudit(&failingSink{}))
		gen, err := ctx.NewKeyGenerator(KeyTypeEC)
		if err != nil {
			t.Fatal(err)
		}
		key, err := gen.Go()
		if !errors.Is(err, ErrPersistence) || key != nil {
			t.Errorf("Go() = %v, %v; want ErrPersistence", key, err)
		}
	})

	t.Run("[Unit] Audit: signing fails", func(t *testing.T) {
		ctx := newTestContext(t, WithAudit(&failingSink{allow: 1}))
		key := generateKey(t, ctx, KeyTypeEC, nil)
		sig, err := key.Sign([]byte("m"), "")
		if !errors.Is(err, ErrPersistence) || !sig.IsEmpty() {
			t.Errorf("Sign() = %d bytes, %v; want ErrPersistence", sig.Len(), err)
		}
	})

	t.Run("[Unit] Audit: decryption returns no plaintext", func(t *testing.T) {
		ctx := newTestContext(t, WithAudit(&failingSink{}))
		key := rsaTestKey(t, ctx)
		ct, err := key.Encrypt([]byte("secret"), OAEPPadding)
		if err != nil {
			t.Fatal(err)
		}
		pt, err := key.Decrypt(ct.Bytes(), OAEPPadding)
		if !errors.Is(err, ErrPersistence) || !pt.IsEmpty() {
			t.Errorf("Decrypt() = %d bytes, %v; want ErrPersistence", pt.Len(), err)
		}
	})
}
