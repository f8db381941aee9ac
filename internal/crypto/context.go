// Package crypto provides the algorithm abstraction layer: a registry of
// type classes, digest and MAC engines, symmetric ciphers, RSA and EC keys with
// chunked public-key encryption, and key parsing and export. All native
// cryptography goes through a single Provider.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Audit event types recorded by the layer.
const (
	EventKeyGenerated  = "KEY_GENERATED"
	EventKeyImported   = "KEY_IMPORTED"
	EventKeyExported   = "KEY_EXPORTED"
	EventDataSigned    = "DATA_SIGNED"
	EventDataDecrypted = "DATA_DECRYPTED"
)

// AuditSink receives security events. Attributes never carry secret material.
type AuditSink interface {
	Record(event string, attrs map[string]string) error
}

// Context is the single entry point to the layer. It owns the registry, the
// curve table and the provider, and is safe for concurrent use once built.
type Context struct {
	registry *Registry
	curves   *CurveRegistry
	provider Provider
	random   io.Reader
	logger   *slog.Logger
	workers  int
	audit    AuditSink
	rsaBits  int
	curve    string
}

// Option configures a Context.
type Option func(*Context)

// WithRegistry uses r instead of a registry populated by RegisterDefaults.
func WithRegistry(r *Registry) Option {
	return func(c *Context) { c.registry = r }
}

// WithCurves uses a custom curve registry.
func WithCurves(curves *CurveRegistry) Option {
	return func(c *Context) { c.curves = curves }
}

// WithProvider substitutes the native library.
func WithProvider(p Provider) Option {
	return func(c *Context) { c.provider = p }
}

// WithRandom sets the random source of the default provider and of IV generation.
func WithRandom(r io.Reader) Option {
	return func(c *Context) { c.random = r }
}

// WithLogger sets the logger. Key material is never logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithWorkers bounds concurrent block operations in the chunked pipeline.
func WithWorkers(n int) Option {
	return func(c *Context) { c.workers = n }
}

// WithAudit records key and data events to sink.
func WithAudit(sink AuditSink) Option {
	return func(c *Context) { c.audit = sink }
}

// NewContext builds a Context. Without WithRegistry, a sealed registry holding
// the builtin algorithms is created.
func NewContext(opts ...Option) (*Context, error) {
	c := &Context{}
	for _, o := range opts {
		o(c)
	}
	if c.random == nil {
		c.random = rand.Reader
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.workers <= 0 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	if c.provider == nil {
		c.provider = NewNativeProvider(c.random)
	}
	if c.curves == nil {
		c.curves = NewCurveRegistry()
	}
	if c.registry == nil {
		r := NewRegistry()
		if err := RegisterDefaults(r); err != nil {
			return nil, fmt.Errorf("failed to register builtin algorithms: %w", err)
		}
		r.Seal()
		c.registry = r
	}
	c.logger.Debug("crypto context ready", "provider", c.provider.Name(), "workers", c.workers)
	return c, nil
}

// Registry returns the algorithm registry.
func (c *Context) Registry() *Registry { return c.registry }

// Curves returns the EC curve registry.
func (c *Context) Curves() *CurveRegistry { return c.curves }

// Provider returns the native library bridge.
func (c *Context) Provider() Provider { return c.provider }

func (c *Context) pipeline() chunkPipeline {
	return chunkPipeline{workers: c.workers}
}

// record forwards an event to the audit sink. A sink failure fails the operation.
func (c *Context) record(event string, attrs map[string]string) error {
	if c.audit == nil {
		return nil
	}
	if err := c.audit.Record(event, attrs); err != nil {
		c.logger.Error("audit record failed", "event", event, "error", err)
		return newError("audit", attrs["key_type"], fmt.Errorf("%w: failed to record %s: %w", ErrPersistence, event, err))
	}
	return nil
}

// Random returns n bytes from the provider's secure random source.
func (c *Context) Random(n int) (BinaryData, error) {
	if n < 0 {
		return BinaryData{}, newError("random", "", fmt.Errorf("%w: negative length %d", ErrUnsupportedValue, n))
	}
	b := make([]byte, n)
	if err := c.provider.Random(b); err != nil {
		return BinaryData{}, err
	}
	return BinaryData{b: b}, nil
}

// NewHasher returns a digest engine. An empty type class selects the default.
func (c *Context) NewHasher(typeClass string) (*Hasher, error) {
	h, err := newHasher(c.provider, c.registry, typeClass)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("resolved hasher", "type_class", h.TypeClass(), "native", h.IsNative())
	return h, nil
}

// NewHMACHasher returns a MAC engine bound to a copy of key.
func (c *Context) NewHMACHasher(typeClass string, key []byte) (*HMACHasher, error) {
	h, err := newHMACHasher(c.provider, c.registry, typeClass, key)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("resolved hmac", "type_class", h.TypeClass(), "native", h.IsNative())
	return h, nil
}

// NewCipher returns a symmetric cipher keyed with key. An empty type class selects the default.
func (c *Context) NewCipher(typeClass string, key []byte) (*SymmetricCipher, error) {
	tc, alg, err := c.resolveCipher(typeClass)
	if err != nil {
		return nil, err
	}
	return newSymmetricCipher(alg, tc, key, c.provider.Random)
}

// NewCipherKey returns a random key of the right size for typeClass.
func (c *Context) NewCipherKey(typeClass string) (BinaryData, error) {
	_, alg, err := c.resolveCipher(typeClass)
	if err != nil {
		return BinaryData{}, err
	}
	return c.Random(alg.KeySize)
}

func (c *Context) resolveCipher(typeClass string) (string, *CipherAlgorithm, error) {
	if typeClass == "" {
		tc, err := c.registry.DefaultTypeClass(BaseCipher)
		if err != nil {
			return "", nil, err
		}
		typeClass = tc
	}
	alg, err := ResolveAs[*CipherAlgorithm](c.registry, BaseCipher, typeClass)
	if err != nil {
		return "", nil, err
	}
	return typeClass, alg, nil
}

// NewKeyGenerator returns a generator for the key family. An empty type class selects the default.
func (c *Context) NewKeyGenerator(typeClass string) (KeyGenerator, error) {
	if typeClass == "" {
		tc, err := c.registry.DefaultTypeClass(BaseAsymmetricKey)
		if err != nil {
			return nil, err
		}
		typeClass = tc
	}
	family, err := ResolveAs[*KeyFamily](c.registry, BaseAsymmetricKey, typeClass)
	if err != nil {
		return nil, err
	}
	return family.NewGenerator(c), nil
}

// CurveParams returns the native curve for a name or alias.
func (c *Context) CurveParams(name string) (CurveInfo, error) {
	curve, err := c.curves.Params(name)
	if err != nil {
		return CurveInfo{}, err
	}
	p := curve.Params()
	return CurveInfo{
		Name:    c.curves.Canonical(name),
		OID:     c.curves.ResolveOID(name),
		BitSize: p.BitSize,
		P:       numeralOf(p.P),
		N:       numeralOf(p.N),
		B:       numeralOf(p.B),
		Gx:      numeralOf(p.Gx),
		Gy:      numeralOf(p.Gy),
	}, nil
}

// CurveInfo describes a curve's domain parameters.
type CurveInfo struct {
	Name    string
	OID     string
	BitSize int
	P       *Numeral
	N       *Numeral
	B       *Numeral
	Gx      *Numeral
	Gy      *Numeral
}

// KDF identifies a password-based key derivation function.
type KDF string

const (
	KDFArgon2id     KDF = "argon2id"
	KDFPBKDF2SHA256 KDF = "pbkdf2-sha256"
)

// Argon2id parameters (RFC 9106 second recommended option).
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

const minSaltSize = 8

// DeriveKey stretches a password into size bytes of key material.
func (c *Context) DeriveKey(password, salt []byte, size int, kdf KDF) (BinaryData, error) {
	if len(password) == 0 {
		return BinaryData{}, newError("derive", string(kdf), fmt.Errorf("%w: empty password", ErrMissingArgument))
	}
	if len(salt) < minSaltSize {
		return BinaryData{}, newError("derive", string(kdf), fmt.Errorf("%w: salt must be at least %d bytes", ErrUnsupportedValue, minSaltSize))
	}
	if size <= 0 {
		return BinaryData{}, newError("derive", string(kdf), fmt.Errorf("%w: key size %d", ErrUnsupportedValue, size))
	}

	switch kdf {
	case KDFArgon2id, "":
		return BinaryData{b: argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, uint32(size))}, nil
	case KDFPBKDF2SHA256:
		return BinaryData{b: pbkdf2.Key(password, salt, pbkdf2Iterations, size, sha256.New)}, nil
	default:
		return BinaryData{}, newError("derive", string(kdf), fmt.Errorf("%w: kdf", ErrUnsupportedTypeClass))
	}
}
