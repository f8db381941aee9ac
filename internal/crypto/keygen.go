package crypto

import (
	"fmt"
)

// RSA and EC generation defaults.
const (
	DefaultRSABits = 2048
	MinRSABits     = 1024
	MaxRSABits     = 16384
	DefaultCurve   = "prime256v1"

	rsaExponent = 65537
)

// KeyGenerator is configured incrementally, then produces one key per Go call.
//
// Example:
//
//	gen, err := ctx.NewKeyGenerator("rsa")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := gen.SetBits(3072); err != nil {
//	    log.Fatal(err)
//	}
//	key, err := gen.Go()
type KeyGenerator interface {
	// SetBits sets the RSA modulus size, or selects the EC curve of that size.
	SetBits(bits int) error

	// SetCurve selects a named curve. RSA generators reject it.
	SetCurve(name string) error

	// SetExponent sets the RSA public exponent. Only 65537 is supported.
	SetExponent(e int) error

	// Go generates the key.
	Go() (*AsymmetricKey, error)
}

// KeyFamily is the registry entry of an asymmetric key family under BaseAsymmetricKey.
type KeyFamily struct {
	Name         string
	NewGenerator func(ctx *Context) KeyGenerator
}

// Builtin key families.
var (
	FamilyRSA = &KeyFamily{Name: KeyTypeRSA, NewGenerator: func(ctx *Context) KeyGenerator {
		return &rsaGenerator{ctx: ctx, bits: ctx.keyBits()}
	}}
	FamilyEC = &KeyFamily{Name: KeyTypeEC, NewGenerator: func(ctx *Context) KeyGenerator {
		return &ecGenerator{ctx: ctx, curve: ctx.keyCurve()}
	}}
)

// WithKeyDefaults overrides the RSA size and EC curve used by new generators.
func WithKeyDefaults(rsaBits int, curve string) Option {
	return func(c *Context) {
		c.rsaBits = rsaBits
		c.curve = curve
	}
}

func (c *Context) keyBits() int {
	if c.rsaBits > 0 {
		return c.rsaBits
	}
	return DefaultRSABits
}

func (c *Context) keyCurve() string {
	if c.curve != "" {
		return c.curve
	}
	return DefaultCurve
}

type rsaGenerator struct {
	ctx  *Context
	bits int
}

func (g *rsaGenerator) SetBits(bits int) error {
	if bits < MinRSABits || bits > MaxRSABits {
		return newError("keygen", KeyTypeRSA, fmt.Errorf("%w: RSA size must be between %d and %d bits, got %d", ErrUnsupportedValue, MinRSABits, MaxRSABits, bits))
	}
	g.bits = bits
	return nil
}

func (g *rsaGenerator) SetCurve(name string) error {
	return newError("keygen", KeyTypeRSA, fmt.Errorf("%w: RSA keys have no curve", ErrUnsupported))
}

func (g *rsaGenerator) SetExponent(e int) error {
	if e != rsaExponent {
		return newError("keygen", KeyTypeRSA, fmt.Errorf("%w: public exponent %d", ErrUnsupportedValue, e))
	}
	return nil
}

func (g *rsaGenerator) Go() (*AsymmetricKey, error) {
	if g.bits < MinRSABits {
		return nil, newError("keygen", KeyTypeRSA, fmt.Errorf("%w: %d-bit RSA key", ErrUnsupportedValue, g.bits))
	}
	priv, err := g.ctx.provider.GenerateRSA(g.bits)
	if err != nil {
		return nil, err
	}
	priv.Precompute()
	key := newRSAKey(g.ctx, nil, priv)
	g.ctx.logger.Debug("generated key", "type", KeyTypeRSA, "bits", g.bits)
	if err := g.ctx.record(EventKeyGenerated, map[string]string{"key_type": KeyTypeRSA, "bits": fmt.Sprint(g.bits)}); err != nil {
		key.Wipe()
		return nil, err
	}
	return key, nil
}

type ecGenerator struct {
	ctx   *Context
	curve string
}

// curveForBits maps a field size to its prime curve.
var curveForBits = map[int]string{
	224: "secp224r1",
	256: "prime256v1",
	384: "secp384r1",
	521: "secp521r1",
}

func (g *ecGenerator) SetBits(bits int) error {
	name, ok := curveForBits[bits]
	if !ok {
		return newError("keygen", KeyTypeEC, fmt.Errorf("%w: no curve of %d bits", ErrUnsupportedValue, bits))
	}
	g.curve = name
	return nil
}

func (g *ecGenerator) SetCurve(name string) error {
	if _, err := g.ctx.curves.Params(name); err != nil {
		return err
	}
	g.curve = name
	return nil
}

func (g *ecGenerator) SetExponent(int) error {
	return newError("keygen", KeyTypeEC, fmt.Errorf("%w: EC keys have no exponent", ErrUnsupported))
}

func (g *ecGenerator) Go() (*AsymmetricKey, error) {
	curve, err := g.ctx.curves.Params(g.curve)
	if err != nil {
		return nil, err
	}
	priv, err := g.ctx.provider.GenerateEC(curve)
	if err != nil {
		return nil, err
	}
	ec := EcCurve{Name: g.ctx.curves.Canonical(g.curve), OID: g.ctx.curves.ResolveOID(g.curve)}
	key := newECKey(g.ctx, nil, priv, ec)
	g.ctx.logger.Debug("generated key", "type", KeyTypeEC, "curve", ec.Name)
	if err := g.ctx.record(EventKeyGenerated, map[string]string{"key_type": KeyTypeEC, "curve": ec.Name}); err != nil {
		key.Wipe()
		return nil, err
	}
	return key, nil
}
