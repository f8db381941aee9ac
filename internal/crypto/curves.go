package crypto

import (
	"crypto/elliptic"
	"encoding/asn1"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/emmansun/gmsm/sm2"
)

// EcCurve is an immutable (canonical name, OID) pair.
type EcCurve struct {
	Name string
	OID  string
}

// CurveDef is one row of the curve table. Curve is nil when no native
// implementation backs the parameter set.
type CurveDef struct {
	Name  string
	OID   string
	Curve func() elliptic.Curve
}

// builtinCurves lists canonical names first, then historical aliases.
var builtinCurves = []CurveDef{
	{Name: "prime256v1", OID: "1.2.840.10045.3.1.7", Curve: elliptic.P256},
	{Name: "secp384r1", OID: "1.3.132.0.34", Curve: elliptic.P384},
	{Name: "secp521r1", OID: "1.3.132.0.35", Curve: elliptic.P521},
	{Name: "secp224r1", OID: "1.3.132.0.33", Curve: elliptic.P224},
	{Name: "sm2p256v1", OID: "1.2.156.10197.1.301", Curve: sm2.P256},
	{Name: "secp256k1", OID: "1.3.132.0.10"},
	{Name: "prime192v1", OID: "1.2.840.10045.3.1.1"},
	{Name: "brainpoolP256r1", OID: "1.3.36.3.3.2.8.1.1.7"},
	{Name: "brainpoolP384r1", OID: "1.3.36.3.3.2.8.1.1.11"},
	{Name: "brainpoolP512r1", OID: "1.3.36.3.3.2.8.1.1.13"},

	{Name: "P-256", OID: "1.2.840.10045.3.1.7"},
	{Name: "secp256r1", OID: "1.2.840.10045.3.1.7"},
	{Name: "P-384", OID: "1.3.132.0.34"},
	{Name: "P-521", OID: "1.3.132.0.35"},
	{Name: "P-224", OID: "1.3.132.0.33"},
	{Name: "SM2", OID: "1.2.156.10197.1.301"},
	{Name: "secp192r1", OID: "1.2.840.10045.3.1.1"},
}

// CurveRegistry is a bidirectional name <-> OID table for elliptic curves.
// It is built once on first use and read-only afterwards. For each name and
// each OID the first row wins; later duplicates are ignored.
type CurveRegistry struct {
	defs []CurveDef

	once    sync.Once
	byName  map[string]string
	byOID   map[string]string
	native  map[string]func() elliptic.Curve
	entries []EcCurve
}

// NewCurveRegistry creates a registry over the builtin table followed by extra rows.
func NewCurveRegistry(extra ...CurveDef) *CurveRegistry {
	defs := make([]CurveDef, 0, len(builtinCurves)+len(extra))
	defs = append(defs, builtinCurves...)
	defs = append(defs, extra...)
	return &CurveRegistry{defs: defs}
}

func (c *CurveRegistry) build() {
	c.once.Do(func() {
		c.byName = make(map[string]string, len(c.defs))
		c.byOID = make(map[string]string, len(c.defs))
		c.native = make(map[string]func() elliptic.Curve)
		for _, d := range c.defs {
			if d.Name == "" || d.OID == "" {
				continue
			}
			if _, ok := c.byName[d.Name]; !ok {
				c.byName[d.Name] = d.OID
			}
			if _, ok := c.byOID[d.OID]; !ok {
				c.byOID[d.OID] = d.Name
				c.entries = append(c.entries, EcCurve{Name: d.Name, OID: d.OID})
			}
			if _, ok := c.native[d.OID]; !ok && d.Curve != nil {
				c.native[d.OID] = d.Curve
			}
		}
	})
}

// ResolveOID returns the OID for a curve name, or "" when unknown.
func (c *CurveRegistry) ResolveOID(name string) string {
	c.build()
	return c.byName[name]
}

// ResolveName returns the canonical name for an OID, or "" when unknown.
func (c *CurveRegistry) ResolveName(oid string) string {
	c.build()
	return c.byOID[oid]
}

// Canonical maps any known alias to the canonical curve name, or "" when unknown.
func (c *CurveRegistry) Canonical(name string) string {
	oid := c.ResolveOID(name)
	if oid == "" {
		return ""
	}
	return c.byOID[oid]
}

// Entries returns the canonical (name, OID) pairs in table order.
func (c *CurveRegistry) Entries() []EcCurve {
	c.build()
	out := make([]EcCurve, len(c.entries))
	copy(out, c.entries)
	return out
}

// Params returns the native curve for name or any of its aliases.
func (c *CurveRegistry) Params(name string) (elliptic.Curve, error) {
	oid := c.ResolveOID(name)
	if oid == "" {
		return nil, newError("curve", name, fmt.Errorf("%w: unknown curve", ErrUnsupportedValue))
	}
	f, ok := c.native[oid]
	if !ok {
		return nil, newError("curve", name, fmt.Errorf("%w: no native implementation for %s", ErrUnsupported, c.byOID[oid]))
	}
	return f(), nil
}

// Lookup finds the table entry for a native curve.
func (c *CurveRegistry) Lookup(curve elliptic.Curve) (EcCurve, bool) {
	c.build()
	if curve == nil {
		return EcCurve{}, false
	}
	for _, e := range c.entries {
		if f, ok := c.native[e.OID]; ok && f() == curve {
			return e, true
		}
	}
	return EcCurve{}, false
}

// curveByOID returns the native curve for an ASN.1 OID.
func (c *CurveRegistry) curveByOID(oid asn1.ObjectIdentifier) (elliptic.Curve, EcCurve, error) {
	c.build()
	s := oid.String()
	name, ok := c.byOID[s]
	if !ok {
		return nil, EcCurve{}, fmt.Errorf("%w: unknown curve OID %s", ErrUnsupportedValue, s)
	}
	f, ok := c.native[s]
	if !ok {
		return nil, EcCurve{}, fmt.Errorf("%w: no native implementation for %s", ErrUnsupported, name)
	}
	return f(), EcCurve{Name: name, OID: s}, nil
}

// parseOID converts dotted notation to an ASN.1 object identifier.
func parseOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: invalid OID %q", ErrUnsupportedValue, s)
	}
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: invalid OID %q", ErrUnsupportedValue, s)
		}
		oid[i] = v
	}
	return oid, nil
}
