package crypto

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	gocose "github.com/veraison/go-cose"
)

// COSE_Key labels (RFC 9052, RFC 9053, RFC 8230).
const (
	coseKeyKty = 1
	coseKeyAlg = 3

	coseKtyEC2 = 2
	coseKtyRSA = 3

	coseEC2Crv = -1
	coseEC2X   = -2
	coseEC2Y   = -3
	coseEC2D   = -4

	coseRSAN    = -1
	coseRSAE    = -2
	coseRSAD    = -4
	coseRSAP    = -5
	coseRSAQ    = -6
	coseRSADP   = -7
	coseRSADQ   = -8
	coseRSAQInv = -9
)

// coseCurve binds a COSE curve identifier to a curve name and its ECDSA algorithm.
type coseCurve struct {
	crv  int
	name string
	alg  gocose.Algorithm
}

var coseCurves = []coseCurve{
	{crv: 1, name: "prime256v1", alg: gocose.AlgorithmES256},
	{crv: 2, name: "secp384r1", alg: gocose.AlgorithmES384},
	{crv: 3, name: "secp521r1", alg: gocose.AlgorithmES512},
}

var coseEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// marshalCOSEKey encodes k as a deterministic CBOR COSE_Key.
func marshalCOSEKey(k *AsymmetricKey, private bool) ([]byte, error) {
	m := map[int]any{}

	switch {
	case k.rsa != nil:
		m[coseKeyKty] = coseKtyRSA
		m[coseRSAN] = k.rsa.pub.N.Bytes()
		m[coseRSAE] = big.NewInt(int64(k.rsa.pub.E)).Bytes()
		if private {
			priv := k.rsa.priv
			m[coseRSAD] = priv.D.Bytes()
			m[coseRSAP] = k.P().Bytes()
			m[coseRSAQ] = k.Q().Bytes()
			m[coseRSADP] = k.DP().Bytes()
			m[coseRSADQ] = k.DQ().Bytes()
			m[coseRSAQInv] = k.QInv().Bytes()
		}

	case k.ec != nil:
		cc, ok := coseCurveByName(k.ec.curve.Name)
		if !ok {
			return nil, fmt.Errorf("%w: curve %s has no COSE identifier", ErrUnsupportedValue, k.ec.curve.Name)
		}
		n := k.ec.byteLen()
		pt := k.ec.point()
		m[coseKeyKty] = coseKtyEC2
		m[coseKeyAlg] = int64(cc.alg)
		m[coseEC2Crv] = cc.crv
		m[coseEC2X] = pt[1 : 1+n]
		m[coseEC2Y] = pt[1+n:]
		if private {
			d := make([]byte, n)
			k.ec.priv.D.FillBytes(d) //nolint:staticcheck // legacy fields carry non-NIST curves
			m[coseEC2D] = d
		}
	}
	return coseEncMode.Marshal(m)
}

// parseCOSEKey decodes a COSE_Key of type EC2 or RSA.
func parseCOSEKey(ctx *Context, data []byte) (*AsymmetricKey, error) {
	var m map[int]cbor.RawMessage
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	var kty int
	if err := cborField(m, coseKeyKty, &kty); err != nil {
		return nil, err
	}

	switch kty {
	case coseKtyRSA:
		n, err := cborInt(m, coseRSAN)
		if err != nil {
			return nil, err
		}
		e, err := cborInt(m, coseRSAE)
		if err != nil {
			return nil, err
		}
		if !e.IsInt64() || e.Int64() > 1<<31-1 {
			return nil, errors.New("RSA public exponent out of range")
		}
		pub := &rsa.PublicKey{N: n, E: int(e.Int64())}
		if _, ok := m[coseRSAD]; !ok {
			return newRSAKey(ctx, pub, nil), nil
		}
		d, err := cborInt(m, coseRSAD)
		if err != nil {
			return nil, err
		}
		p, err := cborInt(m, coseRSAP)
		if err != nil {
			return nil, err
		}
		q, err := cborInt(m, coseRSAQ)
		if err != nil {
			return nil, err
		}
		priv := &rsa.PrivateKey{PublicKey: *pub, D: d, Primes: []*big.Int{p, q}}
		if err := priv.Validate(); err != nil {
			return nil, err
		}
		priv.Precompute()
		return newRSAKey(ctx, nil, priv), nil

	case coseKtyEC2:
		var crv int
		if err := cborField(m, coseEC2Crv, &crv); err != nil {
			return nil, err
		}
		cc, ok := coseCurveByID(crv)
		if !ok {
			return nil, fmt.Errorf("unsupported COSE curve %d", crv)
		}
		curve, err := ctx.curves.Params(cc.name)
		if err != nil {
			return nil, err
		}
		ec := EcCurve{Name: cc.name, OID: ctx.curves.ResolveOID(cc.name)}
		var x, y []byte
		if err := cborField(m, coseEC2X, &x); err != nil {
			return nil, err
		}
		if err := cborField(m, coseEC2Y, &y); err != nil {
			return nil, err
		}
		n := (curve.Params().BitSize + 7) / 8
		if len(x) > n || len(y) > n {
			return nil, errors.New("EC coordinate longer than field size")
		}
		pt := make([]byte, 1+2*n)
		pt[0] = 4
		copy(pt[1+n-len(x):1+n], x)
		copy(pt[1+2*n-len(y):], y)
		pub, err := decodePoint(curve, pt)
		if err != nil {
			return nil, err
		}
		if _, ok := m[coseEC2D]; !ok {
			return newECKey(ctx, pub, nil, ec), nil
		}
		d, err := cborInt(m, coseEC2D)
		if err != nil {
			return nil, err
		}
		if d.Sign() <= 0 || d.Cmp(curve.Params().N) >= 0 {
			return nil, fmt.Errorf("%w: invalid EC private scalar", ErrMalformedKey)
		}
		gx, gy := curve.ScalarBaseMult(d.Bytes()) //nolint:staticcheck // legacy fields carry non-NIST curves
		if gx.Cmp(pub.X) != 0 || gy.Cmp(pub.Y) != 0 {
			return nil, fmt.Errorf("%w: EC private scalar does not match public point", ErrMalformedKey)
		}
		priv := &ecdsa.PrivateKey{PublicKey: *pub, D: d}
		return newECKey(ctx, nil, priv, ec), nil

	default:
		return nil, fmt.Errorf("unsupported COSE key type %d", kty)
	}
}

func cborField(m map[int]cbor.RawMessage, label int, v any) error {
	raw, ok := m[label]
	if !ok {
		return fmt.Errorf("COSE_Key label %d missing", label)
	}
	if err := cbor.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("COSE_Key label %d: %w", label, err)
	}
	return nil
}

func cborInt(m map[int]cbor.RawMessage, label int) (*big.Int, error) {
	var b []byte
	if err := cborField(m, label, &b); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func coseCurveByName(name string) (coseCurve, bool) {
	for _, c := range coseCurves {
		if c.name == name {
			return c, true
		}
	}
	return coseCurve{}, false
}

func coseCurveByID(crv int) (coseCurve, bool) {
	for _, c := range coseCurves {
		if c.crv == crv {
			return c, true
		}
	}
	return coseCurve{}, false
}
