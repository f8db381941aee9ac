package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

// SEC1, PKCS#8 and SPKI encodings for EC keys on curves the x509 package
// does not know. The curve comes from the curve registry.

var oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

const ecPrivKeyVersion = 1

// ecPrivateKey is the SEC1 ECPrivateKey structure (RFC 5915).
type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

// pkcs8Info is the unencrypted PKCS#8 PrivateKeyInfo structure.
type pkcs8Info struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// subjectPublicKeyInfo is the X.509 SPKI structure.
type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

func marshalSEC1(d *ecKeyData, withOID bool) ([]byte, error) {
	oid, err := parseOID(d.curve.OID)
	if err != nil {
		return nil, err
	}
	key := make([]byte, (d.priv.Curve.Params().N.BitLen()+7)/8)
	d.priv.D.FillBytes(key) //nolint:staticcheck // legacy fields carry non-NIST curves
	defer wipe(key)

	pt := d.point()
	pk := ecPrivateKey{
		Version:    ecPrivKeyVersion,
		PrivateKey: key,
		PublicKey:  asn1.BitString{Bytes: pt, BitLength: 8 * len(pt)},
	}
	if withOID {
		pk.NamedCurveOID = oid
	}
	return asn1.Marshal(pk)
}

func marshalECPKCS8(d *ecKeyData) ([]byte, error) {
	oid, err := parseOID(d.curve.OID)
	if err != nil {
		return nil, err
	}
	params, err := asn1.Marshal(oid)
	if err != nil {
		return nil, err
	}
	sec1, err := marshalSEC1(d, false)
	if err != nil {
		return nil, err
	}
	return asn1.Marshal(pkcs8Info{
		Algo: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PrivateKey: sec1,
	})
}

func marshalECPKIX(d *ecKeyData) ([]byte, error) {
	oid, err := parseOID(d.curve.OID)
	if err != nil {
		return nil, err
	}
	params, err := asn1.Marshal(oid)
	if err != nil {
		return nil, err
	}
	pt := d.point()
	return asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PublicKey: asn1.BitString{Bytes: pt, BitLength: 8 * len(pt)},
	})
}

// parseSEC1 decodes an ECPrivateKey. curveOID supplies the curve when the
// structure omits it (PKCS#8 carries it in the algorithm parameters).
func parseSEC1(curves *CurveRegistry, der []byte, curveOID asn1.ObjectIdentifier) (*ecdsa.PrivateKey, EcCurve, error) {
	var pk ecPrivateKey
	if rest, err := asn1.Unmarshal(der, &pk); err != nil {
		return nil, EcCurve{}, err
	} else if len(rest) > 0 {
		return nil, EcCurve{}, errors.New("trailing data after EC private key")
	}
	if pk.Version != ecPrivKeyVersion {
		return nil, EcCurve{}, fmt.Errorf("unknown EC private key version %d", pk.Version)
	}
	oid := pk.NamedCurveOID
	if len(oid) == 0 {
		oid = curveOID
	}
	if len(oid) == 0 {
		return nil, EcCurve{}, errors.New("EC private key without named curve")
	}
	curve, ec, err := curves.curveByOID(oid)
	if err != nil {
		return nil, EcCurve{}, err
	}

	n := curve.Params().N
	d := new(big.Int).SetBytes(pk.PrivateKey)
	if d.Sign() <= 0 || d.Cmp(n) >= 0 {
		return nil, EcCurve{}, errors.New("invalid EC private scalar")
	}
	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = curve
	priv.X, priv.Y = curve.ScalarBaseMult(d.Bytes()) //nolint:staticcheck // legacy fields carry non-NIST curves
	return priv, ec, nil
}

func parseECPKCS8(curves *CurveRegistry, der []byte) (*ecdsa.PrivateKey, EcCurve, error) {
	var info pkcs8Info
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, EcCurve{}, err
	}
	if !info.Algo.Algorithm.Equal(oidPublicKeyECDSA) {
		return nil, EcCurve{}, fmt.Errorf("PKCS#8 algorithm %s is not EC", info.Algo.Algorithm)
	}
	var oid asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(info.Algo.Parameters.FullBytes, &oid); err != nil {
		return nil, EcCurve{}, fmt.Errorf("EC parameters are not a named curve: %w", err)
	}
	return parseSEC1(curves, info.PrivateKey, oid)
}

func parseECPKIX(curves *CurveRegistry, der []byte) (*ecdsa.PublicKey, EcCurve, error) {
	var spki subjectPublicKeyInfo
	if rest, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, EcCurve{}, err
	} else if len(rest) > 0 {
		return nil, EcCurve{}, errors.New("trailing data after public key")
	}
	if !spki.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
		return nil, EcCurve{}, fmt.Errorf("public key algorithm %s is not EC", spki.Algorithm.Algorithm)
	}
	var oid asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &oid); err != nil {
		return nil, EcCurve{}, fmt.Errorf("EC parameters are not a named curve: %w", err)
	}
	curve, ec, err := curves.curveByOID(oid)
	if err != nil {
		return nil, EcCurve{}, err
	}
	pub, err := decodePoint(curve, spki.PublicKey.RightAlign())
	if err != nil {
		return nil, EcCurve{}, err
	}
	return pub, ec, nil
}

// decodePoint parses an uncompressed SEC1 point and checks it is on the curve.
func decodePoint(curve elliptic.Curve, b []byte) (*ecdsa.PublicKey, error) {
	n := (curve.Params().BitSize + 7) / 8
	if len(b) != 1+2*n || b[0] != 4 {
		return nil, errors.New("unsupported EC point encoding")
	}
	x := new(big.Int).SetBytes(b[1 : 1+n])
	y := new(big.Int).SetBytes(b[1+n:])
	if !curve.IsOnCurve(x, y) { //nolint:staticcheck // legacy API covers non-NIST curves
		return nil, errors.New("EC point is not on the curve")
	}
	pub := &ecdsa.PublicKey{Curve: curve}
	pub.X, pub.Y = x, y //nolint:staticcheck // legacy fields carry non-NIST curves
	return pub, nil
}
