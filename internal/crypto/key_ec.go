package crypto

// EC accessors. Each returns nil (or "") on an RSA key.

// X returns the affine x coordinate of the public point.
func (k *AsymmetricKey) X() *Numeral {
	if k.ec == nil {
		return nil
	}
	return numeralOf(k.ec.pub.X) //nolint:staticcheck // legacy fields carry non-NIST curves
}

// Y returns the affine y coordinate of the public point.
func (k *AsymmetricKey) Y() *Numeral {
	if k.ec == nil {
		return nil
	}
	return numeralOf(k.ec.pub.Y) //nolint:staticcheck // legacy fields carry non-NIST curves
}

// Curve returns the canonical curve name.
func (k *AsymmetricKey) Curve() string {
	if k.ec == nil {
		return ""
	}
	return k.ec.curve.Name
}

// CurveOID returns the curve OID in dotted notation.
func (k *AsymmetricKey) CurveOID() string {
	if k.ec == nil {
		return ""
	}
	return k.ec.curve.OID
}

// byteLen returns the field element size in bytes.
func (d *ecKeyData) byteLen() int {
	return (d.pub.Curve.Params().BitSize + 7) / 8
}

// point returns the uncompressed SEC1 encoding 0x04 || X || Y of the public point.
func (d *ecKeyData) point() []byte {
	n := d.byteLen()
	out := make([]byte, 1+2*n)
	out[0] = 4
	d.pub.X.FillBytes(out[1 : 1+n]) //nolint:staticcheck // legacy fields carry non-NIST curves
	d.pub.Y.FillBytes(out[1+n:])    //nolint:staticcheck // legacy fields carry non-NIST curves
	return out
}
