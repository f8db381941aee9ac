package crypto

import (
	"crypto/rsa"
	"math/big"
)

// RSA component accessors. Each returns nil when the component is absent,
// including on an EC key.

// N returns the RSA modulus.
func (k *AsymmetricKey) N() *Numeral {
	if k.rsa == nil {
		return nil
	}
	return numeralOf(k.rsa.pub.N)
}

// E returns the RSA public exponent.
func (k *AsymmetricKey) E() *Numeral {
	if k.rsa == nil {
		return nil
	}
	return numeralOf(big.NewInt(int64(k.rsa.pub.E)))
}

// D returns the private exponent for RSA, or the private scalar for EC.
func (k *AsymmetricKey) D() *Numeral {
	switch {
	case k.rsa != nil && k.rsa.priv != nil:
		return numeralOf(k.rsa.priv.D)
	case k.ec != nil && k.ec.priv != nil:
		return numeralOf(k.ec.priv.D) //nolint:staticcheck // legacy fields carry non-NIST curves
	}
	return nil
}

// P returns the first RSA prime.
func (k *AsymmetricKey) P() *Numeral { return k.prime(0) }

// Q returns the second RSA prime.
func (k *AsymmetricKey) Q() *Numeral { return k.prime(1) }

// DP returns D mod (P-1).
func (k *AsymmetricKey) DP() *Numeral {
	if pc := k.precomputed(); pc != nil {
		return numeralOf(pc.Dp)
	}
	return nil
}

// DQ returns D mod (Q-1).
func (k *AsymmetricKey) DQ() *Numeral {
	if pc := k.precomputed(); pc != nil {
		return numeralOf(pc.Dq)
	}
	return nil
}

// QInv returns Q^-1 mod P.
func (k *AsymmetricKey) QInv() *Numeral {
	if pc := k.precomputed(); pc != nil {
		return numeralOf(pc.Qinv)
	}
	return nil
}

func (k *AsymmetricKey) prime(i int) *Numeral {
	if k.rsa == nil || k.rsa.priv == nil || len(k.rsa.priv.Primes) <= i {
		return nil
	}
	return numeralOf(k.rsa.priv.Primes[i])
}

func (k *AsymmetricKey) precomputed() *rsa.PrecomputedValues {
	if k.rsa == nil || k.rsa.priv == nil {
		return nil
	}
	priv := k.rsa.priv
	if priv.Precomputed.Dp == nil {
		priv.Precompute()
	}
	if priv.Precomputed.Dp == nil {
		return nil
	}
	return &priv.Precomputed
}
