package crypto

import (
	"fmt"
	"math/big"
)

// Numeral is an arbitrary-precision unsigned integer holding a key component
// (modulus, exponents, curve coordinates). Its magnitude is never truncated.
type Numeral struct {
	v big.Int
}

// NumeralFromBytes interprets b as a big-endian unsigned integer.
func NumeralFromBytes(b []byte) *Numeral {
	n := &Numeral{}
	n.v.SetBytes(b)
	return n
}

// NumeralFromBig copies x. Negative values are rejected.
func NumeralFromBig(x *big.Int) (*Numeral, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: nil integer", ErrMissingArgument)
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative numeral", ErrUnsupportedValue)
	}
	n := &Numeral{}
	n.v.Set(x)
	return n, nil
}

// NumeralFromDecimal parses a base-10 string.
func NumeralFromDecimal(s string) (*Numeral, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid decimal numeral %q", ErrUnsupportedValue, s)
	}
	return NumeralFromBig(x)
}

// numeralOf wraps a component that is known to be non-negative. nil stays nil.
func numeralOf(x *big.Int) *Numeral {
	if x == nil {
		return nil
	}
	n := &Numeral{}
	n.v.Set(x)
	return n
}

// Bytes returns the minimal big-endian encoding (empty for zero).
func (n *Numeral) Bytes() []byte { return n.v.Bytes() }

// PaddedBytes returns the big-endian encoding left-padded to size bytes.
// It fails rather than truncate when the value does not fit.
func (n *Numeral) PaddedBytes(size int) ([]byte, error) {
	raw := n.v.Bytes()
	if len(raw) > size {
		return nil, fmt.Errorf("%w: numeral needs %d bytes, %d requested", ErrUnsupportedValue, len(raw), size)
	}
	out := make([]byte, size)
	copy(out[size-len(raw):], raw)
	return out, nil
}

// Binary returns the minimal encoding as BinaryData.
func (n *Numeral) Binary() BinaryData { return BinaryData{b: n.v.Bytes()} }

// BitLen returns the length of the absolute value in bits.
func (n *Numeral) BitLen() int { return n.v.BitLen() }

// Big returns a copy as *big.Int.
func (n *Numeral) Big() *big.Int { return new(big.Int).Set(&n.v) }

// Equal reports numeric equality.
func (n *Numeral) Equal(o *Numeral) bool {
	if n == nil || o == nil {
		return n == o
	}
	return n.v.Cmp(&o.v) == 0
}

// String returns the decimal representation.
func (n *Numeral) String() string { return n.v.String() }

// Hex returns the lowercase hex representation without prefix.
func (n *Numeral) Hex() string { return n.v.Text(16) }

// wipeBig zeroes the words backing x, then sets it to zero.
func wipeBig(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}
