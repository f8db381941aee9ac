package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// BinaryData is an immutable byte buffer.
// It is the currency for digests, keys in binary form and cipher payloads.
type BinaryData struct {
	b []byte
}

// FromBytes copies b into a new BinaryData.
func FromBytes(b []byte) BinaryData {
	if b == nil {
		return BinaryData{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	return BinaryData{b: c}
}

// FromString returns the UTF-8 bytes of s.
func FromString(s string) BinaryData {
	return BinaryData{b: []byte(s)}
}

// FromHex decodes lower or upper case hex.
func FromHex(s string) (BinaryData, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return BinaryData{}, fmt.Errorf("%w: invalid hex: %v", ErrUnsupportedValue, err)
	}
	return BinaryData{b: b}, nil
}

// FromBase64 decodes standard base64 (padded or not).
func FromBase64(s string) (BinaryData, error) {
	enc := base64.StdEncoding
	if !strings.HasSuffix(s, "=") && len(s)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	b, err := enc.DecodeString(s)
	if err != nil {
		return BinaryData{}, fmt.Errorf("%w: invalid base64: %v", ErrUnsupportedValue, err)
	}
	return BinaryData{b: b}, nil
}

// FromBase64URL decodes URL-safe base64 (padded or not).
func FromBase64URL(s string) (BinaryData, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return BinaryData{}, fmt.Errorf("%w: invalid base64url: %v", ErrUnsupportedValue, err)
	}
	return BinaryData{b: b}, nil
}

// Bytes returns a copy of the raw bytes.
func (d BinaryData) Bytes() []byte {
	c := make([]byte, len(d.b))
	copy(c, d.b)
	return c
}

// Len returns the number of bytes.
func (d BinaryData) Len() int { return len(d.b) }

// IsEmpty reports whether the buffer holds no bytes.
func (d BinaryData) IsEmpty() bool { return len(d.b) == 0 }

// Hex returns the lowercase hex encoding.
func (d BinaryData) Hex() string { return hex.EncodeToString(d.b) }

// HexUpper returns the uppercase hex encoding.
func (d BinaryData) HexUpper() string { return strings.ToUpper(hex.EncodeToString(d.b)) }

// Base64 returns the padded standard base64 encoding.
func (d BinaryData) Base64() string { return base64.StdEncoding.EncodeToString(d.b) }

// Base64URL returns the unpadded URL-safe base64 encoding.
func (d BinaryData) Base64URL() string { return base64.RawURLEncoding.EncodeToString(d.b) }

// Equal compares in constant time.
func (d BinaryData) Equal(o BinaryData) bool {
	return len(d.b) == len(o.b) && subtle.ConstantTimeCompare(d.b, o.b) == 1
}

// String returns the lowercase hex encoding.
func (d BinaryData) String() string { return d.Hex() }

// MarshalText encodes as standard base64 (used by YAML and JSON).
func (d BinaryData) MarshalText() ([]byte, error) {
	return []byte(d.Base64()), nil
}

// UnmarshalText decodes standard base64.
func (d *BinaryData) UnmarshalText(text []byte) error {
	v, err := FromBase64(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// concat joins buffers into a new BinaryData without an extra copy per part.
func concat(parts [][]byte) BinaryData {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return BinaryData{b: out}
}

// wipe zeroes b in place.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Wipe zeroes the underlying buffer. Use it only on secrets the caller owns.
func (d BinaryData) Wipe() { wipe(d.b) }
