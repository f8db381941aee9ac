package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/youmark/pkcs8"
	"software.sslmate.com/src/go-pkcs12"
)

// ParseOption configures key parsing.
type ParseOption func(*parseConfig)

type parseConfig struct {
	password []byte
	format   string
}

// WithPassword supplies the password for encrypted key material.
func WithPassword(password []byte) ParseOption {
	return func(c *parseConfig) { c.password = password }
}

// WithFormat forces the input format (pem, der, pkcs12, cose) instead of detecting it.
func WithFormat(format string) ParseOption {
	return func(c *parseConfig) { c.format = strings.ToLower(format) }
}

var (
	oidPBES2  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
	oidPBKDF2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}
	oidScrypt = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11591, 4, 11}

	oidHMACWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 7}
	oidHMACWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}
)

// pbes2Ciphers are the PBES2 encryption schemes the pkcs8 decoder implements.
var pbes2Ciphers = []asn1.ObjectIdentifier{
	{2, 16, 840, 1, 101, 3, 4, 1, 2},  // aes128-CBC
	{2, 16, 840, 1, 101, 3, 4, 1, 22}, // aes192-CBC
	{2, 16, 840, 1, 101, 3, 4, 1, 42}, // aes256-CBC
	{2, 16, 840, 1, 101, 3, 4, 1, 6},  // aes128-GCM
	{2, 16, 840, 1, 101, 3, 4, 1, 26}, // aes192-GCM
	{2, 16, 840, 1, 101, 3, 4, 1, 46}, // aes256-GCM
	{1, 2, 840, 113549, 3, 7},         // des-EDE3-CBC
}

// encryptedPKCS8 is the outer EncryptedPrivateKeyInfo structure.
type encryptedPKCS8 struct {
	Algo          pkix.AlgorithmIdentifier
	EncryptedData []byte
}

type pbes2Params struct {
	KeyDerivationFunc pkix.AlgorithmIdentifier
	EncryptionScheme  pkix.AlgorithmIdentifier
}

type pbkdf2Params struct {
	Salt           []byte
	IterationCount int
	KeyLength      int                      `asn1:"optional"`
	PRF            pkix.AlgorithmIdentifier `asn1:"optional"`
}

// pfxHeader is enough of a PFX to tell it apart from other DER structures.
type pfxHeader struct {
	Version  int
	AuthSafe asn1.RawValue
	MacData  asn1.RawValue `asn1:"optional"`
}

// ParseKey decodes an RSA or EC key from PEM, DER, PKCS#12 or COSE_Key.
// Encrypted input without a password fails with ErrPasswordRequired; a wrong
// password fails with ErrDecryptionFailed.
func (c *Context) ParseKey(data []byte, opts ...ParseOption) (*AsymmetricKey, error) {
	var cfg parseConfig
	for _, o := range opts {
		o(&cfg)
	}
	if len(data) == 0 {
		return nil, newError("parse", "", fmt.Errorf("%w: empty key data", ErrMissingArgument))
	}

	format := cfg.format
	if format == "" {
		format = detectFormat(data)
	}

	var (
		key *AsymmetricKey
		err error
	)
	switch format {
	case FormatPEM:
		key, err = c.parsePEM(data, cfg.password)
	case FormatDER:
		key, err = c.parseDER(data, cfg.password)
	case FormatPKCS12:
		key, err = c.parsePKCS12(data, cfg.password)
	case FormatCOSE:
		key, err = parseCOSEKey(c, data)
	default:
		return nil, newError("parse", "", fmt.Errorf("%w: format %q", ErrUnsupportedValue, format))
	}
	if err != nil {
		return nil, parseError(err)
	}

	if _, ok := c.registry.Lookup(BaseAsymmetricKey, key.TypeClass()); !ok {
		return nil, newError("parse", key.TypeClass(), fmt.Errorf("%w: %s", ErrUnsupportedTypeClass, BaseAsymmetricKey))
	}
	c.logger.Debug("parsed key", "format", format, "type", key.TypeClass(), "bits", key.NumBits(), "private", key.HasPrivate())
	if err := c.record(EventKeyImported, map[string]string{
		"key_type": key.TypeClass(),
		"format":   format,
		"private":  fmt.Sprint(key.HasPrivate()),
	}); err != nil {
		key.Wipe()
		return nil, err
	}
	return key, nil
}

// LoadKey reads and parses the key file at path.
func (c *Context) LoadKey(path string, opts ...ParseOption) (*AsymmetricKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError("load", "", fmt.Errorf("%w: failed to read key file: %w", ErrPersistence, err))
	}
	defer wipe(data)
	return c.ParseKey(data, opts...)
}

// parseError classifies a parse failure. Typed errors pass through; anything
// else is malformed key material.
func parseError(err error) error {
	var ce *CryptoError
	if errors.As(err, &ce) {
		return err
	}
	for _, sentinel := range []error{ErrPasswordRequired, ErrDecryptionFailed, ErrMalformedKey, ErrUnsupportedValue, ErrUnsupported, ErrUnsupportedTypeClass} {
		if errors.Is(err, sentinel) {
			return newError("parse", "", err)
		}
	}
	return newError("parse", "", fmt.Errorf("%w: %w", ErrMalformedKey, err))
}

func detectFormat(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("-----BEGIN ")) {
		return FormatPEM
	}
	// CBOR map header (major type 5).
	if data[0]>>5 == 5 {
		return FormatCOSE
	}
	if isPFX(data) {
		return FormatPKCS12
	}
	return FormatDER
}

func isPFX(der []byte) bool {
	var h pfxHeader
	_, err := asn1.Unmarshal(der, &h)
	return err == nil && h.Version == 3
}

// isEncryptedPKCS8 matches the EncryptedPrivateKeyInfo shape whatever the scheme.
func isEncryptedPKCS8(der []byte) bool {
	var e encryptedPKCS8
	rest, err := asn1.Unmarshal(der, &e)
	return err == nil && len(rest) == 0 && len(e.Algo.Algorithm) > 0 && len(e.EncryptedData) > 0
}

// parsePEM uses the first key block; a lone certificate yields its public key.
func (c *Context) parsePEM(data, password []byte) (*AsymmetricKey, error) {
	var cert *pem.Block
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			if cert == nil {
				cert = block
			}
			continue
		}
		return c.parsePEMBlock(block, password)
	}
	if cert != nil {
		return c.parsePEMBlock(cert, password)
	}
	return nil, fmt.Errorf("%w: no PEM block found", ErrMalformedKey)
}

func (c *Context) parsePEMBlock(block *pem.Block, password []byte) (*AsymmetricKey, error) {
	der := block.Bytes

	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy encrypted PEM
		if len(password) == 0 {
			return nil, fmt.Errorf("%w: %s is encrypted", ErrPasswordRequired, block.Type)
		}
		plain, err := x509.DecryptPEMBlock(block, password) //nolint:staticcheck // legacy encrypted PEM
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
		}
		defer wipe(plain)
		key, err := c.parseTyped(block.Type, plain)
		if err != nil {
			// A wrong password can still yield valid padding; the DER then fails to parse.
			return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
		}
		return key, nil
	}

	if block.Type == "ENCRYPTED PRIVATE KEY" {
		return c.parseEncryptedPKCS8(der, password)
	}
	return c.parseTyped(block.Type, der)
}

// parseTyped parses DER whose structure is named by a PEM type.
func (c *Context) parseTyped(pemType string, der []byte) (*AsymmetricKey, error) {
	switch pemType {
	case "PRIVATE KEY":
		if priv, err := x509.ParsePKCS8PrivateKey(der); err == nil {
			return c.keyFromNative(priv)
		}
		priv, curve, err := parseECPKCS8(c.curves, der)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse PKCS#8 key: %w", ErrMalformedKey, err)
		}
		return newECKey(c, nil, priv, curve), nil

	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse RSA key: %w", ErrMalformedKey, err)
		}
		return c.keyFromNative(priv)

	case "EC PRIVATE KEY":
		if priv, err := x509.ParseECPrivateKey(der); err == nil {
			return c.keyFromNative(priv)
		}
		priv, curve, err := parseSEC1(c.curves, der, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse EC key: %w", ErrMalformedKey, err)
		}
		return newECKey(c, nil, priv, curve), nil

	case "PUBLIC KEY":
		if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
			return c.keyFromNative(pub)
		}
		pub, curve, err := parseECPKIX(c.curves, der)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse public key: %w", ErrMalformedKey, err)
		}
		return newECKey(c, pub, nil, curve), nil

	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse RSA public key: %w", ErrMalformedKey, err)
		}
		return c.keyFromNative(pub)

	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse certificate: %w", ErrMalformedKey, err)
		}
		return c.keyFromNative(cert.PublicKey)

	default:
		return nil, fmt.Errorf("%w: unknown PEM type %s", ErrMalformedKey, pemType)
	}
}

// parseDER tries each structure in turn.
func (c *Context) parseDER(der, password []byte) (*AsymmetricKey, error) {
	if isEncryptedPKCS8(der) {
		return c.parseEncryptedPKCS8(der, password)
	}
	for _, pemType := range []string{"PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY", "PUBLIC KEY", "RSA PUBLIC KEY", "CERTIFICATE"} {
		if key, err := c.parseTyped(pemType, der); err == nil {
			return key, nil
		}
	}
	if isPFX(der) {
		return c.parsePKCS12(der, password)
	}
	return nil, fmt.Errorf("%w: unrecognized DER structure", ErrMalformedKey)
}

func (c *Context) parseEncryptedPKCS8(der, password []byte) (*AsymmetricKey, error) {
	var e encryptedPKCS8
	if _, err := asn1.Unmarshal(der, &e); err != nil {
		return nil, fmt.Errorf("%w: failed to parse EncryptedPrivateKeyInfo: %w", ErrMalformedKey, err)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: ENCRYPTED PRIVATE KEY", ErrPasswordRequired)
	}
	if err := checkPBES2(e.Algo); err != nil {
		return nil, err
	}
	priv, err := pkcs8.ParsePKCS8PrivateKey(der, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return c.keyFromNative(priv)
}

// checkPBES2 rejects encryption schemes the pkcs8 decoder cannot handle, so
// that its remaining failures can be read as a wrong password.
func checkPBES2(algo pkix.AlgorithmIdentifier) error {
	if !algo.Algorithm.Equal(oidPBES2) {
		return fmt.Errorf("%w: key encryption scheme %s (only PBES2 is supported)", ErrUnsupportedValue, algo.Algorithm)
	}
	var params pbes2Params
	if _, err := asn1.Unmarshal(algo.Parameters.FullBytes, &params); err != nil {
		return fmt.Errorf("%w: failed to parse PBES2 parameters: %w", ErrMalformedKey, err)
	}

	switch kdf := params.KeyDerivationFunc; {
	case kdf.Algorithm.Equal(oidScrypt):
	case kdf.Algorithm.Equal(oidPBKDF2):
		var p pbkdf2Params
		if _, err := asn1.Unmarshal(kdf.Parameters.FullBytes, &p); err != nil {
			return fmt.Errorf("%w: failed to parse PBKDF2 parameters: %w", ErrMalformedKey, err)
		}
		if prf := p.PRF.Algorithm; len(prf) > 0 && !prf.Equal(oidHMACWithSHA1) && !prf.Equal(oidHMACWithSHA256) {
			return fmt.Errorf("%w: PBKDF2 PRF %s", ErrUnsupportedValue, prf)
		}
	default:
		return fmt.Errorf("%w: PBES2 key derivation %s", ErrUnsupportedValue, kdf.Algorithm)
	}

	for _, oid := range pbes2Ciphers {
		if params.EncryptionScheme.Algorithm.Equal(oid) {
			return nil
		}
	}
	return fmt.Errorf("%w: PBES2 cipher %s", ErrUnsupportedValue, params.EncryptionScheme.Algorithm)
}

func (c *Context) parsePKCS12(data, password []byte) (*AsymmetricKey, error) {
	priv, _, _, err := pkcs12.DecodeChain(data, string(password))
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, pkcs12.ErrDecryption) {
			if len(password) == 0 {
				return nil, fmt.Errorf("%w: PKCS#12 container is protected", ErrPasswordRequired)
			}
			return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return c.keyFromNative(priv)
}

// keyFromNative wraps a key produced by the x509 or container parsers.
func (c *Context) keyFromNative(k any) (*AsymmetricKey, error) {
	switch key := k.(type) {
	case *rsa.PrivateKey:
		key.Precompute()
		return newRSAKey(c, nil, key), nil
	case *rsa.PublicKey:
		return newRSAKey(c, key, nil), nil
	case *ecdsa.PrivateKey:
		curve, ok := c.curves.Lookup(key.Curve)
		if !ok {
			return nil, fmt.Errorf("%w: curve %s not registered", ErrUnsupportedValue, key.Curve.Params().Name)
		}
		return newECKey(c, nil, key, curve), nil
	case *ecdsa.PublicKey:
		curve, ok := c.curves.Lookup(key.Curve)
		if !ok {
			return nil, fmt.Errorf("%w: curve %s not registered", ErrUnsupportedValue, key.Curve.Params().Name)
		}
		return newECKey(c, key, nil, curve), nil
	default:
		return nil, fmt.Errorf("%w: key type %T", ErrUnsupportedTypeClass, k)
	}
}
