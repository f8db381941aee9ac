package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/youmark/pkcs8"
	"software.sslmate.com/src/go-pkcs12"
)

// Export formats.
const (
	FormatPEM    = "pem"
	FormatDER    = "der"
	FormatPKCS12 = "pkcs12"
	FormatCOSE   = "cose"
)

// ExportOptions controls key export.
type ExportOptions struct {
	// Private exports the private half. It fails on a public-only key.
	Private bool

	// Password protects private key material. Required for PKCS#12.
	Password []byte

	// Cipher selects the encryption: legacy PEM ciphers (aes-128-cbc, aes-192-cbc,
	// aes-256-cbc, des-ede3-cbc, des-cbc), PBES2 ciphers for PKCS#8 (aes-128-cbc,
	// aes-192-cbc, aes-256-cbc, aes-128-gcm, aes-192-gcm, aes-256-gcm, des-ede3-cbc)
	// or "legacy" for a PKCS#12 container readable by old OpenSSL. Default aes-256-cbc.
	Cipher string

	// PKCS8 writes private keys as PKCS#8 ("PRIVATE KEY"); with a password, PBES2.
	PKCS8 bool

	// Certificate goes into a PKCS#12 container. A self-signed placeholder is
	// generated when nil.
	Certificate *x509.Certificate
}

var legacyPEMCiphers = map[string]x509.PEMCipher{
	"aes-128-cbc":  x509.PEMCipherAES128,
	"aes-192-cbc":  x509.PEMCipherAES192,
	"aes-256-cbc":  x509.PEMCipherAES256,
	"des-ede3-cbc": x509.PEMCipher3DES,
	"des-cbc":      x509.PEMCipherDES,
}

var pkcs8Ciphers = map[string]pkcs8.Cipher{
	"aes-128-cbc":  pkcs8.AES128CBC,
	"aes-192-cbc":  pkcs8.AES192CBC,
	"aes-256-cbc":  pkcs8.AES256CBC,
	"aes-128-gcm":  pkcs8.AES128GCM,
	"aes-192-gcm":  pkcs8.AES192GCM,
	"aes-256-gcm":  pkcs8.AES256GCM,
	"des-ede3-cbc": pkcs8.TripleDESCBC,
}

const (
	defaultExportCipher = "aes-256-cbc"
	pbkdf2Iterations    = 600000
	pbkdf2SaltSize      = 16
)

// Export encodes the key. Public export always works; private export needs
// the private half and, for PKCS#12, a password.
func (k *AsymmetricKey) Export(format string, opts ExportOptions) (BinaryData, error) {
	tc := k.TypeClass()
	if opts.Private && !k.HasPrivate() {
		return BinaryData{}, newError("export", tc, fmt.Errorf("%w: private export of a public-only key", ErrMissingArgument))
	}

	var (
		out []byte
		err error
	)
	switch strings.ToLower(format) {
	case FormatPEM:
		var block *pem.Block
		block, err = k.pemBlock(opts)
		if err == nil {
			out = pem.EncodeToMemory(block)
		}
	case FormatDER:
		out, err = k.der(opts)
	case FormatPKCS12:
		out, err = k.pkcs12(opts)
	case FormatCOSE:
		if len(opts.Password) > 0 {
			return BinaryData{}, newError("export", tc, fmt.Errorf("%w: COSE_Key cannot be password protected", ErrUnsupportedValue))
		}
		out, err = marshalCOSEKey(k, opts.Private)
	default:
		return BinaryData{}, newError("export", tc, fmt.Errorf("%w: format %q", ErrUnsupportedValue, format))
	}
	if err != nil {
		return BinaryData{}, exportError(tc, err)
	}

	if opts.Private {
		if err := k.ctx.record(EventKeyExported, map[string]string{
			"key_type":  tc,
			"format":    strings.ToLower(format),
			"encrypted": fmt.Sprint(len(opts.Password) > 0),
		}); err != nil {
			wipe(out)
			return BinaryData{}, err
		}
	}
	return BinaryData{b: out}, nil
}

func exportError(tc string, err error) error {
	var ce *CryptoError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, ErrUnsupportedValue) || errors.Is(err, ErrMissingArgument) {
		return newError("export", tc, err)
	}
	return nativeError("export", err)
}

func (k *AsymmetricKey) pemBlock(opts ExportOptions) (*pem.Block, error) {
	if !opts.Private {
		der, err := k.publicDER()
		if err != nil {
			return nil, err
		}
		return &pem.Block{Type: "PUBLIC KEY", Bytes: der}, nil
	}

	if opts.PKCS8 {
		der, encrypted, err := k.pkcs8DER(opts)
		if err != nil {
			return nil, err
		}
		if encrypted {
			return &pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: der}, nil
		}
		return &pem.Block{Type: "PRIVATE KEY", Bytes: der}, nil
	}

	der, pemType, err := k.traditionalDER()
	if err != nil {
		return nil, err
	}
	defer wipe(der)
	if len(opts.Password) == 0 {
		return &pem.Block{Type: pemType, Bytes: append([]byte(nil), der...)}, nil
	}

	name := opts.Cipher
	if name == "" {
		name = defaultExportCipher
	}
	c, ok := legacyPEMCiphers[name]
	if !ok {
		return nil, fmt.Errorf("%w: PEM cipher %q", ErrUnsupportedValue, name)
	}
	return x509.EncryptPEMBlock(k.ctx.random, pemType, der, opts.Password, c) //nolint:staticcheck // legacy encrypted PEM stays readable by OpenSSL
}

func (k *AsymmetricKey) der(opts ExportOptions) ([]byte, error) {
	if !opts.Private {
		return k.publicDER()
	}
	if opts.PKCS8 || len(opts.Password) > 0 {
		der, _, err := k.pkcs8DER(opts)
		return der, err
	}
	der, _, err := k.traditionalDER()
	return der, err
}

// publicDER returns the SubjectPublicKeyInfo encoding.
func (k *AsymmetricKey) publicDER() ([]byte, error) {
	if k.rsa != nil {
		return x509.MarshalPKIXPublicKey(k.rsa.pub)
	}
	if der, err := x509.MarshalPKIXPublicKey(k.ec.pub); err == nil {
		return der, nil
	}
	return marshalECPKIX(k.ec)
}

// traditionalDER returns PKCS#1 for RSA and SEC1 for EC.
func (k *AsymmetricKey) traditionalDER() ([]byte, string, error) {
	if k.rsa != nil {
		return x509.MarshalPKCS1PrivateKey(k.rsa.priv), "RSA PRIVATE KEY", nil
	}
	if der, err := x509.MarshalECPrivateKey(k.ec.priv); err == nil {
		return der, "EC PRIVATE KEY", nil
	}
	der, err := marshalSEC1(k.ec, true)
	return der, "EC PRIVATE KEY", err
}

// pkcs8DER returns PKCS#8, encrypted with PBES2 when a password is set.
func (k *AsymmetricKey) pkcs8DER(opts ExportOptions) ([]byte, bool, error) {
	if len(opts.Password) == 0 {
		if k.rsa != nil {
			der, err := x509.MarshalPKCS8PrivateKey(k.rsa.priv)
			return der, false, err
		}
		if der, err := x509.MarshalPKCS8PrivateKey(k.ec.priv); err == nil {
			return der, false, nil
		}
		der, err := marshalECPKCS8(k.ec)
		return der, false, err
	}

	name := opts.Cipher
	if name == "" {
		name = defaultExportCipher
	}
	c, ok := pkcs8Ciphers[name]
	if !ok {
		return nil, false, fmt.Errorf("%w: PKCS#8 cipher %q", ErrUnsupportedValue, name)
	}
	der, err := pkcs8.MarshalPrivateKey(k.privateKey(), opts.Password, &pkcs8.Opts{
		Cipher: c,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       pbkdf2SaltSize,
			IterationCount: pbkdf2Iterations,
			HMACHash:       crypto.SHA256,
		},
	})
	return der, true, err
}

func (k *AsymmetricKey) pkcs12(opts ExportOptions) ([]byte, error) {
	if !opts.Private {
		return nil, fmt.Errorf("%w: PKCS#12 export requires the private key", ErrMissingArgument)
	}
	if len(opts.Password) == 0 {
		return nil, fmt.Errorf("%w: PKCS#12 export requires a password", ErrMissingArgument)
	}

	priv := k.privateKey()
	cert := opts.Certificate
	if cert == nil {
		var err error
		if cert, err = k.placeholderCertificate(priv); err != nil {
			return nil, fmt.Errorf("failed to create placeholder certificate: %w", err)
		}
	}

	enc := pkcs12.Modern
	if opts.Cipher == "legacy" || opts.Cipher == "des-ede3-cbc" {
		enc = pkcs12.LegacyDES
	}
	return enc.WithRand(k.ctx.random).Encode(priv, cert, nil, string(opts.Password))
}

// placeholderCertificate self-signs a minimal certificate so the key can travel in PKCS#12.
func (k *AsymmetricKey) placeholderCertificate(priv any) (*x509.Certificate, error) {
	var pub any
	switch p := priv.(type) {
	case *rsa.PrivateKey:
		pub = &p.PublicKey
	case *ecdsa.PrivateKey:
		pub = &p.PublicKey
	}
	spki, err := k.publicDER()
	if err != nil {
		return nil, err
	}
	ski := sha256.Sum256(spki)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: new(big.Int).SetBytes(ski[:8]),
		Subject:      pkix.Name{CommonName: "cryptokit " + k.TypeClass() + " key"},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.AddDate(1, 0, 0),
		SubjectKeyId: ski[:20],
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(k.ctx.random, tmpl, tmpl, pub, priv)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// privateKey returns the native private key.
func (k *AsymmetricKey) privateKey() any {
	if k.rsa != nil {
		return k.rsa.priv
	}
	return k.ec.priv
}
