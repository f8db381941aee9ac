package crypto

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// =============================================================================
// [Unit] Export / Import Round Trip Tests
// =============================================================================

type exportCase struct {
	name     string
	format   string
	opts     ExportOptions
	password []byte
	pemType  string
}

func exportCases() []exportCase {
	pw := []byte("correct horse")
	return []exportCase{
		{"PEM traditional", FormatPEM, ExportOptions{Private: true}, nil, ""},
		{"PEM PKCS#8", FormatPEM, ExportOptions{Private: true, PKCS8: true}, nil, "PRIVATE KEY"},
		{"PEM legacy encrypted", FormatPEM, ExportOptions{Private: true, Password: pw, Cipher: "aes-128-cbc"}, pw, ""},
		{"PEM PBES2 aes-256-gcm", FormatPEM, ExportOptions{Private: true, Password: pw, PKCS8: true, Cipher: "aes-256-gcm"}, pw, "ENCRYPTED PRIVATE KEY"},
		{"DER traditional", FormatDER, ExportOptions{Private: true}, nil, ""},
		{"DER PBES2", FormatDER, ExportOptions{Private: true, Password: pw}, pw, ""},
		{"PKCS#12", FormatPKCS12, ExportOptions{Private: true, Password: pw}, pw, ""},
		{"PKCS#12 legacy", FormatPKCS12, ExportOptions{Private: true, Password: pw, Cipher: "legacy"}, pw, ""},
		{"COSE", FormatCOSE, ExportOptions{Private: true}, nil, ""},
	}
}

func TestU_Export_Import_RoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	keys := map[string]*AsymmetricKey{
		"rsa": rsaTestKey(t, ctx),
		"ec":  generateKey(t, ctx, KeyTypeEC, func(g KeyGenerator) error { return g.SetCurve("secp384r1") }),
	}
	msg := []byte("round trip message")

	for kname, key := range keys {
		for _, tc := range exportCases() {
			t.Run("[Unit] RoundTrip: "+kname+" "+tc.name, func(t *testing.T) {
				data, err := key.Export(tc.format, tc.opts)
				if err != nil {
					t.Fatalf("Export() error = %v", err)
				}
				if tc.pemType != "" {
					block, _ := pem.Decode(data.Bytes())
					if block == nil || block.Type != tc.pemType {
						t.Fatalf("PEM type = %v, want %s", block, tc.pemType)
					}
				}

				var opts []ParseOption
				if tc.password != nil {
					opts = append(opts, WithPassword(tc.password))
				}
				parsed, err := ctx.ParseKey(data.Bytes(), opts...)
				if err != nil {
					t.Fatalf("ParseKey() error = %v", err)
				}
				if parsed.TypeClass() != key.TypeClass() || parsed.NumBits() != key.NumBits() || !parsed.HasPrivate() {
					t.Fatalf("parsed key = %s/%d private=%v", parsed.TypeClass(), parsed.NumBits(), parsed.HasPrivate())
				}
				if key.TypeClass() == KeyTypeEC && parsed.Curve() != key.Curve() {
					t.Errorf("parsed curve = %s, want %s", parsed.Curve(), key.Curve())
				}

				sig, err := parsed.Sign(msg, "sha256")
				if err != nil {
					t.Fatalf("Sign() error = %v", err)
				}
				ok, err := key.Verify(msg, sig.Bytes(), "sha256")
				if err != nil || !ok {
					t.Errorf("original key cannot verify parsed key's signature: %v, %v", ok, err)
				}
			})
		}
	}
}

func TestU_Export_PublicFormats(t *testing.T) {
	ctx := newTestContext(t)
	key := generateKey(t, ctx, KeyTypeEC, nil)

	for _, format := range []string{FormatPEM, FormatDER, FormatCOSE} {
		t.Run("[Unit] Public: "+format, func(t *testing.T) {
			data, err := key.Public().Export(format, ExportOptions{})
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			parsed, err := ctx.ParseKey(data.Bytes())
			if err != nil {
				t.Fatalf("ParseKey() error = %v", err)
			}
			if parsed.HasPrivate() {
				t.Error("public export carries private material")
			}
			if !parsed.X().Equal(key.X()) || !parsed.Y().Equal(key.Y()) {
				t.Error("public point changed")
			}
		})
	}

	if _, err := key.Public().Export(FormatPEM, ExportOptions{Private: true}); !errors.Is(err, ErrMissingArgument) {
		t.Errorf("private export of public key error = %v", err)
	}
	if _, err := key.Export(FormatPKCS12, ExportOptions{Private: true}); !errors.Is(err, ErrMissingArgument) {
		t.Errorf("PKCS#12 without password error = %v", err)
	}
	if _, err := key.Export(FormatCOSE, ExportOptions{Private: true, Password: []byte("x")}); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("encrypted COSE error = %v", err)
	}
	if _, err := key.Export("jwk", ExportOptions{}); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("unknown format error = %v", err)
	}
	if _, err := key.Export(FormatPEM, ExportOptions{Private: true, Password: []byte("x"), Cipher: "rc4"}); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("unknown cipher error = %v", err)
	}
}

func TestU_Export_SM2(t *testing.T) {
	ctx := newTestContext(t)
	key := generateKey(t, ctx, KeyTypeEC, func(g KeyGenerator) error { return g.SetCurve("sm2p256v1") })
	msg := []byte("sm2 message")

	cases := []struct {
		name   string
		format string
		opts   ExportOptions
	}{
		{"[Unit] SM2: SEC1 PEM", FormatPEM, ExportOptions{Private: true}},
		{"[Unit] SM2: PKCS#8 PEM", FormatPEM, ExportOptions{Private: true, PKCS8: true}},
		{"[Unit] SM2: DER", FormatDER, ExportOptions{Private: true}},
		{"[Unit] SM2: public PEM", FormatPEM, ExportOptions{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := key.Export(tc.format, tc.opts)
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			parsed, err := ctx.ParseKey(data.Bytes())
			if err != nil {
				t.Fatalf("ParseKey() error = %v", err)
			}
			if parsed.Curve() != "sm2p256v1" || parsed.CurveOID() != "1.2.156.10197.1.301" {
				t.Errorf("parsed curve = %s (%s)", parsed.Curve(), parsed.CurveOID())
			}
			if parsed.HasPrivate() != tc.opts.Private {
				t.Errorf("HasPrivate() = %v", parsed.HasPrivate())
			}
			if tc.opts.Private {
				sig, err := parsed.Sign(msg, "sha256")
				if err != nil {
					t.Fatal(err)
				}
				if ok, _ := key.Verify(msg, sig.Bytes(), "sha256"); !ok {
					t.Error("signature from parsed SM2 key does not verify")
				}
			}
		})
	}

	if _, err := key.Export(FormatCOSE, ExportOptions{}); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("SM2 COSE export error = %v", err)
	}
}

// =============================================================================
// [Unit] Password Handling Tests
// =============================================================================

func TestU_Import_Passwords(t *testing.T) {
	ctx := newTestContext(t)
	key := rsaTestKey(t, ctx)
	pw := []byte("s3cret")

	encrypted := map[string]BinaryData{}
	for name, opts := range map[string]ExportOptions{
		"legacy PEM": {Private: true, Password: pw},
		"PBES2 PEM":  {Private: true, Password: pw, PKCS8: true},
	} {
		d, err := key.Export(FormatPEM, opts)
		if err != nil {
			t.Fatal(err)
		}
		encrypted[name] = d
	}
	p12, err := key.Export(FormatPKCS12, ExportOptions{Private: true, Password: pw})
	if err != nil {
		t.Fatal(err)
	}
	encrypted["PKCS#12"] = p12

	for name, data := range encrypted {
		t.Run("[Unit] Passwords: "+name+" without password", func(t *testing.T) {
			_, err := ctx.ParseKey(data.Bytes())
			if !errors.Is(err, ErrPasswordRequired) {
				t.Errorf("ParseKey() error = %v, want ErrPasswordRequired", err)
			}
		})
		t.Run("[Unit] Passwords: "+name+" wrong password", func(t *testing.T) {
			_, err := ctx.ParseKey(data.Bytes(), WithPassword([]byte("wrong")))
			if !errors.Is(err, ErrDecryptionFailed) {
				t.Errorf("ParseKey() error = %v, want ErrDecryptionFailed", err)
			}
		})
		t.Run("[Unit] Passwords: "+name+" right password", func(t *testing.T) {
			parsed, err := ctx.ParseKey(data.Bytes(), WithPassword(pw))
			if err != nil || !parsed.N().Equal(key.N()) {
				t.Errorf("ParseKey() = %v", err)
			}
		})
	}

	t.Run("[Unit] Passwords: probe propagates password errors", func(t *testing.T) {
		ok, err := Probe(func() error {
			_, err := ctx.ParseKey(encrypted["PBES2 PEM"].Bytes())
			return err
		})
		if ok || !errors.Is(err, ErrPasswordRequired) {
			t.Errorf("Probe() = %v, %v", ok, err)
		}
	})

	t.Run("[Unit] Passwords: PBES2 DER", func(t *testing.T) {
		block, _ := pem.Decode(encrypted["PBES2 PEM"].Bytes())
		if block == nil || block.Type != "ENCRYPTED PRIVATE KEY" {
			t.Fatalf("PBES2 PEM block = %v", block)
		}
		if _, err := ctx.ParseKey(block.Bytes); !errors.Is(err, ErrPasswordRequired) {
			t.Errorf("ParseKey() without password error = %v", err)
		}
		if _, err := ctx.ParseKey(block.Bytes, WithPassword([]byte("wrong"))); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("ParseKey() wrong password error = %v", err)
		}
		parsed, err := ctx.ParseKey(block.Bytes, WithPassword(pw))
		if err != nil || !parsed.N().Equal(key.N()) {
			t.Errorf("ParseKey() = %v", err)
		}
	})
}

// encryptedKeyInfo builds an EncryptedPrivateKeyInfo with opaque ciphertext.
func encryptedKeyInfo(t *testing.T, scheme asn1.ObjectIdentifier, params any) []byte {
	t.Helper()
	raw, err := asn1.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	der, err := asn1.Marshal(encryptedPKCS8{
		Algo:          pkix.AlgorithmIdentifier{Algorithm: scheme, Parameters: asn1.RawValue{FullBytes: raw}},
		EncryptedData: bytes.Repeat([]byte{0xa5}, 64),
	})
	if err != nil {
		t.Fatal(err)
	}
	return der
}

func TestU_Import_UnsupportedEncryption(t *testing.T) {
	ctx := newTestContext(t)

	type pbeParams struct {
		Salt       []byte
		Iterations int
	}
	salt := []byte("saltsalt")
	pbes1 := encryptedKeyInfo(t, asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 3}, pbeParams{salt, 2048})

	kdf := pkix.AlgorithmIdentifier{Algorithm: oidPBKDF2}
	kdfParams, err := asn1.Marshal(pbkdf2Params{Salt: salt, IterationCount: 2048})
	if err != nil {
		t.Fatal(err)
	}
	kdf.Parameters = asn1.RawValue{FullBytes: kdfParams}
	rc2 := encryptedKeyInfo(t, oidPBES2, pbes2Params{
		KeyDerivationFunc: kdf,
		EncryptionScheme:  pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 2, 840, 113549, 3, 2}},
	})
	md5KDF := encryptedKeyInfo(t, oidPBES2, pbes2Params{
		KeyDerivationFunc: pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 3}},
		EncryptionScheme:  pkix.AlgorithmIdentifier{Algorithm: pbes2Ciphers[2]},
	})

	inputs := map[string][]byte{
		"PBES1 DER":         pbes1,
		"PBES1 PEM":         pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: pbes1}),
		"PBES2 RC2 cipher":  rc2,
		"PBES2 unknown KDF": pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: md5KDF}),
	}
	for name, data := range inputs {
		t.Run("[Unit] Encryption: "+name+" without password", func(t *testing.T) {
			_, err := ctx.ParseKey(data)
			if !errors.Is(err, ErrPasswordRequired) {
				t.Errorf("ParseKey() error = %v, want ErrPasswordRequired", err)
			}
		})
		t.Run("[Unit] Encryption: "+name+" with password", func(t *testing.T) {
			_, err := ctx.ParseKey(data, WithPassword([]byte("pw")))
			if !errors.Is(err, ErrUnsupportedValue) {
				t.Errorf("ParseKey() error = %v, want ErrUnsupportedValue", err)
			}
			if errors.Is(err, ErrDecryptionFailed) || errors.Is(err, ErrMalformedKey) {
				t.Errorf("ParseKey() error = %v, misclassified", err)
			}
		})
	}
}

// coseWithD encodes key as a private COSE_Key whose d label is replaced.
func coseWithD(t *testing.T, key *AsymmetricKey, d []byte) []byte {
	t.Helper()
	data, err := marshalCOSEKey(key, true)
	if err != nil {
		t.Fatal(err)
	}
	var m map[int]cbor.RawMessage
	if err := cbor.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m[coseEC2D], err = cbor.Marshal(d); err != nil {
		t.Fatal(err)
	}
	out, err := cbor.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestU_Import_Malformed(t *testing.T) {
	ctx := newTestContext(t)
	ecA := generateKey(t, ctx, KeyTypeEC, nil)
	ecB := generateKey(t, ctx, KeyTypeEC, nil)
	order := ecA.ec.pub.Curve.Params().N.Bytes()

	tests := []struct {
		name    string
		data    []byte
		opts    []ParseOption
		wantErr error
	}{
		{"[Unit] Malformed: empty", nil, nil, ErrMissingArgument},
		{"[Unit] Malformed: garbage DER", []byte{0x30, 0x03, 0x02, 0x01, 0x05}, nil, ErrMalformedKey},
		{"[Unit] Malformed: PEM without blocks", []byte("-----BEGIN nothing"), nil, ErrMalformedKey},
		{"[Unit] Malformed: unknown PEM type", pem.EncodeToMemory(&pem.Block{Type: "DSA PRIVATE KEY", Bytes: []byte{1}}), nil, ErrMalformedKey},
		{"[Unit] Malformed: truncated COSE", []byte{0xa1, 0x01}, nil, ErrMalformedKey},
		{"[Unit] Malformed: unknown format", []byte("x"), []ParseOption{WithFormat("jwk")}, ErrUnsupportedValue},
		{"[Unit] Malformed: COSE EC d is zero", coseWithD(t, ecA, []byte{0}), nil, ErrMalformedKey},
		{"[Unit] Malformed: COSE EC d is the group order", coseWithD(t, ecA, order), nil, ErrMalformedKey},
		{"[Unit] Malformed: COSE EC d from another key", coseWithD(t, ecA, ecB.D().Bytes()), nil, ErrMalformedKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctx.ParseKey(tt.data, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseKey() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestU_Import_Certificate(t *testing.T) {
	ctx := newTestContext(t)
	key := generateKey(t, ctx, KeyTypeEC, nil)
	cert, err := key.placeholderCertificate(key.privateKey())
	if err != nil {
		t.Fatal(err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})

	parsed, err := ctx.ParseKey(data)
	if err != nil {
		t.Fatalf("ParseKey(certificate) error = %v", err)
	}
	if parsed.HasPrivate() || !parsed.X().Equal(key.X()) {
		t.Error("certificate did not yield the public key")
	}

	// A key block wins over a preceding certificate.
	priv, _ := key.Export(FormatPEM, ExportOptions{Private: true})
	parsed, err = ctx.ParseKey(append(append([]byte(nil), data...), priv.Bytes()...))
	if err != nil || !parsed.HasPrivate() {
		t.Errorf("ParseKey(cert+key) = %v", err)
	}
	if !bytes.Contains(priv.Bytes(), []byte("EC PRIVATE KEY")) {
		t.Error("traditional EC export should be SEC1")
	}
}

func TestU_Scenario_RSA2048_PEM_SignVerify(t *testing.T) {
	ctx := newTestContext(t)
	key := generateKey(t, ctx, KeyTypeRSA, func(g KeyGenerator) error { return g.SetBits(2048) })
	defer key.Wipe()

	data, err := key.Export(FormatPEM, ExportOptions{Private: true})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	imported, err := ctx.ParseKey(data.Bytes())
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if imported.NumBits() != 2048 {
		t.Fatalf("NumBits() = %d", imported.NumBits())
	}

	msg := []byte("scenario message")
	sig, err := imported.Sign(msg, "sha256")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	pub := imported.Public()
	if ok, err := pub.Verify(msg, sig.Bytes(), "sha256"); err != nil || !ok {
		t.Errorf("Verify() = %v, %v", ok, err)
	}
	if ok, _ := pub.Verify([]byte("scenario messagE"), sig.Bytes(), "sha256"); ok {
		t.Error("Verify() accepted a tampered message")
	}
}
