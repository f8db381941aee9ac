package crypto

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyStorageConfig holds configuration for key storage and retrieval.
type KeyStorageConfig struct {
	// KeyPath is the key file.
	KeyPath string `json:"key_path" yaml:"key_path"`

	// Passphrase protects the private key. "env:VAR" reads it from the environment.
	Passphrase string `json:"-" yaml:"-"` // Never serialized

	// Format is the file encoding (pem, der, pkcs12, cose). Default pem.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Cipher selects the encryption used when a passphrase is set.
	Cipher string `json:"cipher,omitempty" yaml:"cipher,omitempty"`
}

// KeyStore loads and generates keys behind a storage backend.
//
// Usage:
//
//	ks := NewSoftwareKeyStore(ctx)
//	key, err := ks.Generate("ec", KeyStorageConfig{
//	    KeyPath:    "/path/to/key.pem",
//	    Passphrase: "env:KEY_PASSPHRASE",
//	})
type KeyStore interface {
	// Load reads an existing key.
	Load(cfg KeyStorageConfig) (*AsymmetricKey, error)

	// Generate creates a key of the given family with default parameters and stores it.
	Generate(typeClass string, cfg KeyStorageConfig) (*AsymmetricKey, error)

	// Save stores the private half of key.
	Save(key *AsymmetricKey, cfg KeyStorageConfig) error
}

// SoftwareKeyStore keeps keys as files on disk.
type SoftwareKeyStore struct {
	ctx *Context
}

// Ensure SoftwareKeyStore implements KeyStore.
var _ KeyStore = (*SoftwareKeyStore)(nil)

// NewSoftwareKeyStore creates a file-backed key store bound to ctx.
func NewSoftwareKeyStore(ctx *Context) *SoftwareKeyStore {
	return &SoftwareKeyStore{ctx: ctx}
}

// Load reads and parses the key file.
func (s *SoftwareKeyStore) Load(cfg KeyStorageConfig) (*AsymmetricKey, error) {
	if cfg.KeyPath == "" {
		return nil, newError("load", "", fmt.Errorf("%w: key_path is required for software key storage", ErrMissingArgument))
	}

	var opts []ParseOption
	if pw := ResolvePassphrase(cfg.Passphrase); len(pw) > 0 {
		defer wipe(pw)
		opts = append(opts, WithPassword(pw))
	}
	if cfg.Format != "" {
		opts = append(opts, WithFormat(cfg.Format))
	}
	return s.ctx.LoadKey(cfg.KeyPath, opts...)
}

// Generate creates a key and writes it to cfg.KeyPath.
func (s *SoftwareKeyStore) Generate(typeClass string, cfg KeyStorageConfig) (*AsymmetricKey, error) {
	if cfg.KeyPath == "" {
		return nil, newError("generate", typeClass, fmt.Errorf("%w: key_path is required for software key storage", ErrMissingArgument))
	}

	gen, err := s.ctx.NewKeyGenerator(typeClass)
	if err != nil {
		return nil, err
	}
	key, err := gen.Go()
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", typeClass, err)
	}

	if err := s.Save(key, cfg); err != nil {
		key.Wipe()
		return nil, fmt.Errorf("failed to save private key: %w", err)
	}
	return key, nil
}

// Save writes the private key with mode 0600. PEM output uses PKCS#8 so that
// a passphrase selects PBES2 encryption.
func (s *SoftwareKeyStore) Save(key *AsymmetricKey, cfg KeyStorageConfig) error {
	if cfg.KeyPath == "" {
		return newError("save", key.TypeClass(), fmt.Errorf("%w: key_path is required for software key storage", ErrMissingArgument))
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = FormatPEM
	}
	pw := ResolvePassphrase(cfg.Passphrase)
	defer wipe(pw)

	data, err := key.Export(format, ExportOptions{
		Private:  true,
		Password: pw,
		Cipher:   cfg.Cipher,
		PKCS8:    true,
	})
	if err != nil {
		return err
	}
	defer data.Wipe()

	if dir := filepath.Dir(cfg.KeyPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return newError("save", key.TypeClass(), fmt.Errorf("%w: failed to create key directory: %w", ErrPersistence, err))
		}
	}
	if err := os.WriteFile(cfg.KeyPath, data.Bytes(), 0600); err != nil {
		return newError("save", key.TypeClass(), fmt.Errorf("%w: failed to write key file: %w", ErrPersistence, err))
	}
	s.ctx.logger.Info("key saved", "path", cfg.KeyPath, "type", key.TypeClass(), "format", format, "encrypted", len(pw) > 0)
	return nil
}

// ResolvePassphrase resolves a passphrase that may be "env:VAR_NAME".
func ResolvePassphrase(passphrase string) []byte {
	if passphrase == "" {
		return nil
	}
	if name, ok := strings.CutPrefix(passphrase, "env:"); ok && name != "" {
		return []byte(os.Getenv(name))
	}
	return []byte(passphrase)
}
