// Command cryptokit is the CLI front end of the crypto abstraction layer.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/cryptokit/internal/audit"
	"github.com/remiblancher/cryptokit/internal/config"
	"github.com/remiblancher/cryptokit/internal/crypto"
	"github.com/remiblancher/cryptokit/internal/logging"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath   string
	logLevel     string
	auditLogPath string
)

// Per-invocation state built in PersistentPreRunE.
var (
	cryptoCtx   *crypto.Context
	logger      *slog.Logger
	logCloser   io.Closer
	auditWriter audit.Writer
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cryptokit",
	Short: "cryptokit - digests, MACs, ciphers and RSA/EC keys from one registry",
	Long: `cryptokit exposes the crypto abstraction layer on the command line.

Every algorithm is resolved by name through the algorithm registry:
digests (native SHA-2/SHA-3/BLAKE2 plus SM3, SHAKE, KangarooTwelve),
HMACs, symmetric ciphers (AES, ChaCha20-Poly1305, SM4) and RSA/EC keys.

Examples:
  # Digest a file
  cryptokit hash --alg sha256 --file data.bin

  # Generate an RSA key and encrypt a large file with OAEP
  cryptokit key gen --type rsa --bits 3072 --out rsa.pem
  cryptokit encrypt --key rsa.pem --padding oaep --in data.bin --out data.enc

  # Sign and verify
  cryptokit sign --key rsa.pem --hash sha256 --in data.bin --out data.sig
  cryptokit verify --key rsa.pem --hash sha256 --in data.bin --sig data.sig`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to YAML configuration file (or set CRYPTOKIT_CONFIG env var)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warning, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set CRYPTOKIT_AUDIT_LOG env var)")

	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(hmacCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(cipherCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(curvesCmd)
	rootCmd.AddCommand(algorithmsCmd)
	rootCmd.AddCommand(randCmd)
	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(auditCmd)
}

// setup loads configuration and builds the logger, audit writer and crypto context.
func setup() error {
	if configPath == "" {
		configPath = os.Getenv("CRYPTOKIT_CONFIG")
	}
	if auditLogPath == "" {
		auditLogPath = os.Getenv("CRYPTOKIT_AUDIT_LOG")
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if auditLogPath != "" {
		cfg.Audit.Enabled = true
		cfg.Audit.Path = auditLogPath
	}

	var err error
	logger, logCloser, err = logging.New(cfg.LoggingSettings())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	opts := append(cfg.ContextOptions(), crypto.WithLogger(logger))
	if cfg.Audit.Enabled {
		w, err := openAuditLog(cfg.Audit)
		if err != nil {
			return err
		}
		auditWriter = w
		opts = append(opts, crypto.WithAudit(audit.NewSink(w).WithActor(audit.Actor{
			Type: "user",
			ID:   currentUser(),
			Host: hostname(),
		})))
	}

	cryptoCtx, err = crypto.NewContext(opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize crypto context: %w", err)
	}
	return nil
}

func openAuditLog(cfg config.AuditConfig) (audit.Writer, error) {
	var fileOpts []audit.FileOption
	if cfg.Hash != "" && cfg.Hash != "sha256" {
		h, err := chainHasher(cfg.Hash)
		if err != nil {
			return nil, err
		}
		fileOpts = append(fileOpts, audit.WithHasher(h))
	}
	w, err := audit.NewFileWriter(cfg.Path, fileOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}
	return w, nil
}

// chainHasher resolves the audit chain digest from a bare context.
func chainHasher(name string) (*crypto.Hasher, error) {
	ctx, err := crypto.NewContext()
	if err != nil {
		return nil, err
	}
	return ctx.NewHasher(name)
}

func teardown() error {
	var firstErr error
	if auditWriter != nil {
		if err := auditWriter.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close audit log: %w", err)
		}
		auditWriter = nil
	}
	if logCloser != nil {
		if err := logCloser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		logCloser = nil
	}
	return firstErr
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "unknown"
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}
