package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/cryptokit/internal/crypto"
)

// readInput returns the bytes of path, or stdin when path is "-" or empty.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes data to path with the given mode, or to stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte, mode os.FileMode) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// encode renders binary output in the requested text encoding.
func encode(d crypto.BinaryData, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "hex", "":
		return d.Hex(), nil
	case "hex-upper":
		return d.HexUpper(), nil
	case "base64":
		return d.Base64(), nil
	case "base64url":
		return d.Base64URL(), nil
	default:
		return "", fmt.Errorf("unsupported encoding: %s (use hex, hex-upper, base64, base64url)", encoding)
	}
}

// decodeKeyMaterial parses a hex string, falling back to "env:VAR".
func decodeKeyMaterial(s string) (crypto.BinaryData, error) {
	if s == "" {
		return crypto.BinaryData{}, fmt.Errorf("key is required")
	}
	raw := string(crypto.ResolvePassphrase(s))
	d, err := crypto.FromHex(strings.TrimSpace(raw))
	if err != nil {
		return crypto.BinaryData{}, fmt.Errorf("key must be hex encoded: %w", err)
	}
	return d, nil
}

// loadKey reads a key file, resolving an "env:VAR" passphrase.
func loadKey(path, passphrase string) (*crypto.AsymmetricKey, error) {
	ks := crypto.NewSoftwareKeyStore(cryptoCtx)
	key, err := ks.Load(crypto.KeyStorageConfig{KeyPath: path, Passphrase: passphrase})
	if err != nil {
		return nil, fmt.Errorf("failed to load key: %w", err)
	}
	return key, nil
}
