package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/cryptokit/internal/crypto"
)

var hashCmd = &cobra.Command{
	Use:   "hash [text]",
	Short: "Compute a message digest",
	Long: `Compute a message digest of a string, a file or stdin.

The algorithm is resolved by name: native digests first (md5, sha1, sha256,
sha512, sha3-256, blake2b-512, ...), then registered ones (sm3, shake128,
shake256, k12). Without --alg the registry default is used.

Examples:
  cryptokit hash "abc"
  cryptokit hash --alg sm3 --file data.bin
  cat data.bin | cryptokit hash --alg sha3-256 --encoding base64`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHash,
}

var hmacCmd = &cobra.Command{
	Use:   "hmac [text]",
	Short: "Compute a keyed message authentication code",
	Long: `Compute an HMAC of a string, a file or stdin.

The key is hex encoded, or "env:VAR" to read hex from the environment.

Examples:
  cryptokit hmac --alg sha256 --key 0b0b0b0b "Hi There"
  cryptokit hmac --alg sm3 --key env:MAC_KEY --file data.bin
  cryptokit hmac --alg sha256 --key 0b0b --file data.bin --verify <hex>`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHMAC,
}

var (
	hashAlg      string
	hashFile     string
	hashEncoding string

	hmacAlg      string
	hmacKey      string
	hmacFile     string
	hmacEncoding string
	hmacVerify   string
)

func init() {
	hashCmd.Flags().StringVarP(&hashAlg, "alg", "a", "", "Digest type class (default: registry default)")
	hashCmd.Flags().StringVarP(&hashFile, "file", "f", "", "File to digest (\"-\" for stdin)")
	hashCmd.Flags().StringVarP(&hashEncoding, "encoding", "e", "hex", "Output encoding: hex, hex-upper, base64, base64url")

	hmacCmd.Flags().StringVarP(&hmacAlg, "alg", "a", "", "MAC type class (default: registry default)")
	hmacCmd.Flags().StringVarP(&hmacKey, "key", "k", "", "Hex key or env:VAR (required)")
	hmacCmd.Flags().StringVarP(&hmacFile, "file", "f", "", "File to authenticate (\"-\" for stdin)")
	hmacCmd.Flags().StringVarP(&hmacEncoding, "encoding", "e", "hex", "Output encoding: hex, hex-upper, base64, base64url")
	hmacCmd.Flags().StringVar(&hmacVerify, "verify", "", "Expected MAC in hex; exits non-zero on mismatch")
	_ = hmacCmd.MarkFlagRequired("key")
}

// source picks the digest input: positional text, a file, or stdin.
func source(cmd *cobra.Command, args []string, file string) (crypto.Source, error) {
	switch {
	case len(args) == 1 && file != "":
		return nil, fmt.Errorf("text argument and --file are mutually exclusive")
	case len(args) == 1:
		return crypto.StringSource(args[0]), nil
	case file != "" && file != "-":
		return crypto.FileSource(file), nil
	default:
		data, err := readInput(cmd, "-")
		if err != nil {
			return nil, err
		}
		return crypto.BytesSource(data), nil
	}
}

func runHash(cmd *cobra.Command, args []string) error {
	h, err := cryptoCtx.NewHasher(hashAlg)
	if err != nil {
		return fmt.Errorf("invalid digest: %w", err)
	}
	src, err := source(cmd, args, hashFile)
	if err != nil {
		return err
	}
	digest, err := h.Hash(src)
	if err != nil {
		return fmt.Errorf("failed to compute digest: %w", err)
	}
	out, err := encode(digest, hashEncoding)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

func runHMAC(cmd *cobra.Command, args []string) error {
	key, err := decodeKeyMaterial(hmacKey)
	if err != nil {
		return err
	}
	raw := key.Bytes()
	defer key.Wipe()
	defer clear(raw)

	h, err := cryptoCtx.NewHMACHasher(hmacAlg, raw)
	if err != nil {
		return fmt.Errorf("invalid MAC: %w", err)
	}
	defer h.Wipe()

	src, err := source(cmd, args, hmacFile)
	if err != nil {
		return err
	}
	mac, err := h.Hash(src)
	if err != nil {
		return fmt.Errorf("failed to compute MAC: %w", err)
	}

	if hmacVerify != "" {
		expected, err := crypto.FromHex(hmacVerify)
		if err != nil {
			return fmt.Errorf("--verify must be hex encoded: %w", err)
		}
		if !mac.Equal(expected) {
			return fmt.Errorf("MAC mismatch")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "MAC OK")
		return err
	}

	out, err := encode(mac, hmacEncoding)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
