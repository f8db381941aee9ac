package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/cryptokit/internal/crypto"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt data of any length with an RSA public key",
	Long: `Encrypt data with an RSA key. Input longer than one block is split
into chunks sized for the padding, encrypted in parallel and concatenated.

Paddings: pkcs1 (default), oaep, oaep-sha256 (any oaep-<hash>), sslv23, none.
With none, the input length must be a multiple of the modulus size.

Examples:
  cryptokit encrypt --key rsa.pub --padding oaep --in data.bin --out data.enc`,
	RunE: runEncrypt,
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt data produced by encrypt",
	Long: `Decrypt chunked RSA ciphertext. The padding must match the one used for encryption.

Examples:
  cryptokit decrypt --key rsa.pem --padding oaep --in data.enc --out data.bin`,
	RunE: runDecrypt,
}

var cipherCmd = &cobra.Command{
	Use:   "cipher",
	Short: "Symmetric encryption",
	Long: `Encrypt and decrypt with a symmetric cipher from the registry.

The output of encrypt is IV || ciphertext (with the tag for AEAD modes).

Examples:
  cryptokit cipher keygen --alg aes-256-gcm
  cryptokit cipher encrypt --alg chacha20-poly1305 --key env:DATA_KEY --in data.bin --out data.enc`,
}

var cipherKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a random key for a cipher",
	RunE:  runCipherKeygen,
}

var cipherEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt with a symmetric cipher",
	RunE:  runCipherEncrypt,
}

var cipherDecryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt with a symmetric cipher",
	RunE:  runCipherDecrypt,
}

var (
	pkeyKey        string
	pkeyPassphrase string
	pkeyPadding    string
	pkeyIn         string
	pkeyOut        string

	cipherAlg string
	cipherKey string
	cipherAAD string
	cipherIn  string
	cipherOut string
)

func init() {
	for _, c := range []*cobra.Command{encryptCmd, decryptCmd} {
		c.Flags().StringVarP(&pkeyKey, "key", "k", "", "Key file (required)")
		c.Flags().StringVar(&pkeyPassphrase, "passphrase", "", "Passphrase for encrypted key (or env:VAR)")
		c.Flags().StringVar(&pkeyPadding, "padding", "pkcs1", "Padding: pkcs1, oaep, oaep-<hash>, sslv23, none")
		c.Flags().StringVarP(&pkeyIn, "in", "i", "-", "Input file (\"-\" for stdin)")
		c.Flags().StringVarP(&pkeyOut, "out", "o", "", "Output file (default: stdout)")
		_ = c.MarkFlagRequired("key")
	}

	cipherCmd.AddCommand(cipherKeygenCmd)
	cipherCmd.AddCommand(cipherEncryptCmd)
	cipherCmd.AddCommand(cipherDecryptCmd)

	cipherKeygenCmd.Flags().StringVarP(&cipherAlg, "alg", "a", "", "Cipher type class (default: registry default)")
	for _, c := range []*cobra.Command{cipherEncryptCmd, cipherDecryptCmd} {
		c.Flags().StringVarP(&cipherAlg, "alg", "a", "", "Cipher type class (default: registry default)")
		c.Flags().StringVarP(&cipherKey, "key", "k", "", "Hex key or env:VAR (required)")
		c.Flags().StringVar(&cipherAAD, "aad", "", "Additional authenticated data (AEAD modes)")
		c.Flags().StringVarP(&cipherIn, "in", "i", "-", "Input file (\"-\" for stdin)")
		c.Flags().StringVarP(&cipherOut, "out", "o", "", "Output file (default: stdout)")
		_ = c.MarkFlagRequired("key")
	}
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	return runPKey(cmd, true)
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	return runPKey(cmd, false)
}

func runPKey(cmd *cobra.Command, encrypt bool) error {
	padding, err := crypto.ParsePadding(pkeyPadding)
	if err != nil {
		return err
	}
	key, err := loadKey(pkeyKey, pkeyPassphrase)
	if err != nil {
		return err
	}
	defer key.Wipe()

	in, err := readInput(cmd, pkeyIn)
	if err != nil {
		return err
	}

	var out crypto.BinaryData
	if encrypt {
		out, err = key.Encrypt(in, padding)
	} else {
		out, err = key.Decrypt(in, padding)
	}
	if err != nil {
		return err
	}
	return writeOutput(cmd, pkeyOut, out.Bytes(), 0600)
}

func runCipherKeygen(cmd *cobra.Command, args []string) error {
	key, err := cryptoCtx.NewCipherKey(cipherAlg)
	if err != nil {
		return err
	}
	defer key.Wipe()
	_, err = fmt.Fprintln(cmd.OutOrStdout(), key.Hex())
	return err
}

func newCipher() (*crypto.SymmetricCipher, error) {
	key, err := decodeKeyMaterial(cipherKey)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()
	raw := key.Bytes()
	defer clear(raw)
	return cryptoCtx.NewCipher(cipherAlg, raw)
}

func runCipherEncrypt(cmd *cobra.Command, args []string) error {
	c, err := newCipher()
	if err != nil {
		return err
	}
	in, err := readInput(cmd, cipherIn)
	if err != nil {
		return err
	}
	out, err := c.Encrypt(in, []byte(cipherAAD))
	if err != nil {
		return err
	}
	return writeOutput(cmd, cipherOut, out.Bytes(), 0644)
}

func runCipherDecrypt(cmd *cobra.Command, args []string) error {
	c, err := newCipher()
	if err != nil {
		return err
	}
	in, err := readInput(cmd, cipherIn)
	if err != nil {
		return err
	}
	out, err := c.Decrypt(in, []byte(cipherAAD))
	if err != nil {
		return err
	}
	return writeOutput(cmd, cipherOut, out.Bytes(), 0600)
}
