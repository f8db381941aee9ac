package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/remiblancher/cryptokit/internal/crypto"
)

var curvesCmd = &cobra.Command{
	Use:   "curves [name]",
	Short: "List EC curves or show one curve's parameters",
	Long: `Without arguments, list every known curve with its OID and whether the
native library can compute on it. With a name or alias, print the domain parameters.

Examples:
  cryptokit curves
  cryptokit curves P-384`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCurves,
}

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List registered algorithms and defaults",
	RunE:  runAlgorithms,
}

var randCmd = &cobra.Command{
	Use:   "rand <bytes>",
	Short: "Print cryptographically secure random bytes",
	Args:  cobra.ExactArgs(1),
	RunE:  runRand,
}

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive a key from a password",
	Long: `Stretch a password into key material with Argon2id (default) or PBKDF2-SHA256.

Examples:
  cryptokit derive --password env:PASSWORD --salt 000102030405060708090a0b0c0d0e0f --size 32`,
	RunE: runDerive,
}

var (
	randEncoding string

	deriveKDF      string
	derivePassword string
	deriveSalt     string
	deriveSize     int
)

func init() {
	randCmd.Flags().StringVarP(&randEncoding, "encoding", "e", "hex", "Output encoding: hex, hex-upper, base64, base64url")

	deriveCmd.Flags().StringVar(&deriveKDF, "kdf", string(crypto.KDFArgon2id), "KDF: argon2id, pbkdf2-sha256")
	deriveCmd.Flags().StringVar(&derivePassword, "password", "", "Password (or env:VAR) (required)")
	deriveCmd.Flags().StringVar(&deriveSalt, "salt", "", "Hex salt, at least 8 bytes (required)")
	deriveCmd.Flags().IntVar(&deriveSize, "size", 32, "Output size in bytes")
	_ = deriveCmd.MarkFlagRequired("password")
	_ = deriveCmd.MarkFlagRequired("salt")
}

func runCurves(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		info, err := cryptoCtx.CurveParams(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Name:    %s\n", info.Name)
		fmt.Fprintf(out, "OID:     %s\n", info.OID)
		fmt.Fprintf(out, "Bits:    %d\n", info.BitSize)
		fmt.Fprintf(out, "P:       %s\n", info.P.Hex())
		fmt.Fprintf(out, "N:       %s\n", info.N.Hex())
		fmt.Fprintf(out, "B:       %s\n", info.B.Hex())
		fmt.Fprintf(out, "Gx:      %s\n", info.Gx.Hex())
		fmt.Fprintf(out, "Gy:      %s\n", info.Gy.Hex())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tOID\tNATIVE")
	for _, c := range cryptoCtx.Curves().Entries() {
		_, err := cryptoCtx.Curves().Params(c.Name)
		fmt.Fprintf(w, "%s\t%s\t%t\n", c.Name, c.OID, err == nil)
	}
	return w.Flush()
}

func runAlgorithms(cmd *cobra.Command, args []string) error {
	reg := cryptoCtx.Registry()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BASE\tTYPE CLASS\tNATIVE\tDEFAULT\tDESCRIPTION")

	defaults := make(map[crypto.Base]string)
	for _, e := range crypto.Algorithms(reg) {
		def, ok := defaults[e.Base]
		if !ok {
			def, _ = reg.DefaultTypeClass(e.Base)
			defaults[e.Base] = def
		}
		mark := ""
		if e.TypeClass == def {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", e.Base, e.TypeClass, e.Native, mark, e.Description)
	}
	return w.Flush()
}

func runRand(cmd *cobra.Command, args []string) error {
	var n int
	if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
		return fmt.Errorf("invalid byte count %q", args[0])
	}
	b, err := cryptoCtx.Random(n)
	if err != nil {
		return err
	}
	s, err := encode(b, randEncoding)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
	return err
}

func runDerive(cmd *cobra.Command, args []string) error {
	pw := crypto.ResolvePassphrase(derivePassword)
	defer clear(pw)
	salt, err := crypto.FromHex(deriveSalt)
	if err != nil {
		return fmt.Errorf("--salt must be hex encoded: %w", err)
	}
	key, err := cryptoCtx.DeriveKey(pw, salt.Bytes(), deriveSize, crypto.KDF(deriveKDF))
	if err != nil {
		return err
	}
	defer key.Wipe()
	_, err = fmt.Fprintln(cmd.OutOrStdout(), key.Hex())
	return err
}
