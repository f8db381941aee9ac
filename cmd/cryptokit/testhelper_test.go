package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand executes a Cobra command with the given args and returns output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

// executeWithInput executes a command feeding stdin.
func executeWithInput(root *cobra.Command, stdin []byte, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(bytes.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// testContext holds test resources.
type testContext struct {
	t       *testing.T
	tempDir string
}

// newTestContext creates a new test context with a temp directory and resets global flags.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	resetFlags()
	return &testContext{t: t, tempDir: t.TempDir()}
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name string, content []byte) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		tc.t.Fatalf("Failed to write file %s: %v", name, err)
	}
	return path
}

// readFile reads a file from the temp directory.
func (tc *testContext) readFile(name string) []byte {
	tc.t.Helper()
	data, err := os.ReadFile(tc.path(name))
	if err != nil {
		tc.t.Fatalf("Failed to read file %s: %v", name, err)
	}
	return data
}

// resetFlags resets all command flags to their default values.
func resetFlags() {
	configPath, logLevel, auditLogPath = "", "", ""

	hashAlg, hashFile, hashEncoding = "", "", "hex"
	hmacAlg, hmacKey, hmacFile, hmacEncoding, hmacVerify = "", "", "", "hex", ""

	keyGenType, keyGenBits, keyGenCurve = "", 0, ""
	keyGenOutput, keyGenPassphrase, keyGenFormat, keyGenCipher = "", "", "pem", ""
	keyInfoPassphrase, keyInfoComponents = "", false
	keyPubKey, keyPubOut, keyPubPassphrase, keyPubFormat = "", "", "", "pem"
	keyExportOut, keyExportFormat, keyExportPassphrase = "", "pem", ""
	keyExportNewPass, keyExportCipher, keyExportPKCS8 = "", "", false

	pkeyKey, pkeyPassphrase, pkeyPadding, pkeyIn, pkeyOut = "", "", "pkcs1", "-", ""
	cipherAlg, cipherKey, cipherAAD, cipherIn, cipherOut = "", "", "", "-", ""

	signKey, signPassphrase, signHash, signPSS = "", "", "", false
	signIn, signOut, signSig = "-", "", ""

	randEncoding = "hex"
	deriveKDF, derivePassword, deriveSalt, deriveSize = "argon2id", "", "", 32

	auditLogFile, auditHash, auditTailNum, auditShowJSON = "", "sha256", 10, false
}
