package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/remiblancher/cryptokit/internal/crypto"
)

const (
	// GenesisHash is the initial hash for the first event in a SHA-256 chain.
	GenesisHash = "sha256:genesis"

	chainDigest = "sha256"
)

// FileWriter writes audit events to a JSONL file with hash chaining.
type FileWriter struct {
	mu       sync.Mutex
	file     *os.File
	hasher   *crypto.Hasher
	lastHash string
	path     string
}

var _ Writer = (*FileWriter)(nil)

// FileOption configures a FileWriter.
type FileOption func(*FileWriter)

// WithHasher chains events with h instead of SHA-256.
func WithHasher(h *crypto.Hasher) FileOption {
	return func(w *FileWriter) { w.hasher = h }
}

// NewFileWriter creates a new file-based audit writer.
// If the file exists, it reads the last hash for chain continuity.
func NewFileWriter(path string, opts ...FileOption) (*FileWriter, error) {
	w := &FileWriter{path: path}
	for _, o := range opts {
		o(w)
	}
	if w.hasher == nil {
		h, err := defaultHasher()
		if err != nil {
			return nil, err
		}
		w.hasher = h
	}

	w.lastHash = genesis(w.hasher)
	if existingData, err := os.ReadFile(path); err == nil && len(existingData) > 0 {
		hash, err := readLastHash(existingData, w.lastHash)
		if err != nil {
			return nil, fmt.Errorf("failed to read last hash from existing log: %w", err)
		}
		w.lastHash = hash
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	w.file = file
	return w, nil
}

func defaultHasher() (*crypto.Hasher, error) {
	ctx, err := crypto.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create crypto context: %w", err)
	}
	h, err := ctx.NewHasher(chainDigest)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain hasher: %w", err)
	}
	return h, nil
}

func genesis(h *crypto.Hasher) string {
	return h.TypeClass() + ":genesis"
}

// readLastHash reads the last event from a JSONL file and returns its hash.
func readLastHash(data []byte, genesisHash string) (string, error) {
	var lastLine string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lastLine = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	if lastLine == "" {
		return genesisHash, nil
	}

	var event struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal([]byte(lastLine), &event); err != nil {
		return "", fmt.Errorf("failed to parse last event: %w", err)
	}

	if event.Hash == "" {
		return "", fmt.Errorf("last event has no hash")
	}

	return event.Hash, nil
}

// Write logs an audit event with hash chaining.
func (w *FileWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("audit log %s is closed", w.path)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	event.HashPrev = w.lastHash
	canonical, err := event.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	hash := chainHash(w.hasher, canonical, w.lastHash)
	event.Hash = hash

	eventJSON, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if _, err := w.file.Write(append(eventJSON, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	w.lastHash = hash
	return nil
}

// Close closes the audit log file. Closing twice is a no-op.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LastHash returns the hash of the last written event.
func (w *FileWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// Path returns the file path of the audit log.
func (w *FileWriter) Path() string {
	return w.path
}

// chainHash computes H(data || prevHash) prefixed with the digest name.
func chainHash(h *crypto.Hasher, data []byte, prevHash string) string {
	buf := make([]byte, 0, len(data)+len(prevHash))
	buf = append(buf, data...)
	buf = append(buf, prevHash...)
	return h.TypeClass() + ":" + h.HashBytes(buf).Hex()
}

// VerifyChain verifies the hash chain integrity of an audit log file.
// Returns the number of valid events and any error encountered.
func VerifyChain(path string, opts ...FileOption) (int, error) {
	w := &FileWriter{}
	for _, o := range opts {
		o(w)
	}
	if w.hasher == nil {
		h, err := defaultHasher()
		if err != nil {
			return 0, err
		}
		w.hasher = h
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	expectedPrevHash := genesis(w.hasher)
	valid := 0
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return valid, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}

		if event.HashPrev != expectedPrevHash {
			return valid, fmt.Errorf("line %d: hash chain broken: expected prev=%s, got prev=%s",
				lineNum, expectedPrevHash, event.HashPrev)
		}

		canonical, err := event.CanonicalJSON()
		if err != nil {
			return valid, fmt.Errorf("line %d: failed to serialize: %w", lineNum, err)
		}

		calculatedHash := chainHash(w.hasher, canonical, event.HashPrev)
		if event.Hash != calculatedHash {
			return valid, fmt.Errorf("line %d: hash mismatch: expected=%s, got=%s",
				lineNum, calculatedHash, event.Hash)
		}

		expectedPrevHash = event.Hash
		valid++
	}

	if err := scanner.Err(); err != nil {
		return valid, fmt.Errorf("scan error: %w", err)
	}

	return valid, nil
}
