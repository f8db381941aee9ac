// Package audit provides tamper-evident audit logging for key and data operations.
//
// Audit logs are separate from technical logs and designed for:
//   - Tracking key lifecycle (generation, import, export)
//   - Tracking private-key use (signing, decryption)
//   - Tamper evidence via cryptographic hash chaining
//
// Key principles:
//   - Audit failure is reported to the caller
//   - Never log secrets (private keys, passphrases, plaintext)
//   - All timestamps in UTC
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event.
type EventType string

const (
	// Key lifecycle events
	EventKeyGenerated EventType = "KEY_GENERATED"
	EventKeyImported  EventType = "KEY_IMPORTED"
	EventKeyExported  EventType = "KEY_EXPORTED"

	// Private-key use
	EventDataSigned    EventType = "DATA_SIGNED"
	EventDataDecrypted EventType = "DATA_DECRYPTED"
)

// Result represents the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor represents who performed the action.
type Actor struct {
	Type string `json:"type"`           // "user", "system", "service"
	ID   string `json:"id"`             // username or service identifier
	Host string `json:"host,omitempty"` // hostname where action occurred
}

// Event represents a single audit log entry.
type Event struct {
	ID        string            `json:"id"`
	EventType EventType         `json:"event_type"`
	Timestamp string            `json:"timestamp"` // RFC3339 UTC
	Actor     Actor             `json:"actor"`
	Details   map[string]string `json:"details,omitempty"`
	Result    Result            `json:"result"`
	HashPrev  string            `json:"hash_prev"`
	Hash      string            `json:"hash"`
}

// NewEvent creates a new audit event with a fresh ID, current timestamp and actor info.
func NewEvent(eventType EventType, result Result) *Event {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME") // Windows
	}
	if username == "" {
		username = "unknown"
	}

	return &Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor: Actor{
			Type: "user",
			ID:   username,
			Host: hostname,
		},
		Result: result,
	}
}

// WithDetails merges attributes into the event details.
func (e *Event) WithDetails(details map[string]string) *Event {
	if len(details) == 0 {
		return e
	}
	if e.Details == nil {
		e.Details = make(map[string]string, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks that required fields are present.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if e.Actor.Type == "" || e.Actor.ID == "" {
		return fmt.Errorf("actor type and id are required")
	}
	if e.Result == "" {
		return fmt.Errorf("result is required")
	}
	return nil
}

// CanonicalJSON returns the event as canonical JSON for hashing.
// Excludes the Hash field to allow hash calculation. Map keys are sorted by encoding/json.
func (e *Event) CanonicalJSON() ([]byte, error) {
	type eventForHash struct {
		ID        string            `json:"id"`
		EventType EventType         `json:"event_type"`
		Timestamp string            `json:"timestamp"`
		Actor     Actor             `json:"actor"`
		Details   map[string]string `json:"details,omitempty"`
		Result    Result            `json:"result"`
		HashPrev  string            `json:"hash_prev"`
	}

	return json.Marshal(eventForHash{
		ID:        e.ID,
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Details:   e.Details,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	})
}

// JSON returns the full event as JSON.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
