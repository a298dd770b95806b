// Package provider defines the contract every disposable-mailbox backend
// implements and the normalized message model the rest of the app consumes.
package provider

import (
	"context"
	"encoding/json"
)

// Provider is the interface that disposable inbox backends must implement.
// Each provider translates its own HTTP API into the normalized
// Summary/Detail shapes below.
type Provider interface {
	// Name returns the registry key of this provider (e.g. "mailtm").
	Name() string

	// Generate creates a new mailbox and returns its address together with
	// the state needed to query it afterwards.
	Generate(ctx context.Context) (string, State, error)

	// ListMessages returns the mailbox's messages, newest first.
	ListMessages(ctx context.Context, state State) ([]Summary, error)

	// ReadMessage fetches the full content of a single message.
	ReadMessage(ctx context.Context, state State, id string) (Detail, error)
}

// State is the provider-specific credential/addressing data of a mailbox.
// Each adapter defines its own concrete type; callers outside the adapter
// treat it as opaque.
type State interface {
	// Provider returns the name of the adapter that owns this state.
	Provider() string
}

// StateDecoder restores a State previously serialized with EncodeState.
type StateDecoder interface {
	DecodeState(raw []byte) (State, error)
}

// SourceReader is implemented by providers that can return the raw RFC 822
// source of a message.
type SourceReader interface {
	ReadSource(ctx context.Context, state State, id string) ([]byte, error)
}

// Summary is one entry of an inbox listing.
type Summary struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// Detail is the full content of a message.
type Detail struct {
	Summary
	TextBody    string       `json:"textBody"`
	HTMLBody    string       `json:"htmlBody"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment describes a file attached to a message. Size is zero when the
// provider does not report it.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// EncodeState serializes a state for storage.
func EncodeState(state State) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}
