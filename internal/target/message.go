package target

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
)

// Message types on the input stream.
const (
	TypeSchema          = "SCHEMA"
	TypeRecord          = "RECORD"
	TypeState           = "STATE"
	TypeActivateVersion = "ACTIVATE_VERSION"
)

var (
	// ErrUnknownMessage is returned for a line whose type is not recognized.
	ErrUnknownMessage = errors.New("unknown message type")

	// ErrMalformedMessage is returned for a line that is not a valid message.
	ErrMalformedMessage = errors.New("malformed message")
)

// Message is one line of newline-delimited JSON input.
type Message struct {
	Type          string            `json:"type"`
	Stream        string            `json:"stream,omitempty"`
	Record        domain.RawContact `json:"record,omitempty"`
	Schema        json.RawMessage   `json:"schema,omitempty"`
	KeyProperties []string          `json:"key_properties,omitempty"`
	Value         json.RawMessage   `json:"value,omitempty"`
	Version       int64             `json:"version,omitempty"`
}

// ParseMessage decodes and validates one input line. Record numbers are
// kept as json.Number so they are forwarded with their original digits.
func ParseMessage(line []byte) (*Message, error) {
	var m Message
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after message", ErrMalformedMessage)
	}
	switch m.Type {
	case TypeRecord:
		if m.Stream == "" {
			return nil, fmt.Errorf("%w: RECORD without stream", ErrMalformedMessage)
		}
		if m.Record == nil {
			return nil, fmt.Errorf("%w: RECORD for %s without record", ErrMalformedMessage, m.Stream)
		}
	case TypeSchema, TypeActivateVersion:
		if m.Stream == "" {
			return nil, fmt.Errorf("%w: %s without stream", ErrMalformedMessage, m.Type)
		}
	case TypeState:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
	return &m, nil
}

// stateMessage is the STATE line written after each batch.
type stateMessage struct {
	Type  string              `json:"type"`
	Value *domain.TargetState `json:"value"`
}
