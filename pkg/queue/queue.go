// Package queue moves JSON messages through Redis lists: proposals out to
// the execution side, execution reports back.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher enqueues one message of msgType.
type Publisher interface {
	Publish(ctx context.Context, msgType string, payload any) error
}

// Job handles every message of one type.
type Job interface {
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
	LastError string          `json:"last_error,omitempty"`
}

// NewMessage wraps payload, which must marshal to JSON.
func NewMessage(msgType string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return Message{ID: uuid.NewString(), Type: msgType, Payload: raw, CreatedAt: time.Now().UTC()}, nil
}

// Decode unmarshals a message payload into T. Malformed payloads are
// permanent failures.
func Decode[T any](raw json.RawMessage) (*T, error) {
	var v T
	if len(raw) == 0 {
		return nil, Permanent(errors.New("empty payload"))
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, Permanent(fmt.Errorf("decode payload: %w", err))
	}
	return &v, nil
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the message goes straight to
// the dead-letter list.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
