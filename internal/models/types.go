package models

import (
	"bytes"
	"encoding/json"
	"time"

	"qbwc-webhook-adapter/internal/qbxml"
)

// FieldValue is one canonical field of a normalized record. Value is a
// string or a bool.
type FieldValue struct {
	Name  string
	Value any
}

// NormalizedRecord is the canonical projection of one raw record. It
// marshals to a JSON object whose keys keep schema order.
type NormalizedRecord struct {
	Fields []FieldValue
}

// Get returns the value of the named field.
func (r NormalizedRecord) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Bool returns the named field as a bool; missing or non-bool fields are false.
func (r NormalizedRecord) Bool(name string) bool {
	v, _ := r.Get(name)
	b, _ := v.(bool)
	return b
}

// String returns the named field as a string; missing or non-string fields are "".
func (r NormalizedRecord) String(name string) string {
	v, _ := r.Get(name)
	s, _ := v.(string)
	return s
}

func (r NormalizedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WebhookEvent is one outbound delivery. Only Payload goes in the body;
// the event type and timestamp travel as headers.
type WebhookEvent struct {
	EventType string             `json:"eventType"`
	Payload   []NormalizedRecord `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

// DeadLetter records a failed delivery for manual replay.
type DeadLetter struct {
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	FailedAt  time.Time       `json:"failedAt"`
}

// RawAnswerRecord is the archived copy of one parsed connector answer.
type RawAnswerRecord struct {
	Entity     string         `json:"entity"`
	ReceivedAt time.Time      `json:"received_at"`
	Classified bool           `json:"classified"`
	Matches    []string       `json:"matches,omitempty"`
	Answer     map[string]any `json:"answer"`
	Raw        string         `json:"raw,omitempty"`
}

// Job wraps one parsed answer waiting for the processing pipeline.
type Job struct {
	Answer     qbxml.Answer
	Raw        string
	ReceivedAt time.Time
}
