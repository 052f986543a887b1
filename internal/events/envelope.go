package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form of every event. ID doubles as the JetStream
// message id, so a retried publish is stored once.
type Envelope struct {
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func NewEnvelope(e Event) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %T: %w", e, err)
	}
	return Envelope{
		ID:        uuid.NewString(),
		Subject:   e.Subject(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Decode unmarshals the payload into v.
func (env Envelope) Decode(v interface{}) error {
	return json.Unmarshal(env.Data, v)
}

func decodeEnvelope(subject string, raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode %s: %w", subject, err)
	}
	if env.Subject == "" {
		env.Subject = subject
	}
	return env, nil
}
