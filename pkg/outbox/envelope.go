package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// EnvelopeVersion is bumped when the stored payload shape changes.
const EnvelopeVersion = 1

// ActorRef identifies who triggered the event.
type ActorRef struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is what lands in outbox_events.payload and, unchanged, in
// the Kafka message value. EventID is a KSUID so consumers can order by it.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(occurredAt time.Time, actor *ActorRef, data any) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode event data: %w", err)
	}
	id, err := ksuid.NewRandomWithTime(occurredAt)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("event id: %w", err)
	}
	return PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    id.String(),
		OccurredAt: occurredAt,
		Actor:      actor,
		Data:       raw,
	}, nil
}

// DecodeEnvelope parses a stored payload column. Envelopes without an event
// id or with an unknown version are rejected.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, err
	}
	switch {
	case envelope.EventID == "":
		return envelope, errors.New("envelope missing event id")
	case envelope.Version != EnvelopeVersion:
		return envelope, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	return envelope, nil
}
