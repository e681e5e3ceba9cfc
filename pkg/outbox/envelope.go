package outbox

import (
	"encoding/json"
	"time"
)

// Origin identifies the lane that produced the event.
type Origin struct {
	LaneID     string `json:"laneId"`
	ApproverID string `json:"approverId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Origin     *Origin         `json:"origin,omitempty"`
	Data       json.RawMessage `json:"data"`
}
