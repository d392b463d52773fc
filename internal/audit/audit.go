// Package audit publishes protocol milestones to the fraud-monitoring
// pipeline. Emission is strictly best-effort: a lost event is counted and
// logged but never fails or delays the protocol step that produced it.
package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"domicile/pkg/requestcontext"
)

// EventName enumerates the published milestones.
type EventName string

const (
	EventStart       EventName = "ADDRESS_CRI_START"
	EventRequestSent EventName = "ADDRESS_CRI_REQUEST_SENT"
	EventVCIssued    EventName = "ADDRESS_CRI_VC_ISSUED"
)

// Event is the wire form consumed by the monitoring pipeline.
type Event struct {
	Timestamp          int64     `json:"timestamp"`
	EventName          EventName `json:"event_name"`
	EventID            string    `json:"event_id"`
	ClientID           string    `json:"client_id"`
	TimestampFormatted string    `json:"timestamp_formatted"`
}

// NewEvent stamps an event with the request clock and a fresh id.
func NewEvent(ctx context.Context, name EventName, clientID string) Event {
	now := requestcontext.Now(ctx).UTC()
	return Event{
		Timestamp:          now.Unix(),
		EventName:          name,
		EventID:            uuid.NewString(),
		ClientID:           clientID,
		TimestampFormatted: now.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Emitter publishes events. Implementations must not block protocol
// progress; Emit has no error return on purpose.
type Emitter interface {
	Emit(ctx context.Context, name EventName, clientID string)
}

// Capture records events in memory. Used by tests and standalone
// development where no broker is configured.
type Capture struct {
	mu     sync.Mutex
	events []Event
}

// NewCapture constructs an empty capturing emitter.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Emit(ctx context.Context, name EventName, clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, NewEvent(ctx, name, clientID))
}

// Events returns a copy of everything emitted so far.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

var _ Emitter = (*Capture)(nil)
