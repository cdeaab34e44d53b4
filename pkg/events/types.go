package events

import "time"

// EventType identifies the kind of event published about contract checks.
type EventType string

const (
	EventContractFailed EventType = "contract.failed"
	EventSampleWritten  EventType = "sample.written"
)

// Event represents a single published event.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Contract  string    `json:"contract,omitempty"`
	Data      any       `json:"data"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, contract string, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Contract:  contract,
		Data:      data,
	}
}
