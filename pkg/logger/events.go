package logger

import (
	"context"

	"github.com/cgast/contr/pkg/events"
	"github.com/cgast/contr/pkg/state"
)

// Events publishes violations on an event bus: contract.failed for every
// snapshot and sample.written when the snapshot produced a new sample.
type Events struct {
	bus events.EventBus
	tag string
}

// NewEvents creates a logger publishing to bus. An empty tag selects
// DefaultTag.
func NewEvents(bus events.EventBus, tag string) *Events {
	if tag == "" {
		tag = DefaultTag
	}
	return &Events{bus: bus, tag: tag}
}

func (e *Events) Log(_ context.Context, s state.State) {
	s.Tag = e.tag
	e.bus.Publish(events.NewEvent(events.EventContractFailed, s.ContractName, s))
	if s.DumpInfo != nil {
		e.bus.Publish(events.NewEvent(events.EventSampleWritten, s.ContractName, *s.DumpInfo))
	}
}
