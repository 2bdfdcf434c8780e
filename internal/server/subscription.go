package server

import (
	"strings"
	"time"

	"github.com/aristath/noteengine/internal/events"
	"github.com/rs/zerolog"
)

// streamBuffer is how many events a slow client may fall behind before events are dropped.
const streamBuffer = 100

// subscription forwards bus events of the requested types to one streaming client.
type subscription struct {
	bus    *events.Bus
	ids    map[events.EventType]int
	events chan *events.Event
}

// parseTypes reads a comma-separated ?types= filter. Empty means every type.
func parseTypes(filter string) []events.EventType {
	if filter == "" {
		return events.AllTypes
	}
	var out []events.EventType
	seen := make(map[events.EventType]bool)
	for _, raw := range strings.Split(filter, ",") {
		t := events.EventType(strings.ToUpper(strings.TrimSpace(raw)))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func subscribe(bus *events.Bus, types []events.EventType, log zerolog.Logger) *subscription {
	sub := &subscription{
		bus:    bus,
		ids:    make(map[events.EventType]int, len(types)),
		events: make(chan *events.Event, streamBuffer),
	}

	handler := func(event *events.Event) {
		// Non-blocking send (drop if channel full)
		select {
		case sub.events <- event:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	for _, t := range types {
		sub.ids[t] = bus.Subscribe(t, handler)
	}
	return sub
}

func (s *subscription) close() {
	for t, id := range s.ids {
		s.bus.Unsubscribe(t, id)
	}
}

// envelope is the wire form of an event on both stream transports.
func envelope(event *events.Event) map[string]interface{} {
	return map[string]interface{}{
		"type":      string(event.Type),
		"module":    event.Module,
		"timestamp": event.Timestamp.Format(time.RFC3339),
		"data":      event.Data,
	}
}
