package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/noteengine/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

// EventsSocketHandler streams product lifecycle events over a websocket.
// The connection is write-only from the server side; client frames are discarded.
type EventsSocketHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsSocketHandler creates a new websocket events handler.
func NewEventsSocketHandler(eventBus *events.Bus, log zerolog.Logger) *EventsSocketHandler {
	return &EventsSocketHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests.
func (h *EventsSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	typesFilter := r.URL.Query().Get("types")
	sub := subscribe(h.eventBus, parseTypes(typesFilter), h.log)
	defer sub.close()

	// CloseRead drains client frames and cancels ctx once the client goes away
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Str("types_filter", typesFilter).Msg("Client connected to websocket stream")

	if err := h.write(ctx, conn, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from websocket stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-sub.events:
			if err := h.write(ctx, conn, envelope(event)); err != nil {
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Websocket ping failed")
				return
			}
		}
	}
}

func (h *EventsSocketHandler) write(ctx context.Context, conn *websocket.Conn, payload map[string]interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, payload); err != nil {
		h.log.Debug().Err(err).Msg("Websocket write failed")
		return err
	}
	return nil
}
