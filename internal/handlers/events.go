package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/quest-engine/internal/services/events"
)

const (
	eventsPathPrefix  = "/v1/events/sessions/"
	keepaliveInterval = 30 * time.Second
)

// EventsHandler streams a session's turn results as Server-Sent Events
type EventsHandler struct {
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

func NewEventsHandler(broadcaster *events.Broadcaster, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{broadcaster: broadcaster, logger: logger}
}

// sseStream writes events to one client and flushes after each write
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s sseStream) write(format string, args ...any) error {
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s sseStream) send(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	return s.write("event: %s\ndata: %s\n\n", eventType, payload)
}

// ServeHTTP handles GET /v1/events/sessions/{id}. The stream opens with a
// "connected" event and then relays turn.completed and turn.failed until the
// client goes away.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger, r, http.MethodGet)
		return
	}

	raw, found := strings.CutPrefix(r.URL.Path, eventsPathPrefix)
	if !found || raw == "" || strings.Contains(raw, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected "+eventsPathPrefix+"{sessionID}")
		return
	}
	sessionID, ok := parseSessionID(w, h.logger, raw)
	if !ok {
		return
	}
	log := h.logger.With("session_id", sessionID.String())

	sub := h.broadcaster.Subscribe(r.Context(), sessionID)
	defer func() {
		if err := sub.Close(); err != nil {
			log.Error("Failed to close subscription", "error", err)
		}
	}()
	// an event published before the subscription is confirmed would be lost
	if _, err := sub.Receive(r.Context()); err != nil {
		log.Error("Failed to subscribe to session events", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to subscribe to events")
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("Access-Control-Allow-Origin", "*")

	flusher, _ := w.(http.Flusher)
	stream := sseStream{w: w, flusher: flusher}
	log.Info("Event stream opened", "remote_addr", r.RemoteAddr)

	if err := stream.send("connected", map[string]any{
		"session_id": sessionID.String(),
		"message":    "Connected to event stream",
	}); err != nil {
		log.Error("Failed to write connected event", "error", err)
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	messages := sub.Channel()

	for {
		select {
		case <-r.Context().Done():
			log.Info("Event stream closed by client")
			return

		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error("Dropping malformed event", "error", err, "payload", msg.Payload)
				continue
			}
			if err := stream.send(string(event.Type), event); err != nil {
				log.Error("Failed to relay event", "error", err, "event_type", event.Type)
				return
			}

		case <-keepalive.C:
			if err := stream.write(": keepalive\n\n"); err != nil {
				log.Warn("Keepalive failed, closing stream", "error", err)
				return
			}
		}
	}
}
