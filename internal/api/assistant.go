package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/assistant"
	"github.com/Kerhoff/CartBot/internal/service"
)

type replyEvent struct {
	Actions []action.Raw `json:"actions"`
	Message string       `json:"message"`
}

// eventWriter writes Server-Sent Events. Headers are sent with the first
// event so a request that fails up front still gets a plain JSON error.
type eventWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	return &eventWriter{w: w, rc: http.NewResponseController(w)}
}

func (e *eventWriter) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}

	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return e.rc.Flush()
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	var in service.AskInput
	if !s.decodeJSON(w, r, &in) {
		return
	}

	events := newEventWriter(w)
	reply, err := s.svc.Ask(r.Context(), caller, r.PathValue("groupID"), in, func(p assistant.Partial) error {
		return events.send("partial", p)
	})
	if err != nil {
		if !events.started {
			s.respondError(w, err)
			return
		}
		if sendErr := events.send("error", errorBody(err)); sendErr != nil {
			s.logger.WithError(sendErr).Debug("failed to send error event")
		}
		return
	}

	final := replyEvent{Actions: action.EncodeAll(reply.Actions), Message: reply.Message}
	if err := events.send("reply", final); err != nil {
		s.logger.WithError(err).Debug("failed to send reply event")
	}
}
