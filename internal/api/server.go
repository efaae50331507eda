// Package api exposes the service over HTTP as JSON, with the assistant
// streamed as Server-Sent Events.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/auth"
	"github.com/Kerhoff/CartBot/internal/metrics"
	"github.com/Kerhoff/CartBot/internal/service"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server provides the HTTP API.
type Server struct {
	svc     *service.Service
	jwt     *auth.JWTManager
	metrics *metrics.Metrics
	logger  *logrus.Logger
	mux     *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, jwt *auth.JWTManager, m *metrics.Metrics, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, jwt: jwt, metrics: m, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.public("GET /healthz", s.handleHealth)

	s.private("GET /api/me", s.handleMe)

	// Groups
	s.private("GET /api/groups", s.handleGetMyGroups)
	s.private("POST /api/groups", s.handleCreateGroup)
	s.private("GET /api/groups/personal", s.handlePersonalGroup)
	s.private("GET /api/groups/{groupID}", s.handleGetGroup)
	s.private("PUT /api/groups/{groupID}", s.handleUpdateGroup)
	s.private("DELETE /api/groups/{groupID}", s.handleDeleteGroup)
	s.private("POST /api/groups/{groupID}/invite-code", s.handleGenerateInviteCode)
	s.private("POST /api/groups/{groupID}/invite-code/regenerate", s.handleRegenerateInviteCode)
	s.private("POST /api/groups/{groupID}/leave", s.handleLeaveGroup)
	s.private("POST /api/groups/{groupID}/transfer", s.handleTransfer)

	// Members
	s.private("DELETE /api/groups/{groupID}/members/{userID}", s.handleRemoveMember)
	s.private("PUT /api/groups/{groupID}/members/{userID}/role", s.handleUpdateRole)

	// Invites
	s.private("GET /api/invites/{code}", s.handleValidateInvite)
	s.private("POST /api/invites/{code}/join", s.handleJoin)

	// Shopping list
	s.private("GET /api/groups/{groupID}/items", s.handleGetItems)
	s.private("POST /api/groups/{groupID}/items", s.handleAddItem)
	s.private("DELETE /api/groups/{groupID}/items/completed", s.handleClearCompleted)
	s.private("POST /api/groups/{groupID}/actions", s.handleExecuteActions)
	s.private("PATCH /api/items/{itemID}", s.handleUpdateItem)
	s.private("POST /api/items/{itemID}/toggle", s.handleToggleItem)
	s.private("DELETE /api/items/{itemID}", s.handleDeleteItem)

	// Assistant
	s.private("POST /api/groups/{groupID}/assistant", s.handleAssistant)
}

// callerHandler is a handler that runs for an authenticated caller.
type callerHandler func(w http.ResponseWriter, r *http.Request, caller service.Caller)

func (s *Server) public(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(pattern, h))
}

func (s *Server) private(pattern string, h callerHandler) {
	s.mux.Handle(pattern, s.instrument(pattern, func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.jwt.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			s.respondError(w, apperr.ErrUnauthenticated.WithMessage("%s", err.Error()))
			return
		}
		h(w, r, service.Caller{UserID: claims.UserID, Anonymous: claims.Anonymous})
	}))
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (s *Server) instrument(pattern string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		h(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.metrics.ObserveHTTP(pattern, rec.status)
	})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// respondError writes err with the status its kind maps to. Internal
// details never reach the client.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.respondJSON(w, statusFor(err), errorBody(err))
}

func errorBody(err error) errorResponse {
	return errorResponse{Code: apperr.CodeOf(err), Error: apperr.MessageOf(err)}
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindInvariant:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into dst. The caller should return
// immediately when it reports false; the error response is already written.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}

	msg := fmt.Sprintf("invalid JSON: %v", err)
	if errors.Is(err, io.EOF) {
		msg = "request body is empty"
	}
	s.respondError(w, apperr.ErrValidation.WithMessage("%s", msg).Wrap(err))
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	user, err := s.svc.GetUser(r.Context(), caller)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}
