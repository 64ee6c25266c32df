// Package handler exposes profile management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lifecert/internal/audit"
	"lifecert/internal/identity"
	"lifecert/internal/user"
	domainerrors "lifecert/pkg/domain-errors"
	"lifecert/pkg/platform/httputil"
)

// Service is the profile surface the handlers call.
type Service interface {
	Get(ctx context.Context, actor identity.Actor) (*user.Profile, error)
	Register(ctx context.Context, actor identity.Actor, email string) (*user.Profile, error)
	Update(ctx context.Context, actor identity.Actor, patch user.Patch) (*user.Profile, error)
	Delete(ctx context.Context, actor identity.Actor) error
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, userID string, action audit.Action, resourceID, details string)
}

// Handler wires profile endpoints to the user service.
type Handler struct {
	service Service
	audit   Recorder
	logger  *slog.Logger
}

func New(svc Service, rec Recorder, logger *slog.Logger) *Handler {
	return &Handler{service: svc, audit: rec, logger: logger}
}

// Register mounts profile endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/profile", h.HandleGet)
	r.Post("/api/profile", h.HandleRegister)
	r.Patch("/api/profile", h.HandleUpdate)
	r.Delete("/api/profile", h.HandleDelete)
	r.Post("/api/session/events", h.HandleSessionEvent)
}

func actorOrFail(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := identity.ActorFrom(r.Context())
	if !ok {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "authentication required"))
	}
	return actor, ok
}

// HandleGet handles GET /api/profile.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Get(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// RegisterRequest is the HTTP body for POST /api/profile.
type RegisterRequest struct {
	Email string `json:"email"`
}

func (r *RegisterRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if !strings.Contains(r.Email, "@") {
		return domainerrors.New(domainerrors.CodeInvalidInput, "email must be a valid address")
	}
	return nil
}

// HandleRegister handles POST /api/profile, the first-sign-in bootstrap.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[RegisterRequest](w, r)
	if !ok {
		return
	}
	profile, err := h.service.Register(r.Context(), actor, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, profile)
}

// HandleUpdate handles PATCH /api/profile. The patch type is closed: fields
// outside it are ignored by decoding, and identity fields have no slot.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	patch, ok := httputil.Decode[user.Patch](w, r)
	if !ok {
		return
	}
	profile, err := h.service.Update(r.Context(), actor, *patch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleDelete handles DELETE /api/profile.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionEventRequest is the HTTP body for POST /api/session/events. The
// client reports auth lifecycle events it observes (sign-in, sign-out,
// Google account link) so they land in the same audit trail as server-side
// actions.
type SessionEventRequest struct {
	Event string `json:"event"`

	action audit.Action
}

var sessionEvents = map[string]audit.Action{
	"login":                 audit.ActionLogin,
	"logout":                audit.ActionLogout,
	"link_external_account": audit.ActionLinkExternalAccount,
}

func (r *SessionEventRequest) Validate() error {
	action, ok := sessionEvents[r.Event]
	if !ok {
		return domainerrors.New(domainerrors.CodeInvalidInput, "unknown session event")
	}
	r.action = action
	return nil
}

// HandleSessionEvent handles POST /api/session/events.
func (h *Handler) HandleSessionEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[SessionEventRequest](w, r)
	if !ok {
		return
	}
	h.audit.Record(r.Context(), actor.ID, req.action, "", "Reported by client")
	w.WriteHeader(http.StatusAccepted)
}
