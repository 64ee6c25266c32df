// Package handler exposes the application lifecycle over HTTP. Handlers
// decode, delegate to the engine, and map coded errors to statuses; no domain
// rules live here.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifecert/internal/application"
	"lifecert/internal/application/service"
	"lifecert/internal/audit"
	"lifecert/internal/identity"
	"lifecert/internal/mailer"
	"lifecert/pkg/domain"
	domainerrors "lifecert/pkg/domain-errors"
	"lifecert/pkg/platform/httputil"
)

// Service is the lifecycle engine surface the handlers call.
type Service interface {
	Submit(ctx context.Context, actor identity.Actor, sub service.Submission) (*application.Application, error)
	Attest(ctx context.Context, actor identity.Actor, id domain.ApplicationID, att service.Attestation) (*application.Application, error)
	Reject(ctx context.Context, actor identity.Actor, id domain.ApplicationID, reason string) (*application.Application, error)
	MarkSent(ctx context.Context, actor identity.Actor, id domain.ApplicationID) (*application.Application, error)
	Get(ctx context.Context, actor identity.Actor, id domain.ApplicationID) (*application.Application, error)
	List(ctx context.Context, actor identity.Actor) ([]*application.Application, error)
	WatchForActor(ctx context.Context, actor identity.Actor) (*application.Subscription, error)
	Report(ctx context.Context, actor identity.Actor) ([]*application.Application, error)
}

// Mailer transmits certificates to the SPARSH mailbox.
type Mailer interface {
	Send(ctx context.Context, accessToken string, msg mailer.Message) error
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, userID string, action audit.Action, resourceID, details string)
}

// Handler wires lifecycle endpoints to the engine.
type Handler struct {
	service     Service
	mailer      Mailer
	audit       Recorder
	sparshEmail string
	logger      *slog.Logger
}

func New(svc Service, m Mailer, rec Recorder, sparshEmail string, logger *slog.Logger) *Handler {
	return &Handler{service: svc, mailer: m, audit: rec, sparshEmail: sparshEmail, logger: logger}
}

// Register mounts the lifecycle endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/applications", h.HandleSubmit)
	r.Get("/api/applications", h.HandleList)
	r.Get("/api/applications/watch", h.HandleWatch)
	r.Get("/api/applications/{id}", h.HandleGet)
	r.Get("/api/applications/{id}/certificate", h.HandleCertificate)
	r.Post("/api/applications/{id}/attest", h.HandleAttest)
	r.Post("/api/applications/{id}/reject", h.HandleReject)
	r.Post("/api/applications/{id}/send", h.HandleSend)
	r.Get("/api/reports/attestations", h.HandleReport)
}

func actorOrFail(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := identity.ActorFrom(r.Context())
	if !ok {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "authentication required"))
	}
	return actor, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (domain.ApplicationID, bool) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeInvalidInput, "malformed application id"))
		return "", false
	}
	return id, true
}

// HandleSubmit handles POST /api/applications.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[SubmitRequest](w, r)
	if !ok {
		return
	}
	app, err := h.service.Submit(r.Context(), actor, req.Submission())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

// HandleGet handles GET /api/applications/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	app, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleList handles GET /api/applications.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	apps, err := h.service.List(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if apps == nil {
		apps = []*application.Application{}
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

// HandleAttest handles POST /api/applications/{id}/attest.
func (h *Handler) HandleAttest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[AttestRequest](w, r)
	if !ok {
		return
	}
	app, err := h.service.Attest(r.Context(), actor, id, service.Attestation{
		Signature: req.Signature,
		Comments:  req.Comments,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleReject handles POST /api/applications/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[RejectRequest](w, r)
	if !ok {
		return
	}
	app, err := h.service.Reject(r.Context(), actor, id, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleSend handles POST /api/applications/{id}/send: emails the attested
// certificate to SPARSH, then marks the application transmitted. The mail
// goes first; when it fails, the application stays ATTESTED and the call can
// be retried.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[SendRequest](w, r)
	if !ok {
		return
	}

	app, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if app.RequesterID != actor.ID {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeForbidden, "application belongs to another pensioner"))
		return
	}
	if app.Status != application.StatusAttested {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeInvalidState, "application must be attested before transmission"))
		return
	}

	msg := mailer.CertificateMessage(app, h.sparshEmail, req.PDF())
	if err := h.mailer.Send(r.Context(), req.AccessToken, msg); err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.service.MarkSent(r.Context(), actor, id)
	if err != nil {
		// The mail is out but the record did not advance; the client retries
		// MarkSent via the same endpoint, and the state check above stops a
		// duplicate mail only when the first attempt already committed.
		h.logger.Error("certificate sent but state update failed", "application_id", id, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleCertificate handles GET /api/applications/{id}/certificate: the
// snapshot the client renders into the certificate PDF. Recorded separately
// from plain views so the audit trail distinguishes downloads.
func (h *Handler) HandleCertificate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	app, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.audit.Record(r.Context(), actor.ID, audit.ActionDownloadPDF, id.String(), "Certificate downloaded for rendering")
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleReport handles GET /api/reports/attestations.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	apps, err := h.service.Report(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if apps == nil {
		apps = []*application.Application{}
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

// HandleWatch handles GET /api/applications/watch as server-sent events: one
// `data:` frame per snapshot, newest state only.
func (h *Handler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeInvalidInput, "streaming unsupported by client connection"))
		return
	}

	sub, err := h.service.WatchForActor(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot := <-sub.C:
			payload, err := json.Marshal(snapshot)
			if err != nil {
				h.logger.Error("encode watch snapshot", "error", err)
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
