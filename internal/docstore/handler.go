package docstore

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"lifecert/internal/identity"
	domainerrors "lifecert/pkg/domain-errors"
	"lifecert/pkg/platform/httputil"
)

// maxDocumentBytes bounds a single upload. Passport scans and signature
// images are small; anything larger is a client error.
const maxDocumentBytes = 10 << 20

// Handler accepts document uploads and hands back durable URLs for the
// submission form.
type Handler struct {
	storage *Storage
}

func NewHandler(storage *Storage) *Handler {
	return &Handler{storage: storage}
}

// presignTTL bounds how long a handed-out download link stays valid.
const presignTTL = 15 * time.Minute

// Register mounts the document endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/documents", h.HandleUpload)
	r.Get("/api/documents/*", h.HandleDownload)
}

// UploadRequest is the HTTP body for POST /api/documents.
type UploadRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`

	decoded []byte
}

func (r *UploadRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "name is required")
	}
	if r.ContentType == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "content_type is required")
	}
	data, err := base64.StdEncoding.DecodeString(r.Data)
	if err != nil {
		return domainerrors.New(domainerrors.CodeInvalidInput, "data must be base64")
	}
	if len(data) == 0 {
		return domainerrors.New(domainerrors.CodeInvalidInput, "data is required")
	}
	if len(data) > maxDocumentBytes {
		return domainerrors.New(domainerrors.CodeInvalidInput, "document exceeds the 10MB limit")
	}
	r.decoded = data
	return nil
}

// HandleUpload handles POST /api/documents.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFrom(r.Context())
	if !ok {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[UploadRequest](w, r)
	if !ok {
		return
	}
	url, err := h.storage.Upload(r.Context(), actor.ID, req.Name, req.ContentType, req.decoded)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// HandleDownload handles GET /api/documents/{owner}/{object}: redirects to a
// time-limited presigned URL. Owners reach their own objects; notaries reach
// everything, since attestation reviews the pensioner's uploads.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFrom(r.Context())
	if !ok {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "authentication required"))
		return
	}
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" || strings.Contains(key, "..") {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeInvalidInput, "malformed document key"))
		return
	}
	if !actor.IsNotary() && !strings.HasPrefix(key, actor.ID+"/") {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeForbidden, "document belongs to another pensioner"))
		return
	}
	url, err := h.storage.PresignGet(r.Context(), key, presignTTL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
