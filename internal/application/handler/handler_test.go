package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"lifecert/internal/application"
	"lifecert/internal/application/service"
	"lifecert/internal/audit"
	"lifecert/internal/identity"
	"lifecert/internal/mailer"
	"lifecert/internal/platform/metrics"
	"lifecert/pkg/domain"
	domainerrors "lifecert/pkg/domain-errors"
)

func mailerAuthExpired() error {
	return domainerrors.New(domainerrors.CodeAuthExpired, "mail authorization expired; re-link your Google account")
}

const signingKey = "test-signing-key"

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, string, audit.Action, string, string) {}

type noopNotifier struct{}

func (noopNotifier) Publish(string, string) {}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, _ string, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type env struct {
	router   chi.Router
	verifier *identity.Verifier
	store    *application.InMemoryStore
	mailer   *fakeMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	store := application.NewInMemoryStore()
	svc := service.New(store, noopRecorder{}, noopNotifier{}, metrics.NewWith(prometheus.NewRegistry()), logger)
	fm := &fakeMailer{}
	h := New(svc, fm, noopRecorder{}, "alc@sparsh.gov.in", logger)

	verifier := identity.NewVerifier(signingKey)
	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(identity.RequireAuth(verifier, logger))
		h.Register(r)
	})
	return &env{router: router, verifier: verifier, store: store, mailer: fm}
}

func (e *env) token(t *testing.T, actor identity.Actor) string {
	t.Helper()
	token, err := e.verifier.IssueToken(actor, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func submitBody() map[string]any {
	return map[string]any{
		"pensioner_name": "Subedar Rajinder Singh",
		"date_of_birth":  "1958-04-02",
		"service_number": "12345678X",
		"rank":           "Subedar",
		"ppo_number":     "PPO-2023-998877",
		"signature":      "https://storage.example.com/sig.png",
		"documents": []map[string]string{
			{"id": "d1", "slot_id": "passport", "name": "passport.pdf", "content_type": "application/pdf", "url": "https://storage.example.com/passport.pdf"},
			{"id": "d2", "slot_id": "ppo", "name": "ppo.pdf", "content_type": "application/pdf", "url": "https://storage.example.com/ppo.pdf"},
		},
	}
}

var (
	pensioner = identity.Actor{ID: "pensioner-1", DisplayID: "PEN-001", Name: "Subedar Rajinder Singh", Role: domain.RolePensioner}
	notary    = identity.Actor{ID: "notary-1", DisplayID: "NOT-001", Name: "Margaret Leblanc", Role: domain.RoleNotary}
)

func decodeApp(t *testing.T, rec *httptest.ResponseRecorder) application.Application {
	t.Helper()
	var app application.Application
	if err := json.NewDecoder(rec.Body).Decode(&app); err != nil {
		t.Fatalf("decode application: %v", err)
	}
	return app
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/applications", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestSubmitAndGet(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, pensioner)

	rec := e.do(t, http.MethodPost, "/api/applications", token, submitBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	app := decodeApp(t, rec)
	if app.Status != application.StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", app.Status)
	}
	if _, err := domain.ParseApplicationID(app.ID.String()); err != nil {
		t.Fatalf("response id malformed: %v", err)
	}

	got := e.do(t, http.MethodGet, "/api/applications/"+app.ID.String(), token, nil)
	if got.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", got.Code)
	}

	t.Run("stranger gets 403", func(t *testing.T) {
		stranger := e.token(t, identity.Actor{ID: "pensioner-2", Role: domain.RolePensioner})
		rec := e.do(t, http.MethodGet, "/api/applications/"+app.ID.String(), stranger, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("malformed id gets 400", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/applications/not-an-id", token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/applications/"+domain.NewApplicationID().String(), token, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestSubmitValidation(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, pensioner)

	body := submitBody()
	delete(body, "ppo_number")
	rec := e.do(t, http.MethodPost, "/api/applications", token, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing ppo_number, got %d", rec.Code)
	}

	var errBody struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody.Error != "invalid_input" {
		t.Fatalf("expected invalid_input code, got %q", errBody.Error)
	}
}

func TestAttestRejectLifecycle(t *testing.T) {
	e := newEnv(t)
	pensionerToken := e.token(t, pensioner)
	notaryToken := e.token(t, notary)

	rec := e.do(t, http.MethodPost, "/api/applications", pensionerToken, submitBody())
	app := decodeApp(t, rec)

	attest := map[string]string{"signature": "https://storage.example.com/notary-sig.png", "comments": "Verified"}
	rec = e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/attest", notaryToken, attest)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 attesting, got %d: %s", rec.Code, rec.Body.String())
	}
	attested := decodeApp(t, rec)
	if attested.Status != application.StatusAttested || attested.NotaryName != "Margaret Leblanc" {
		t.Fatalf("unexpected attested record: %+v", attested)
	}

	t.Run("second attest gets 409", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/attest", notaryToken, attest)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("pensioner attest gets 403", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/attest", pensionerToken, attest)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/applications", pensionerToken, submitBody())
		fresh := decodeApp(t, rec)

		rec = e.do(t, http.MethodPost, "/api/applications/"+fresh.ID.String()+"/reject", notaryToken, map[string]string{"reason": ""})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty reason, got %d", rec.Code)
		}

		rec = e.do(t, http.MethodPost, "/api/applications/"+fresh.ID.String()+"/reject", notaryToken, map[string]string{"reason": "Illegible passport scan"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		rejected := decodeApp(t, rec)
		if rejected.RejectionReason != "Illegible passport scan" {
			t.Fatalf("rejection reason not recorded: %+v", rejected)
		}
	})
}

func TestSendCertificate(t *testing.T) {
	e := newEnv(t)
	pensionerToken := e.token(t, pensioner)
	notaryToken := e.token(t, notary)

	rec := e.do(t, http.MethodPost, "/api/applications", pensionerToken, submitBody())
	app := decodeApp(t, rec)

	sendBody := map[string]string{
		"access_token":    "google-token",
		"certificate_pdf": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 certificate")),
	}

	t.Run("before attestation gets 409", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/send", pensionerToken, sendBody)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if len(e.mailer.sent) != 0 {
			t.Fatalf("no mail may go out before attestation")
		}
	})

	attest := map[string]string{"signature": "https://storage.example.com/notary-sig.png"}
	e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/attest", notaryToken, attest)

	rec = e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/send", pensionerToken, sendBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 sending, got %d: %s", rec.Code, rec.Body.String())
	}
	sent := decodeApp(t, rec)
	if sent.Status != application.StatusSentToSparsh {
		t.Fatalf("expected SENT_TO_SPARSH, got %s", sent.Status)
	}

	if len(e.mailer.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(e.mailer.sent))
	}
	msg := e.mailer.sent[0]
	if msg.To != "alc@sparsh.gov.in" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	wantSubject := "Annual Identification - Subedar Subedar Rajinder Singh - SPARSH PPO No PPO-2023-998877"
	if msg.Subject != wantSubject {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}

	t.Run("resend gets 409 and no duplicate mail", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/send", pensionerToken, sendBody)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if len(e.mailer.sent) != 1 {
			t.Fatalf("duplicate mail sent")
		}
	})
}

func TestSendAuthExpired(t *testing.T) {
	e := newEnv(t)
	pensionerToken := e.token(t, pensioner)
	notaryToken := e.token(t, notary)

	rec := e.do(t, http.MethodPost, "/api/applications", pensionerToken, submitBody())
	app := decodeApp(t, rec)
	e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/attest", notaryToken,
		map[string]string{"signature": "https://storage.example.com/notary-sig.png"})

	e.mailer.err = mailerAuthExpired()
	rec = e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/send", pensionerToken, map[string]string{
		"access_token":    "stale",
		"certificate_pdf": base64.StdEncoding.EncodeToString([]byte("pdf")),
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired mail auth, got %d", rec.Code)
	}
	var errBody struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody.Error != "auth_expired" {
		t.Fatalf("expected auth_expired code, got %q", errBody.Error)
	}

	t.Run("application stays attested for retry", func(t *testing.T) {
		got, err := e.store.GetByID(context.Background(), app.ID)
		if err != nil {
			t.Fatalf("load application: %v", err)
		}
		if got.Status != application.StatusAttested {
			t.Fatalf("expected ATTESTED after failed send, got %s", got.Status)
		}
	})
}

func TestListAndReport(t *testing.T) {
	e := newEnv(t)
	pensionerToken := e.token(t, pensioner)
	notaryToken := e.token(t, notary)

	rec := e.do(t, http.MethodPost, "/api/applications", pensionerToken, submitBody())
	app := decodeApp(t, rec)
	e.do(t, http.MethodPost, "/api/applications/"+app.ID.String()+"/attest", notaryToken,
		map[string]string{"signature": "https://storage.example.com/notary-sig.png"})

	rec = e.do(t, http.MethodGet, "/api/applications", notaryToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed []application.Application
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 application in notary view, got %d", len(listed))
	}

	rec = e.do(t, http.MethodGet, "/api/reports/attestations", notaryToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	t.Run("pensioner report gets 403", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/reports/attestations", pensionerToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})
}

func TestWatchStreamsSnapshots(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, pensioner)

	// Seed one application so the initial snapshot is non-empty.
	rec := e.do(t, http.MethodPost, "/api/applications", token, submitBody())
	app := decodeApp(t, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/applications/watch", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)

	done := make(chan string, 1)
	go func() {
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		done <- rec.Body.String()
	}()

	// The handler runs until the request context ends; cancel after giving it
	// time to flush the initial frame.
	time.Sleep(200 * time.Millisecond)
	cancel()
	body := <-done

	if !bytes.Contains([]byte(body), []byte("data: ")) {
		t.Fatalf("expected an SSE data frame, got %q", body)
	}
	if !bytes.Contains([]byte(body), []byte(app.ID.String())) {
		t.Fatalf("snapshot must contain the seeded application: %q", body)
	}
}
