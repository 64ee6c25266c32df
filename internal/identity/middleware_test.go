package identity

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lifecert/pkg/domain"
)

func testVerifier() *Verifier {
	return NewVerifier("test-signing-key")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	handler := RequireAuth(testVerifier(), quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsTokenFromOtherKey(t *testing.T) {
	other := NewVerifier("different-key")
	token, err := other.IssueToken(Actor{ID: "u1", Role: domain.RolePensioner}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	handler := RequireAuth(testVerifier(), quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a forged token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthPopulatesActor(t *testing.T) {
	verifier := testVerifier()
	want := Actor{ID: "uid-123", DisplayID: "PEN-42", Name: "R. Singh", Role: domain.RolePensioner}
	token, err := verifier.IssueToken(want, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var got Actor
	var gotUA string
	handler := RequireAuth(verifier, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			t.Fatal("actor missing from context")
		}
		got = actor
		gotUA = UserAgentFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "portal-web/1.0")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got != want {
		t.Fatalf("actor = %+v, want %+v", got, want)
	}
	if gotUA != "portal-web/1.0" {
		t.Fatalf("user agent = %q", gotUA)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	verifier := testVerifier()
	token, err := verifier.IssueToken(Actor{ID: "u1", Role: domain.RoleNotary}, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := verifier.VerifyToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
