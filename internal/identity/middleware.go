package identity

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lifecert/pkg/domain"
)

// Claims carried by the portal's bearer tokens.
type Claims struct {
	DisplayID string `json:"display_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens and extracts the Actor.
type Verifier struct {
	signingKey []byte
}

func NewVerifier(signingKey string) *Verifier {
	return &Verifier{signingKey: []byte(signingKey)}
}

// VerifyToken parses and validates a token, returning the embedded actor.
func (v *Verifier) VerifyToken(tokenString string) (Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return Actor{}, fmt.Errorf("invalid token")
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return Actor{}, fmt.Errorf("token role: %w", err)
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("token missing subject")
	}

	return Actor{
		ID:        claims.Subject,
		DisplayID: claims.DisplayID,
		Name:      claims.Name,
		Role:      role,
	}, nil
}

// IssueToken mints a token for the given actor. Production tokens come from
// the identity provider; this is used by tests and the dev login helper.
func (v *Verifier) IssueToken(actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		DisplayID: actor.DisplayID,
		Name:      actor.Name,
		Role:      string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// Actor plus the caller's user agent in the request context.
func RequireAuth(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			actor, err := verifier.VerifyToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token", "error", err)
				unauthorized(w)
				return
			}

			ctx := WithActor(r.Context(), actor)
			ctx = WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
