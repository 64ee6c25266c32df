// Package mailer transmits certificates to the SPARSH service mailbox through
// the Gmail REST API, using an access token the pensioner granted to this
// portal. Tokens are passed per call and never stored.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainerrors "lifecert/pkg/domain-errors"
)

const defaultEndpoint = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// mimeBoundary is fixed rather than random: messages carry no user-controlled
// boundary-like content, and a stable boundary keeps assembly reproducible.
const mimeBoundary = "lifecert_mime_boundary_51423"

// Attachment is one file attached to an outgoing message.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Message is an outgoing mail with optional attachments.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Gmail sends messages through the Gmail REST API.
type Gmail struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// Option configures a Gmail sender.
type Option func(*Gmail)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gmail) { g.client = client }
}

// WithEndpoint overrides the API endpoint. Tests point it at a local server.
func WithEndpoint(endpoint string) Option {
	return func(g *Gmail) { g.endpoint = endpoint }
}

func NewGmail(logger *slog.Logger, opts ...Option) *Gmail {
	g := &Gmail{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: defaultEndpoint,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Send assembles the MIME message and posts it. A missing, rejected, or
// expired token yields CodeAuthExpired so callers can prompt the user to
// re-link their Google account before retrying.
func (g *Gmail) Send(ctx context.Context, accessToken string, msg Message) error {
	if accessToken == "" {
		return domainerrors.New(domainerrors.CodeAuthExpired, "no mail authorization; link your Google account first")
	}
	if msg.To == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "recipient address is required")
	}

	raw := base64.RawURLEncoding.EncodeToString([]byte(assembleMIME(msg)))
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "encode mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "build mail request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "mail service unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		g.logger.Info("mail sent", "to", msg.To, "subject", msg.Subject, "attachments", len(msg.Attachments))
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domainerrors.New(domainerrors.CodeAuthExpired, "mail authorization expired; re-link your Google account")
	default:
		apiMsg := decodeAPIError(resp)
		g.logger.Error("mail send failed", "status", resp.StatusCode, "error", apiMsg)
		return domainerrors.New(domainerrors.CodeUnavailable, fmt.Sprintf("mail service error: %s", apiMsg))
	}
}

// assembleMIME builds a multipart/mixed message: one 7bit text part followed
// by base64 attachment parts, CRLF line endings throughout.
func assembleMIME(msg Message) string {
	var b strings.Builder
	write := func(lines ...string) {
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\r\n")
		}
	}

	write(
		fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mimeBoundary),
		"MIME-Version: 1.0",
		"To: "+msg.To,
		"Subject: "+msg.Subject,
		"",
		"--"+mimeBoundary,
		"Content-Type: text/plain; charset=UTF-8",
		"MIME-Version: 1.0",
		"Content-Transfer-Encoding: 7bit",
		"",
		msg.Body,
		"",
	)

	for _, att := range msg.Attachments {
		write(
			"--"+mimeBoundary,
			"Content-Type: "+att.MIMEType,
			"Content-Transfer-Encoding: base64",
			fmt.Sprintf("Content-Disposition: attachment; filename=%q", att.Filename),
			"",
			base64.StdEncoding.EncodeToString(att.Data),
			"",
		)
	}

	b.WriteString("--" + mimeBoundary + "--")
	return b.String()
}

func decodeAPIError(resp *http.Response) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		return resp.Status
	}
	return body.Error.Message
}
