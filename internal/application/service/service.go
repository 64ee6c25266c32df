// Package service implements the life-certificate lifecycle engine: the only
// code path allowed to create applications or move them along the status
// graph. Handlers stay thin; authorization, validation, history, audit, and
// notification all happen here.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"lifecert/internal/application"
	"lifecert/internal/audit"
	"lifecert/internal/identity"
	"lifecert/internal/notification"
	"lifecert/internal/platform/metrics"
	"lifecert/pkg/domain"
	domainerrors "lifecert/pkg/domain-errors"
	"lifecert/pkg/platform/sentinel"
)

// Recorder accepts audit events. Recording must never fail or block the
// caller; audit.Sink satisfies this.
type Recorder interface {
	Record(ctx context.Context, userID string, action audit.Action, resourceID, details string)
}

// Notifier fans a status-change message out to subscribed listeners.
type Notifier interface {
	Publish(title, body string)
}

// Service is the lifecycle engine.
type Service struct {
	store    application.Store
	audit    Recorder
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	now   func() time.Time
	newID func() domain.ApplicationID
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Tests use it for deterministic
// history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides application id generation.
func WithIDGenerator(newID func() domain.ApplicationID) Option {
	return func(s *Service) { s.newID = newID }
}

func New(store application.Store, rec Recorder, notifier Notifier, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		audit:    rec,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		newID:    domain.NewApplicationID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submission carries everything a pensioner provides on the annual
// identification form. The engine copies it into an immutable snapshot; later
// profile edits never reach a submitted application.
type Submission struct {
	PensionerName string

	FatherHusbandName string
	DateOfBirth       string
	PlaceOfBirth      string
	Nationality       string

	Email             string
	OverseasAddress   string
	IndianAddress     string
	PhoneNumber       string
	IndianPhoneNumber string

	ServiceNumber string
	Rank          string
	PPONumber     string

	PassportNumber     string
	PassportIssueDate  string
	PassportExpiryDate string
	PassportAuthority  string

	Documents []application.Document
	Signature string
}

// Attestation carries a notary's approval input.
type Attestation struct {
	Signature string
	Comments  string
}

// Submit validates the form, snapshots it into a new SUBMITTED application,
// and announces it. Only pensioners may submit.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, sub Submission) (*application.Application, error) {
	if !actor.IsPensioner() {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "only pensioners may submit applications")
	}
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	app := &application.Application{
		ID:            s.newID(),
		RequesterID:   actor.ID,
		PensionerName: sub.PensionerName,
		SubmittedDate: now,
		Status:        application.StatusSubmitted,

		FatherHusbandName: sub.FatherHusbandName,
		DateOfBirth:       sub.DateOfBirth,
		PlaceOfBirth:      sub.PlaceOfBirth,
		Nationality:       sub.Nationality,

		Email:             sub.Email,
		OverseasAddress:   sub.OverseasAddress,
		IndianAddress:     sub.IndianAddress,
		PhoneNumber:       sub.PhoneNumber,
		IndianPhoneNumber: sub.IndianPhoneNumber,

		ServiceNumber: sub.ServiceNumber,
		Rank:          sub.Rank,
		PPONumber:     sub.PPONumber,

		PassportNumber:     sub.PassportNumber,
		PassportIssueDate:  sub.PassportIssueDate,
		PassportExpiryDate: sub.PassportExpiryDate,
		PassportAuthority:  sub.PassportAuthority,

		Documents: append([]application.Document(nil), sub.Documents...),
		Signature: sub.Signature,

		History: []application.HistoryItem{{
			Status:    application.StatusSubmitted,
			Timestamp: now,
			Details:   "Application submitted",
		}},
	}

	if err := s.store.Create(ctx, app); err != nil {
		return nil, translateStoreErr(err, "create application")
	}

	s.metrics.ApplicationsSubmitted.Inc()
	s.audit.Record(ctx, actor.ID, audit.ActionCreateApplication, app.ID.String(), "Application submitted")
	s.publish(application.StatusSubmitted, app.ID)
	s.logger.Info("application submitted", "application_id", app.ID, "requester_id", actor.ID)
	return app.Clone(), nil
}

// Attest moves a SUBMITTED application to ATTESTED, stamping the acting
// notary's identity and signature onto the record.
func (s *Service) Attest(ctx context.Context, actor identity.Actor, id domain.ApplicationID, att Attestation) (*application.Application, error) {
	if !actor.IsNotary() {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "only notaries may attest applications")
	}
	if att.Signature == "" {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "notary signature is required")
	}
	if err := validateDurableURL("notary_signature", att.Signature); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	details := "Attested by Notary: " + actor.Name
	app, err := s.store.ApplyTransition(ctx, id, application.StatusSubmitted, func(app *application.Application) error {
		app.Status = application.StatusAttested
		app.NotaryID = actor.ID
		app.NotaryName = actor.Name
		app.NotarySignature = att.Signature
		app.NotaryComments = att.Comments
		attested := now
		app.AttestationDate = &attested
		app.History = append(app.History, application.HistoryItem{
			Status:    application.StatusAttested,
			Timestamp: now,
			Details:   details,
		})
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err, "attest application")
	}

	s.metrics.ApplicationsAttested.Inc()
	s.audit.Record(ctx, actor.ID, audit.ActionUpdateStatus, id.String(), details)
	s.publish(application.StatusAttested, id)
	s.logger.Info("application attested", "application_id", id, "notary_id", actor.ID)
	return app, nil
}

// Reject moves a SUBMITTED application to REJECTED. The reason is mandatory;
// a pensioner must be able to see why the certificate came back.
func (s *Service) Reject(ctx context.Context, actor identity.Actor, id domain.ApplicationID, reason string) (*application.Application, error) {
	if !actor.IsNotary() {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "only notaries may reject applications")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "rejection reason is required")
	}

	now := s.now().UTC()
	details := "Rejected by Notary: " + reason
	app, err := s.store.ApplyTransition(ctx, id, application.StatusSubmitted, func(app *application.Application) error {
		app.Status = application.StatusRejected
		app.NotaryID = actor.ID
		app.NotaryName = actor.Name
		app.NotaryComments = reason
		app.RejectionReason = reason
		app.History = append(app.History, application.HistoryItem{
			Status:    application.StatusRejected,
			Timestamp: now,
			Details:   details,
		})
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err, "reject application")
	}

	s.metrics.ApplicationsRejected.Inc()
	s.audit.Record(ctx, actor.ID, audit.ActionUpdateStatus, id.String(), details)
	s.publish(application.StatusRejected, id)
	s.logger.Info("application rejected", "application_id", id, "notary_id", actor.ID)
	return app, nil
}

// MarkSent moves an ATTESTED application to SENT_TO_SPARSH. Only the owner
// may trigger it, after the certificate email has gone out.
func (s *Service) MarkSent(ctx context.Context, actor identity.Actor, id domain.ApplicationID) (*application.Application, error) {
	if !actor.IsPensioner() {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "only the applicant may transmit to SPARSH")
	}

	now := s.now().UTC()
	details := "Transmitted to SPARSH Defense Pension System"
	app, err := s.store.ApplyTransition(ctx, id, application.StatusAttested, func(app *application.Application) error {
		if app.RequesterID != actor.ID {
			return domainerrors.New(domainerrors.CodeForbidden, "application belongs to another pensioner")
		}
		app.Status = application.StatusSentToSparsh
		app.History = append(app.History, application.HistoryItem{
			Status:    application.StatusSentToSparsh,
			Timestamp: now,
			Details:   details,
		})
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err, "mark application sent")
	}

	s.metrics.ApplicationsSent.Inc()
	s.audit.Record(ctx, actor.ID, audit.ActionUpdateStatus, id.String(), details)
	s.publish(application.StatusSentToSparsh, id)
	s.logger.Info("application transmitted", "application_id", id, "requester_id", actor.ID)
	return app, nil
}

// Get returns a single application to its owner or to any notary, recording
// the access.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id domain.ApplicationID) (*application.Application, error) {
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "load application")
	}
	if !actor.IsNotary() && actor.Role != domain.RoleAdmin && app.RequesterID != actor.ID {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "application belongs to another pensioner")
	}
	s.audit.Record(ctx, actor.ID, audit.ActionViewApplication, id.String(), "Viewed application")
	return app, nil
}

func (s *Service) publish(status application.Status, id domain.ApplicationID) {
	if s.notifier == nil {
		return
	}
	msg := notification.MessageFor(status, id)
	s.notifier.Publish(msg.Title, msg.Body)
}

func validateSubmission(sub Submission) error {
	required := []struct{ field, value string }{
		{"pensioner_name", sub.PensionerName},
		{"date_of_birth", sub.DateOfBirth},
		{"service_number", sub.ServiceNumber},
		{"ppo_number", sub.PPONumber},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domainerrors.New(domainerrors.CodeInvalidInput, r.field+" is required")
		}
	}
	if sub.Signature == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "pensioner signature is required")
	}
	if err := validateDurableURL("signature", sub.Signature); err != nil {
		return err
	}

	bySlot := map[string]bool{}
	for _, doc := range sub.Documents {
		if err := validateDurableURL("document "+doc.Name, doc.URL); err != nil {
			return err
		}
		bySlot[doc.SlotID] = true
	}
	for _, slot := range application.DocumentSlots {
		if slot.Required && !bySlot[slot.ID] {
			return domainerrors.New(domainerrors.CodeInvalidInput, "missing required document: "+slot.Label)
		}
	}
	return nil
}

// validateDurableURL rejects inline payloads such as data: URIs. Only
// references into durable object storage may be persisted on a record.
func validateDurableURL(field, value string) error {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return nil
	}
	return domainerrors.New(domainerrors.CodeInvalidInput, field+" must reference uploaded storage, not inline data")
}

func translateStoreErr(err error, op string) error {
	var derr *domainerrors.Error
	switch {
	case errors.As(err, &derr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return domainerrors.Wrap(err, domainerrors.CodeInvalidState, "application already processed")
	case errors.Is(err, sentinel.ErrConflict):
		return domainerrors.Wrap(err, domainerrors.CodeInvalidState, "application already exists")
	case errors.Is(err, sentinel.ErrUnavailable):
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "store unavailable")
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to "+op)
	}
}
