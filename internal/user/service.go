package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lifecert/internal/audit"
	"lifecert/internal/identity"
	domainerrors "lifecert/pkg/domain-errors"
	"lifecert/pkg/platform/sentinel"
)

// Recorder accepts audit events without ever failing the caller.
type Recorder interface {
	Record(ctx context.Context, userID string, action audit.Action, resourceID, details string)
}

// Service manages profile reads, patches, and account deletion.
type Service struct {
	store  Store
	audit  Recorder
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, rec Recorder, logger *slog.Logger) *Service {
	return &Service{store: store, audit: rec, logger: logger, now: time.Now}
}

// Get returns the actor's own profile.
func (s *Service) Get(ctx context.Context, actor identity.Actor) (*Profile, error) {
	profile, err := s.store.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, translateErr(err, "load profile")
	}
	return profile, nil
}

// Register creates the profile on first sign-in. Re-registration of an
// existing account is a no-op returning the stored profile.
func (s *Service) Register(ctx context.Context, actor identity.Actor, email string) (*Profile, error) {
	now := s.now().UTC()
	profile := &Profile{
		ID:        actor.ID,
		DisplayID: actor.DisplayID,
		Name:      actor.Name,
		Email:     email,
		Role:      actor.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.Create(ctx, profile)
	if errors.Is(err, sentinel.ErrConflict) {
		return s.Get(ctx, actor)
	}
	if err != nil {
		return nil, translateErr(err, "register profile")
	}
	s.audit.Record(ctx, actor.ID, audit.ActionLogin, "", "First sign-in, profile created")
	return profile, nil
}

// Update applies a validated patch to the actor's profile.
func (s *Service) Update(ctx context.Context, actor identity.Actor, patch Patch) (*Profile, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	profile, err := s.store.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, translateErr(err, "load profile")
	}
	patch.Apply(profile)
	profile.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, profile); err != nil {
		return nil, translateErr(err, "update profile")
	}
	s.logger.Info("profile updated", "user_id", actor.ID)
	return profile, nil
}

// Delete removes the actor's account. Applications the actor submitted are
// deliberately retained: they are part of the attestation record and the
// disbursement trail, not personal workspace data.
func (s *Service) Delete(ctx context.Context, actor identity.Actor) error {
	if err := s.store.Delete(ctx, actor.ID); err != nil {
		return translateErr(err, "delete profile")
	}
	s.audit.Record(ctx, actor.ID, audit.ActionDeleteAccount, "", "Account deleted at user request")
	s.logger.Info("account deleted", "user_id", actor.ID)
	return nil
}

func translateErr(err error, op string) error {
	var derr *domainerrors.Error
	switch {
	case errors.As(err, &derr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, "profile not found")
	case errors.Is(err, sentinel.ErrConflict):
		return domainerrors.Wrap(err, domainerrors.CodeInvalidState, "profile already exists")
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to "+op)
	}
}
