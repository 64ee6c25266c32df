package user

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"lifecert/internal/audit"
	"lifecert/internal/identity"
	"lifecert/pkg/domain"
	domainerrors "lifecert/pkg/domain-errors"
)

func strptr(s string) *string { return &s }

func TestPatchValidate(t *testing.T) {
	cases := []struct {
		name  string
		patch Patch
		ok    bool
	}{
		{"empty patch", Patch{}, false},
		{"blank name", Patch{Name: strptr("  ")}, false},
		{"bad email", Patch{Email: strptr("not-an-address")}, false},
		{"bad date", Patch{DateOfBirth: strptr("02/04/1958")}, false},
		{"good date", Patch{DateOfBirth: strptr("1958-04-02")}, true},
		{"clearing an optional date", Patch{PassportExpiryDate: strptr("")}, true},
		{"rank only", Patch{Rank: strptr("Subedar Major")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid patch, got %v", err)
			}
			if !tc.ok && !domainerrors.Is(err, domainerrors.CodeInvalidInput) {
				t.Fatalf("expected invalid_input, got %v", err)
			}
		})
	}
}

func TestPatchApplyLeavesUnsetFieldsAlone(t *testing.T) {
	profile := &Profile{
		ID:            "pensioner-1",
		Name:          "Rajinder Singh",
		Email:         "rajinder@example.com",
		Rank:          "Subedar",
		ServiceNumber: "12345678X",
	}
	Patch{Rank: strptr("Subedar Major"), PhoneNumber: strptr("+1-416-555-0101")}.Apply(profile)

	if profile.Rank != "Subedar Major" || profile.PhoneNumber != "+1-416-555-0101" {
		t.Fatalf("patched fields not applied: %+v", profile)
	}
	if profile.Name != "Rajinder Singh" || profile.Email != "rajinder@example.com" || profile.ServiceNumber != "12345678X" {
		t.Fatalf("unset fields must not change: %+v", profile)
	}
}

type recorderSpy struct {
	mu      sync.Mutex
	actions []audit.Action
}

func (r *recorderSpy) Record(_ context.Context, _ string, action audit.Action, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *InMemoryStore
	recorder *recorderSpy
	svc      *Service
	actor    identity.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.recorder = &recorderSpy{}
	s.svc = NewService(s.store, s.recorder, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	s.actor = identity.Actor{ID: "pensioner-1", DisplayID: "PEN-001", Name: "Rajinder Singh", Role: domain.RolePensioner}
}

func (s *ServiceSuite) TestRegisterIsIdempotent() {
	first, err := s.svc.Register(s.ctx, s.actor, "rajinder@example.com")
	s.Require().NoError(err)
	s.Equal("PEN-001", first.DisplayID)

	_, err = s.svc.Update(s.ctx, s.actor, Patch{Rank: strptr("Subedar")})
	s.Require().NoError(err)

	again, err := s.svc.Register(s.ctx, s.actor, "rajinder@example.com")
	s.Require().NoError(err)
	s.Equal("Subedar", again.Rank, "re-registration must return the stored profile, not reset it")
}

func (s *ServiceSuite) TestUpdate() {
	_, err := s.svc.Register(s.ctx, s.actor, "rajinder@example.com")
	s.Require().NoError(err)

	updated, err := s.svc.Update(s.ctx, s.actor, Patch{PPONumber: strptr("PPO-2023-998877")})
	s.Require().NoError(err)
	s.Equal("PPO-2023-998877", updated.PPONumber)

	s.Run("empty patch rejected", func() {
		_, err := s.svc.Update(s.ctx, s.actor, Patch{})
		s.True(domainerrors.Is(err, domainerrors.CodeInvalidInput))
	})

	s.Run("unknown profile", func() {
		ghost := identity.Actor{ID: "nobody", Role: domain.RolePensioner}
		_, err := s.svc.Update(s.ctx, ghost, Patch{Rank: strptr("Naik")})
		s.True(domainerrors.Is(err, domainerrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDeleteAuditsAndRemoves() {
	_, err := s.svc.Register(s.ctx, s.actor, "rajinder@example.com")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(s.ctx, s.actor))

	_, err = s.svc.Get(s.ctx, s.actor)
	s.True(domainerrors.Is(err, domainerrors.CodeNotFound))

	s.recorder.mu.Lock()
	defer s.recorder.mu.Unlock()
	s.Contains(s.recorder.actions, audit.ActionDeleteAccount)
}
