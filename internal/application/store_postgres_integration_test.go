//go:build integration

package application

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lifecert/pkg/domain"
	"lifecert/pkg/platform/sentinel"
	"lifecert/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration suite in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.store = NewPostgres(s.pg.DB, nil, logger)
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, "TRUNCATE TABLE applications")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newApplication(requesterID string) *Application {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Application{
		ID:            domain.NewApplicationID(),
		RequesterID:   requesterID,
		PensionerName: "Subedar Rajinder Singh",
		SubmittedDate: now,
		Status:        StatusSubmitted,
		ServiceNumber: "12345678X",
		PPONumber:     "PPO-2023-998877",
		History: []HistoryItem{
			{Status: StatusSubmitted, Timestamp: now, Details: "Application submitted"},
		},
	}
}

func (s *PostgresStoreSuite) TestCreateGetRoundTrip() {
	app := s.newApplication("pensioner-1")
	s.Require().NoError(s.store.Create(s.ctx, app))

	found, err := s.store.GetByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(app.RequesterID, found.RequesterID)
	s.Equal(StatusSubmitted, found.Status)
	s.Len(found.History, 1)

	s.Require().ErrorIs(s.store.Create(s.ctx, app), sentinel.ErrConflict)

	_, err = s.store.GetByID(s.ctx, domain.NewApplicationID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListFilters() {
	mine := s.newApplication("pensioner-1")
	other := s.newApplication("pensioner-2")
	s.Require().NoError(s.store.Create(s.ctx, mine))
	s.Require().NoError(s.store.Create(s.ctx, other))

	apps, err := s.store.List(s.ctx, Filter{RequesterID: "pensioner-1"})
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal(mine.ID, apps[0].ID)

	apps, err = s.store.List(s.ctx, Filter{Statuses: []Status{StatusSubmitted}})
	s.Require().NoError(err)
	s.Len(apps, 2)

	apps, err = s.store.List(s.ctx, Filter{Statuses: []Status{StatusAttested}})
	s.Require().NoError(err)
	s.Empty(apps)
}

func (s *PostgresStoreSuite) TestApplyTransitionRowLock() {
	app := s.newApplication("pensioner-1")
	s.Require().NoError(s.store.Create(s.ctx, app))

	const goroutines = 8
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < goroutines; i++ {
		notaryID := "notary-" + string(rune('A'+i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.ApplyTransition(s.ctx, app.ID, StatusSubmitted, func(a *Application) error {
				a.Status = StatusAttested
				a.NotaryID = notaryID
				now := time.Now().UTC()
				a.AttestationDate = &now
				a.History = append(a.History, HistoryItem{Status: StatusAttested, Timestamp: now})
				return nil
			})
			if err == nil {
				wins.Add(1)
			} else {
				s.ErrorIs(err, sentinel.ErrInvalidState)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "row lock must admit exactly one winner")

	found, err := s.store.GetByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(StatusAttested, found.Status)
	s.Len(found.History, 2)

	// Indexed columns must track the record for filtered queries.
	apps, err := s.store.List(s.ctx, Filter{NotaryID: found.NotaryID, Statuses: []Status{StatusAttested}})
	s.Require().NoError(err)
	s.Len(apps, 1)
}

func (s *PostgresStoreSuite) TestSubscribeWithoutRedis() {
	_, err := s.store.Subscribe(s.ctx, Filter{})
	s.Require().ErrorIs(err, sentinel.ErrUnavailable)
}
