//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"resolute/internal/audit"
	id "resolute/pkg/domain"
	"resolute/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), "../../migrations/0001_init.sql")
	s.store = audit.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	err := s.postgres.TruncateAll(context.Background(), "audit_events")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newEvent(t audit.EventType, subjectID id.SubjectID, at time.Time) audit.Event {
	return audit.Event{
		ID:        id.NewEventID(),
		Type:      t,
		Actor:     "system",
		SubjectID: subjectID.String(),
		Timestamp: at,
	}
}

func (s *PostgresStoreSuite) TestAppendAndListBySubject() {
	ctx := context.Background()
	subjectID := id.NewSubjectID()
	other := id.NewSubjectID()

	second := s.newEvent(audit.EventHumanReview, subjectID, s.now.Add(time.Second))
	second.Actor = "rev-1"
	second.Rationale = "needs a closer look"
	first := s.newEvent(audit.EventSubjectCreated, subjectID, s.now)

	s.Require().NoError(s.store.Append(ctx, second))
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, s.newEvent(audit.EventSubjectCreated, other, s.now)))

	events, err := s.store.ListBySubject(ctx, subjectID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.EventSubjectCreated, events[0].Type)
	s.Equal(audit.EventHumanReview, events[1].Type)
	s.Equal("needs a closer look", events[1].Rationale)
}

func (s *PostgresStoreSuite) TestListByType() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.newEvent(audit.EventQCSampled, id.NewSubjectID(), s.now)))
	s.Require().NoError(s.store.Append(ctx, s.newEvent(audit.EventSubjectCreated, id.NewSubjectID(), s.now)))

	events, err := s.store.ListByType(ctx, audit.EventQCSampled)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.EventQCSampled, events[0].Type)
}

func (s *PostgresStoreSuite) TestRowsAreImmutable() {
	ctx := context.Background()
	event := s.newEvent(audit.EventSubjectCreated, id.NewSubjectID(), s.now)
	s.Require().NoError(s.store.Append(ctx, event))

	_, err := s.postgres.DB.ExecContext(ctx,
		`UPDATE audit_events SET actor = 'attacker' WHERE id = $1`, event.ID.String())
	s.Require().Error(err)
	s.Contains(err.Error(), "immutable")

	_, err = s.postgres.DB.ExecContext(ctx,
		`DELETE FROM audit_events WHERE id = $1`, event.ID.String())
	s.Require().Error(err)
	s.Contains(err.Error(), "immutable")
}
