//go:build integration

package subject_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"resolute/internal/resolution/models"
	"resolute/internal/subject"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
	"resolute/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *subject.PostgresStore
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
	s.store = subject.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	err := s.postgres.TruncateAll(context.Background(),
		"review_tasks", "pending_merge_links", "subjects")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newSubject(records ...id.RecordID) *subject.Subject {
	return &subject.Subject{
		ID:             id.NewSubjectID(),
		CanonicalName:  "John Smith",
		CanonicalEmail: "john@example.com",
		CanonicalAddress: &models.PostalAddress{
			Street: "1 Main St",
			City:   "Springfield",
			State:  "IL",
			Zip:    "62701",
		},
		PIITypesFound:   []string{"name", "email"},
		SourceRecords:   records,
		MergeConfidence: 0.85,
		Status:          subject.StatusAIPending,
		Version:         1,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
}

func (s *PostgresStoreSuite) TestSaveAndGetRoundTrip() {
	ctx := context.Background()
	subj := s.newSubject("rec-1", "rec-2")
	s.Require().NoError(s.store.Save(ctx, subj))

	got, err := s.store.Get(ctx, subj.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(subj.CanonicalName, got.CanonicalName)
	s.Equal(subj.CanonicalEmail, got.CanonicalEmail)
	s.Require().NotNil(got.CanonicalAddress)
	s.Equal("Springfield", got.CanonicalAddress.City)
	s.Equal([]id.RecordID{"rec-1", "rec-2"}, got.SourceRecords)
	s.Equal(0.85, got.MergeConfidence)
	s.True(got.MergedInto.IsNil())
	s.True(subj.CreatedAt.Equal(got.CreatedAt))
}

func (s *PostgresStoreSuite) TestGetMissingReturnsNil() {
	got, err := s.store.Get(context.Background(), id.NewSubjectID())
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *PostgresStoreSuite) TestUpdateBumpsVersion() {
	ctx := context.Background()
	subj := s.newSubject("rec-1")
	s.Require().NoError(s.store.Save(ctx, subj))

	subj.Status = subject.StatusHumanReview
	s.Require().NoError(s.store.Update(ctx, subj))
	s.Equal(int64(2), subj.Version)

	got, err := s.store.Get(ctx, subj.ID)
	s.Require().NoError(err)
	s.Equal(subject.StatusHumanReview, got.Status)
	s.Equal(int64(2), got.Version)
}

func (s *PostgresStoreSuite) TestStaleUpdateConflicts() {
	ctx := context.Background()
	subj := s.newSubject("rec-1")
	s.Require().NoError(s.store.Save(ctx, subj))

	stale := *subj
	s.Require().NoError(s.store.Update(ctx, subj))

	err := s.store.Update(ctx, &stale)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PostgresStoreSuite) TestUpdateMissingIsNotFound() {
	err := s.store.Update(context.Background(), s.newSubject("rec-1"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestConcurrentUpdateSingleWinner() {
	ctx := context.Background()
	subj := s.newSubject("rec-1")
	s.Require().NoError(s.store.Save(ctx, subj))

	const goroutines = 8
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapshot := *subj
			snapshot.Status = subject.StatusHumanReview
			switch err := s.store.Update(ctx, &snapshot); {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestAbsorbedSubjectsAreInvisible() {
	ctx := context.Background()
	survivor := s.newSubject("rec-1")
	survivor.Status = subject.StatusApproved
	absorbed := s.newSubject("rec-2")
	absorbed.Status = subject.StatusApproved
	s.Require().NoError(s.store.Save(ctx, survivor))
	s.Require().NoError(s.store.Save(ctx, absorbed))

	absorbed.MergedInto = survivor.ID
	s.Require().NoError(s.store.Update(ctx, absorbed))

	listed, err := s.store.ListByStatus(ctx, subject.StatusApproved)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(survivor.ID, listed[0].ID)

	found, err := s.store.FindByRecord(ctx, "rec-2")
	s.Require().NoError(err)
	s.Nil(found)

	// Direct lookup still works and reports the absorption.
	got, err := s.store.Get(ctx, absorbed.ID)
	s.Require().NoError(err)
	s.True(got.Absorbed())
	s.Equal(survivor.ID, got.MergedInto)
}

func (s *PostgresStoreSuite) TestFindByRecord() {
	ctx := context.Background()
	subj := s.newSubject("rec-1", "rec-2")
	s.Require().NoError(s.store.Save(ctx, subj))

	found, err := s.store.FindByRecord(ctx, "rec-2")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(subj.ID, found.ID)

	missing, err := s.store.FindByRecord(ctx, "rec-99")
	s.Require().NoError(err)
	s.Nil(missing)
}
