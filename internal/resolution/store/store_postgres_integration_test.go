//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"resolute/internal/resolution/models"
	"resolute/internal/resolution/store"
	"resolute/internal/subject"
	id "resolute/pkg/domain"
	"resolute/pkg/testutil/containers"
)

type PostgresLinkStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresLinkStore
	subjects *subject.PostgresStore
	now      time.Time
}

func TestPostgresLinkStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLinkStoreSuite))
}

func (s *PostgresLinkStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), "../../../migrations/0001_init.sql")
	s.store = store.NewPostgresLinkStore(s.postgres.DB)
	s.subjects = subject.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresLinkStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	err := s.postgres.TruncateAll(context.Background(),
		"pending_merge_links", "rejected_pairs", "subjects")
	s.Require().NoError(err)
}

func (s *PostgresLinkStoreSuite) seedSubject(record id.RecordID) id.SubjectID {
	subj := &subject.Subject{
		ID:              id.NewSubjectID(),
		CanonicalName:   "Jane Doe",
		SourceRecords:   []id.RecordID{record},
		MergeConfidence: 0.7,
		Status:          subject.StatusHumanReview,
		Version:         1,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
	s.Require().NoError(s.subjects.Save(context.Background(), subj))
	return subj.ID
}

func (s *PostgresLinkStoreSuite) newLink(recA, recB id.RecordID, confidence float64) *models.PendingMergeLink {
	pair := models.CandidatePair{A: recA, B: recB}
	return &models.PendingMergeLink{
		ID:         id.NewLinkID(),
		SubjectA:   s.seedSubject(recA),
		SubjectB:   s.seedSubject(recB),
		RecordA:    recA,
		RecordB:    recB,
		PairKey:    pair.Key(),
		Confidence: confidence,
		Status:     models.LinkPending,
		CreatedAt:  s.now,
	}
}

func (s *PostgresLinkStoreSuite) TestSaveAndFindByPair() {
	ctx := context.Background()
	link := s.newLink("rec-a", "rec-b", 0.65)
	s.Require().NoError(s.store.SaveLink(ctx, link))

	found, err := s.store.FindPendingByPair(ctx, link.PairKey)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(link.ID, found.ID)
	s.Equal(link.SubjectA, found.SubjectA)
	s.Equal(0.65, found.Confidence)

	got, err := s.store.GetLink(ctx, link.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(link.PairKey, got.PairKey)
}

func (s *PostgresLinkStoreSuite) TestResolvedLinkLeavesPendingView() {
	ctx := context.Background()
	link := s.newLink("rec-a", "rec-b", 0.65)
	s.Require().NoError(s.store.SaveLink(ctx, link))

	link.Status = models.LinkConfirmed
	s.Require().NoError(s.store.UpdateLink(ctx, link))

	found, err := s.store.FindPendingByPair(ctx, link.PairKey)
	s.Require().NoError(err)
	s.Nil(found)

	pending, err := s.store.ListPending(ctx)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *PostgresLinkStoreSuite) TestListPendingOrderedByConfidence() {
	ctx := context.Background()
	high := s.newLink("rec-a", "rec-b", 0.75)
	low := s.newLink("rec-c", "rec-d", 0.62)
	s.Require().NoError(s.store.SaveLink(ctx, high))
	s.Require().NoError(s.store.SaveLink(ctx, low))

	pending, err := s.store.ListPending(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(low.ID, pending[0].ID)
	s.Equal(high.ID, pending[1].ID)
}

func (s *PostgresLinkStoreSuite) TestDuplicateOpenPairRejected() {
	ctx := context.Background()
	link := s.newLink("rec-a", "rec-b", 0.65)
	s.Require().NoError(s.store.SaveLink(ctx, link))

	dup := *link
	dup.ID = id.NewLinkID()
	s.Error(s.store.SaveLink(ctx, &dup))
}

func (s *PostgresLinkStoreSuite) TestRejectionLedger() {
	ctx := context.Background()
	pair := models.CandidatePair{A: "rec-a", B: "rec-b"}

	s.Require().NoError(s.store.MarkRejected(ctx, pair.Key()))
	// Idempotent.
	s.Require().NoError(s.store.MarkRejected(ctx, pair.Key()))

	rejected, err := s.store.RejectedPairs(ctx)
	s.Require().NoError(err)
	s.True(rejected[pair.Key()])
	s.Len(rejected, 1)
}
