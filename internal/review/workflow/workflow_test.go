package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"resolute/internal/audit"
	"resolute/internal/subject"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

type WorkflowSuite struct {
	suite.Suite
	subjects *subject.InMemoryStore
	audits   *audit.InMemoryStore
	engine   *Engine
	now      time.Time
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.subjects = subject.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	recorder, err := audit.NewRecorder(s.audits)
	s.Require().NoError(err)

	s.engine, err = NewEngine(s.subjects, recorder,
		WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

func (s *WorkflowSuite) seedSubject(status subject.Status) *subject.Subject {
	subj := &subject.Subject{
		ID:              id.NewSubjectID(),
		CanonicalName:   "John Smith",
		SourceRecords:   []id.RecordID{"rec-1"},
		MergeConfidence: 0.9,
		Status:          status,
		Version:         1,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
	s.Require().NoError(s.subjects.Save(context.Background(), subj))
	return subj
}

func (s *WorkflowSuite) TestCanTransition() {
	s.Run("forward edges", func() {
		s.True(CanTransition(subject.StatusAIPending, subject.StatusHumanReview))
		s.True(CanTransition(subject.StatusAIPending, subject.StatusApproved))
		s.True(CanTransition(subject.StatusHumanReview, subject.StatusLegalReview))
		s.True(CanTransition(subject.StatusLegalReview, subject.StatusApproved))
		s.True(CanTransition(subject.StatusApproved, subject.StatusNotified))
	})

	s.Run("qc reopen edge", func() {
		s.True(CanTransition(subject.StatusApproved, subject.StatusHumanReview))
	})

	s.Run("illegal edges", func() {
		s.False(CanTransition(subject.StatusAIPending, subject.StatusNotified))
		s.False(CanTransition(subject.StatusAIPending, subject.StatusLegalReview))
		s.False(CanTransition(subject.StatusRejected, subject.StatusHumanReview))
		s.False(CanTransition(subject.StatusNotified, subject.StatusApproved))
	})
}

func (s *WorkflowSuite) TestTransition() {
	ctx := context.Background()

	s.Run("approval writes status and audit", func() {
		subj := s.seedSubject(subject.StatusHumanReview)

		updated, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusApproved,
			Actor:     "rev-1",
			Rationale: "identity evidence corroborated across three records",
		})
		s.Require().NoError(err)
		s.Equal(subject.StatusApproved, updated.Status)
		s.Equal(int64(2), updated.Version)

		events, err := s.audits.ListBySubject(ctx, subj.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.EventApproval, events[0].Type)
		s.Equal("rev-1", events[0].Actor)
	})

	s.Run("missing subject", func() {
		_, err := s.engine.Transition(ctx, Request{
			SubjectID: id.NewSubjectID(),
			To:        subject.StatusHumanReview,
			Actor:     "system",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("terminal subject cannot move", func() {
		subj := s.seedSubject(subject.StatusNotified)

		_, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusHumanReview,
			Actor:     "rev-1",
			Rationale: "attempting to reopen a closed case",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("illegal edge is rejected", func() {
		subj := s.seedSubject(subject.StatusAIPending)

		_, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusNotified,
			Actor:     "system",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("short rationale is rejected", func() {
		subj := s.seedSubject(subject.StatusHumanReview)

		_, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusRejected,
			Actor:     "rev-1",
			Rationale: "no",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("approval from legal review needs regulatory basis", func() {
		subj := s.seedSubject(subject.StatusLegalReview)

		_, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusApproved,
			Actor:     "legal-1",
			Rationale: "notification obligation confirmed for this cohort",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		updated, err := s.engine.Transition(ctx, Request{
			SubjectID:       subj.ID,
			To:              subject.StatusApproved,
			Actor:           "legal-1",
			Rationale:       "notification obligation confirmed for this cohort",
			RegulatoryBasis: "GDPR Art. 34",
		})
		s.Require().NoError(err)
		s.Equal(subject.StatusApproved, updated.Status)

		events, err := s.audits.ListBySubject(ctx, subj.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("GDPR Art. 34", events[0].RegulatoryBasis)
	})

	s.Run("escalation records the reason", func() {
		subj := s.seedSubject(subject.StatusHumanReview)

		_, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusLegalReview,
			Actor:     "rev-2",
			Rationale: "cross-border records need a legal read on obligations",
		})
		s.Require().NoError(err)

		events, err := s.audits.ListBySubject(ctx, subj.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.EventEscalation, events[0].Type)
	})

	s.Run("qc reopen audits as reopened", func() {
		subj := s.seedSubject(subject.StatusApproved)

		_, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusHumanReview,
			Actor:     "qc-1",
			Rationale: "canonical address does not match majority of records",
		})
		s.Require().NoError(err)

		events, err := s.audits.ListBySubject(ctx, subj.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.EventQCReopened, events[0].Type)
	})

	s.Run("flag routing requires a rationale", func() {
		subj := s.seedSubject(subject.StatusAIPending)

		_, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusHumanReview,
			Actor:     "system",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		updated, err := s.engine.Transition(ctx, Request{
			SubjectID: subj.ID,
			To:        subject.StatusHumanReview,
			Actor:     "system",
			Rationale: "automatic routing: low-confidence extraction or pending merge evidence",
		})
		s.Require().NoError(err)
		s.Equal(subject.StatusHumanReview, updated.Status)

		events, err := s.audits.ListBySubject(ctx, subj.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.EventHumanReview, events[0].Type)
		s.NotEmpty(events[0].Rationale)
	})
}

func (s *WorkflowSuite) TestFailedAuditAbortsTransition() {
	ctx := context.Background()
	subj := s.seedSubject(subject.StatusHumanReview)

	recorder, err := audit.NewRecorder(failingAuditStore{})
	s.Require().NoError(err)
	engine, err := NewEngine(s.subjects, recorder)
	s.Require().NoError(err)

	_, err = engine.Transition(ctx, Request{
		SubjectID: subj.ID,
		To:        subject.StatusApproved,
		Actor:     "rev-1",
		Rationale: "identity evidence corroborated across three records",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	stored, err := s.subjects.Get(ctx, subj.ID)
	s.Require().NoError(err)
	s.Equal(subject.StatusHumanReview, stored.Status)
}

type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, audit.Event) error { return context.DeadlineExceeded }
func (failingAuditStore) ListBySubject(context.Context, id.SubjectID) ([]audit.Event, error) {
	return nil, nil
}
func (failingAuditStore) ListByType(context.Context, audit.EventType) ([]audit.Event, error) {
	return nil, nil
}
