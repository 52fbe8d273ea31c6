package sampling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"resolute/internal/audit"
	linkstore "resolute/internal/resolution/store"
	"resolute/internal/review/models"
	"resolute/internal/review/queue"
	"resolute/internal/review/store"
	"resolute/internal/review/workflow"
	"resolute/internal/subject"
	id "resolute/pkg/domain"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		min     int
		max     int
		wantErr bool
	}{
		{name: "valid", rate: 0.05, min: 1, max: 20},
		{name: "uncapped", rate: 0.1, min: 0, max: 0},
		{name: "negative rate", rate: -0.1, min: 0, max: 0, wantErr: true},
		{name: "rate above one", rate: 1.5, min: 0, max: 0, wantErr: true},
		{name: "negative minimum", rate: 0.1, min: -1, max: 0, wantErr: true},
		{name: "max below min", rate: 0.1, min: 5, max: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.rate, tt.min, tt.max)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSampleSize(t *testing.T) {
	cfg := Config{Rate: 0.05, Min: 2, Max: 10}

	assert.Equal(t, 0, cfg.SampleSize(0))
	assert.Equal(t, 2, cfg.SampleSize(10))  // floor dominates
	assert.Equal(t, 5, cfg.SampleSize(100)) // rate dominates
	assert.Equal(t, 10, cfg.SampleSize(500))
	assert.Equal(t, 1, Config{Rate: 0.05, Min: 2}.SampleSize(1)) // clamped to population
}

type SamplerSuite struct {
	suite.Suite
	tasks    *store.InMemoryTaskStore
	subjects *subject.InMemoryStore
	audits   *audit.InMemoryStore
	queue    *queue.Service
	recorder *audit.Recorder
	now      time.Time
}

func TestSamplerSuite(t *testing.T) {
	suite.Run(t, new(SamplerSuite))
}

func (s *SamplerSuite) SetupTest() {
	s.tasks = store.NewInMemoryTaskStore()
	s.subjects = subject.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()
	s.now = time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

	var err error
	s.recorder, err = audit.NewRecorder(s.audits)
	s.Require().NoError(err)
	wf, err := workflow.NewEngine(s.subjects, s.recorder)
	s.Require().NoError(err)
	s.queue, err = queue.NewService(s.tasks, s.subjects, linkstore.NewInMemoryLinkStore(), wf, s.recorder,
		queue.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

func (s *SamplerSuite) seedApproved(n int) []*subject.Subject {
	out := make([]*subject.Subject, 0, n)
	for i := 0; i < n; i++ {
		subj := &subject.Subject{
			ID:              id.NewSubjectID(),
			CanonicalName:   "Jane Doe",
			SourceRecords:   []id.RecordID{id.RecordID("rec-" + id.NewSubjectID().String()[:8])},
			MergeConfidence: 0.95,
			Status:          subject.StatusApproved,
			Version:         1,
			CreatedAt:       s.now,
			UpdatedAt:       s.now,
		}
		s.Require().NoError(s.subjects.Save(context.Background(), subj))
		out = append(out, subj)
	}
	return out
}

func (s *SamplerSuite) TestSampleDrawsConfiguredShare() {
	ctx := context.Background()
	approved := s.seedApproved(40)

	sampler, err := NewSampler(Config{Rate: 0.1, Min: 1}, s.queue, s.tasks, s.recorder, WithSeed(42))
	s.Require().NoError(err)

	sampled, err := sampler.Sample(ctx, approved)
	s.Require().NoError(err)
	s.Len(sampled, 4)

	for _, task := range sampled {
		s.Equal(models.QueueQCSampling, task.Queue)
		s.Equal(models.RoleQCSampler, task.RequiredRole)

		events, err := s.audits.ListBySubject(ctx, task.SubjectID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.EventQCSampled, events[0].Type)
	}
}

func (s *SamplerSuite) TestSampleSkipsOpenTasks() {
	ctx := context.Background()
	approved := s.seedApproved(3)

	// One subject is already under QC.
	_, err := s.queue.EnqueueSubject(ctx, models.QueueQCSampling, approved[0])
	s.Require().NoError(err)

	sampler, err := NewSampler(Config{Rate: 1.0}, s.queue, s.tasks, s.recorder, WithSeed(7))
	s.Require().NoError(err)

	sampled, err := sampler.Sample(ctx, approved)
	s.Require().NoError(err)
	s.Len(sampled, 2)
	for _, task := range sampled {
		s.NotEqual(approved[0].ID, task.SubjectID)
	}
}

func (s *SamplerSuite) TestSampleIgnoresNonApproved() {
	ctx := context.Background()
	approved := s.seedApproved(2)

	pending := &subject.Subject{
		ID:            id.NewSubjectID(),
		SourceRecords: []id.RecordID{"rec-pending"},
		Status:        subject.StatusAIPending,
		Version:       1,
		CreatedAt:     s.now,
		UpdatedAt:     s.now,
	}
	s.Require().NoError(s.subjects.Save(ctx, pending))

	sampler, err := NewSampler(Config{Rate: 1.0}, s.queue, s.tasks, s.recorder, WithSeed(7))
	s.Require().NoError(err)

	sampled, err := sampler.Sample(ctx, append(approved, pending))
	s.Require().NoError(err)
	s.Len(sampled, 2)
}

func (s *SamplerSuite) TestSampleSkipsHumanApprovedSubjects() {
	ctx := context.Background()
	approved := s.seedApproved(2)

	// Approved through human review rather than the automatic path.
	reviewed := &subject.Subject{
		ID:               id.NewSubjectID(),
		CanonicalName:    "Jane Doe",
		SourceRecords:    []id.RecordID{"rec-reviewed"},
		MergeConfidence:  0.55,
		FlaggedForReview: true,
		Status:           subject.StatusApproved,
		Version:          1,
		CreatedAt:        s.now,
		UpdatedAt:        s.now,
	}
	s.Require().NoError(s.subjects.Save(ctx, reviewed))

	sampler, err := NewSampler(Config{Rate: 1.0}, s.queue, s.tasks, s.recorder, WithSeed(7))
	s.Require().NoError(err)

	sampled, err := sampler.Sample(ctx, append(approved, reviewed))
	s.Require().NoError(err)
	s.Len(sampled, 2)
	for _, task := range sampled {
		s.NotEqual(reviewed.ID, task.SubjectID)
	}
}

func (s *SamplerSuite) TestEmptyPopulation() {
	sampler, err := NewSampler(DefaultConfig(), s.queue, s.tasks, s.recorder)
	s.Require().NoError(err)

	sampled, err := sampler.Sample(context.Background(), nil)
	s.Require().NoError(err)
	s.Empty(sampled)
}
