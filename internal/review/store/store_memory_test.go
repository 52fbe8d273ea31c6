package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"resolute/internal/review/models"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

type TaskStoreSuite struct {
	suite.Suite
	store *InMemoryTaskStore
	now   time.Time
}

func TestTaskStoreSuite(t *testing.T) {
	suite.Run(t, new(TaskStoreSuite))
}

func (s *TaskStoreSuite) SetupTest() {
	s.store = NewInMemoryTaskStore()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *TaskStoreSuite) newTask(queue models.QueueType, confidence float64) *models.ReviewTask {
	role, err := models.RoleForQueue(queue)
	s.Require().NoError(err)
	return &models.ReviewTask{
		ID:           id.NewTaskID(),
		Queue:        queue,
		SubjectID:    id.NewSubjectID(),
		Confidence:   confidence,
		RequiredRole: role,
		Status:       models.TaskPending,
		Version:      1,
		CreatedAt:    s.now,
	}
}

func (s *TaskStoreSuite) TestSaveAndGet() {
	ctx := context.Background()
	task := s.newTask(models.QueueLowConfidence, 0.7)

	s.Require().NoError(s.store.Save(ctx, task))

	s.Run("duplicate id is rejected", func() {
		err := s.store.Save(ctx, task)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("get returns a copy", func() {
		got, err := s.store.Get(ctx, task.ID)
		s.Require().NoError(err)
		s.Require().NotNil(got)

		got.AssignedTo = "rev-1"
		again, err := s.store.Get(ctx, task.ID)
		s.Require().NoError(err)
		s.Empty(again.AssignedTo)
	})

	s.Run("missing task is nil", func() {
		got, err := s.store.Get(ctx, id.NewTaskID())
		s.Require().NoError(err)
		s.Nil(got)
	})
}

func (s *TaskStoreSuite) TestQueueOrdering() {
	ctx := context.Background()

	for _, confidence := range []float64{0.75, 0.62, 0.68} {
		s.Require().NoError(s.store.Save(ctx, s.newTask(models.QueueLowConfidence, confidence)))
	}
	completed := s.newTask(models.QueueLowConfidence, 0.10)
	completed.Status = models.TaskCompleted
	s.Require().NoError(s.store.Save(ctx, completed))
	s.Require().NoError(s.store.Save(ctx, s.newTask(models.QueueEscalation, 0.5)))

	tasks, err := s.store.ListOpenByQueue(ctx, models.QueueLowConfidence)
	s.Require().NoError(err)
	s.Require().Len(tasks, 3)
	s.Equal(0.62, tasks[0].Confidence)
	s.Equal(0.68, tasks[1].Confidence)
	s.Equal(0.75, tasks[2].Confidence)
}

func (s *TaskStoreSuite) TestFindOpen() {
	ctx := context.Background()
	task := s.newTask(models.QueueQCSampling, 0.9)
	s.Require().NoError(s.store.Save(ctx, task))

	found, err := s.store.FindOpenBySubject(ctx, task.SubjectID, models.QueueQCSampling)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(task.ID, found.ID)

	s.Run("completed tasks are invisible", func() {
		found.Status = models.TaskCompleted
		s.Require().NoError(s.store.Update(ctx, found))

		again, err := s.store.FindOpenBySubject(ctx, task.SubjectID, models.QueueQCSampling)
		s.Require().NoError(err)
		s.Nil(again)
	})

	s.Run("link lookup", func() {
		linked := s.newTask(models.QueueRRAReview, 0.7)
		linked.LinkID = id.NewLinkID()
		s.Require().NoError(s.store.Save(ctx, linked))

		got, err := s.store.FindOpenByLink(ctx, linked.LinkID)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal(linked.ID, got.ID)
	})
}

func (s *TaskStoreSuite) TestConcurrentAssignmentIsExclusive() {
	ctx := context.Background()
	task := s.newTask(models.QueueLowConfidence, 0.7)
	s.Require().NoError(s.store.Save(ctx, task))

	// Every claimer starts from the same snapshot, so exactly one CAS wins.
	snapshot, err := s.store.Get(ctx, task.ID)
	s.Require().NoError(err)

	const claimers = 8
	var wg sync.WaitGroup
	errs := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			local := *snapshot
			local.Status = models.TaskInProgress
			local.AssignedTo = "rev-" + string(rune('a'+n))
			errs <- s.store.Update(ctx, &local)
		}(i)
	}
	wg.Wait()
	close(errs)

	var conflicts, wins int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		conflicts++
	}
	s.Equal(1, wins)
	s.Equal(claimers-1, conflicts)
}
