package store

import (
	"context"
	"sort"
	"sync"

	"resolute/internal/review/models"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// InMemoryTaskStore keeps review tasks in process memory. Used in tests and
// single-node deployments; the postgres store is the durable twin.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[id.TaskID]*models.ReviewTask
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{tasks: make(map[id.TaskID]*models.ReviewTask)}
}

func (s *InMemoryTaskStore) Save(_ context.Context, task *models.ReviewTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "task %s already exists", task.ID)
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *InMemoryTaskStore) Get(_ context.Context, taskID id.TaskID) (*models.ReviewTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if task, exists := s.tasks[taskID]; exists {
		return cloneTask(task), nil
	}
	return nil, nil
}

func (s *InMemoryTaskStore) Update(_ context.Context, task *models.ReviewTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.tasks[task.ID]
	if !exists {
		return dErrors.Newf(dErrors.CodeNotFound, "task %s not found", task.ID)
	}
	if stored.Version != task.Version {
		return dErrors.Newf(dErrors.CodeConflict,
			"task %s version %d is stale (stored %d)", task.ID, task.Version, stored.Version)
	}

	next := cloneTask(task)
	next.Version++
	s.tasks[task.ID] = next
	task.Version = next.Version
	return nil
}

func (s *InMemoryTaskStore) ListOpenByQueue(_ context.Context, queue models.QueueType) ([]*models.ReviewTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ReviewTask
	for _, task := range s.tasks {
		if task.Queue == queue && task.Status != models.TaskCompleted {
			out = append(out, cloneTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence < out[j].Confidence
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryTaskStore) FindOpenBySubject(_ context.Context, subjectID id.SubjectID, queue models.QueueType) (*models.ReviewTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, task := range s.tasks {
		if task.Queue == queue && task.SubjectID == subjectID && task.Status != models.TaskCompleted {
			return cloneTask(task), nil
		}
	}
	return nil, nil
}

func (s *InMemoryTaskStore) FindOpenByLink(_ context.Context, linkID id.LinkID) (*models.ReviewTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, task := range s.tasks {
		if task.LinkID == linkID && task.Status != models.TaskCompleted {
			return cloneTask(task), nil
		}
	}
	return nil, nil
}

// cloneTask copies a task so callers cannot mutate stored state in place.
func cloneTask(t *models.ReviewTask) *models.ReviewTask {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
