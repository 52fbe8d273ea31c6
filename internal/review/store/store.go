// Package store persists review tasks.
package store

import (
	"context"

	"resolute/internal/review/models"
	id "resolute/pkg/domain"
)

// TaskStore persists review tasks. Update is an optimistic compare-and-swap
// on Version; that is what makes assignment exclusive under concurrency.
type TaskStore interface {
	// Save inserts a new task.
	Save(ctx context.Context, task *models.ReviewTask) error

	// Get returns the task or nil when it does not exist.
	Get(ctx context.Context, taskID id.TaskID) (*models.ReviewTask, error)

	// Update writes task if the stored Version still matches, then
	// increments it. A stale Version yields a conflict error.
	Update(ctx context.Context, task *models.ReviewTask) error

	// ListOpenByQueue returns the queue's non-completed tasks ordered by
	// ascending confidence, then creation time. Least certain work first.
	ListOpenByQueue(ctx context.Context, queue models.QueueType) ([]*models.ReviewTask, error)

	// FindOpenBySubject returns the open task targeting subjectID in the
	// given queue, or nil. Used to avoid enqueuing duplicates.
	FindOpenBySubject(ctx context.Context, subjectID id.SubjectID, queue models.QueueType) (*models.ReviewTask, error)

	// FindOpenByLink returns the open rra_review task targeting linkID,
	// or nil.
	FindOpenByLink(ctx context.Context, linkID id.LinkID) (*models.ReviewTask, error)
}
