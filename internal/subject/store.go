package subject

import (
	"context"

	id "resolute/pkg/domain"
)

// Store persists Subjects. Implementations must make Update an optimistic
// compare-and-swap on Version so concurrent reviewer actions serialize
// rather than race.
type Store interface {
	// Save inserts a new Subject.
	Save(ctx context.Context, s *Subject) error

	// Get returns the Subject or nil when it does not exist.
	Get(ctx context.Context, subjectID id.SubjectID) (*Subject, error)

	// Update writes s if the stored Version still matches s.Version, then
	// increments it. A stale Version yields a conflict error.
	Update(ctx context.Context, s *Subject) error

	// ListByStatus returns Subjects in a given status, oldest first.
	ListByStatus(ctx context.Context, status Status) ([]*Subject, error)

	// FindByRecord returns the Subject whose provenance contains recordID,
	// or nil when no Subject has absorbed that record yet.
	FindByRecord(ctx context.Context, recordID id.RecordID) (*Subject, error)
}
