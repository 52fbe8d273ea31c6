// Package store persists the resolution side artifacts that outlive a
// batch: pending merge links and the rejected-pairs ledger.
package store

import (
	"context"

	"resolute/internal/resolution/models"
	id "resolute/pkg/domain"
)

// LinkStore persists pending merge links and the permanent record of
// reviewer-rejected pairs. Rejection is keyed by stable pair identity so it
// holds across job re-runs with overlapping record sets.
type LinkStore interface {
	SaveLink(ctx context.Context, link *models.PendingMergeLink) error

	// GetLink returns the link or nil when it does not exist.
	GetLink(ctx context.Context, linkID id.LinkID) (*models.PendingMergeLink, error)

	// UpdateLink writes the link's current status.
	UpdateLink(ctx context.Context, link *models.PendingMergeLink) error

	// ListPending returns unresolved links, lowest confidence first.
	ListPending(ctx context.Context) ([]*models.PendingMergeLink, error)

	// FindPendingByPair returns the unresolved link for a pair key, or nil.
	FindPendingByPair(ctx context.Context, key id.PairKey) (*models.PendingMergeLink, error)

	// MarkRejected adds a pair to the permanent rejection ledger.
	MarkRejected(ctx context.Context, key id.PairKey) error

	// RejectedPairs returns the full rejection ledger.
	RejectedPairs(ctx context.Context) (map[id.PairKey]bool, error)
}
