// Package subject defines the canonical affected-individual entity and its
// review status. A Subject is created when a cluster first forms and is only
// ever additively mutated: provenance grows, canonical fields recompute, and
// terminal states mark rather than delete.
package subject

import (
	"time"

	"resolute/internal/resolution/models"
	id "resolute/pkg/domain"
)

// Status is the review workflow state of a Subject. Transitions are owned
// by the workflow engine; nothing else writes this field.
type Status string

const (
	StatusAIPending   Status = "AI_PENDING"
	StatusHumanReview Status = "HUMAN_REVIEW"
	StatusLegalReview Status = "LEGAL_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusNotified    Status = "NOTIFIED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusNotified
}

// Absorbed reports whether this subject was folded into a survivor by a
// confirmed merge.
func (s *Subject) Absorbed() bool { return !s.MergedInto.IsNil() }

// Subject is one unique affected individual.
type Subject struct {
	ID id.SubjectID

	CanonicalName    string
	CanonicalEmail   string
	CanonicalPhone   string
	CanonicalAddress *models.PostalAddress

	// PIITypesFound is the sorted union of entity-type tags across all
	// merged records. The protocol engine reads it to decide notification
	// obligations.
	PIITypesFound []string

	// SourceRecords is the provenance list. Append-only.
	SourceRecords []id.RecordID

	// MergeConfidence is the minimum pairwise confidence among the edges
	// holding the cluster together. Conservative by construction.
	MergeConfidence float64

	// NotificationRequired is written by the external protocol engine,
	// never by this core.
	NotificationRequired bool

	// FlaggedForReview is set when any merged record carried a
	// low-confidence extraction or the subject has a pending merge link.
	FlaggedForReview bool

	Status Status

	// MergedInto is set when a reviewer confirms a pending merge and this
	// subject is absorbed into the survivor. An absorbed subject is inert:
	// never listed, transitioned, or notified on its own.
	MergedInto id.SubjectID

	// Version supports optimistic locking on concurrent updates.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
