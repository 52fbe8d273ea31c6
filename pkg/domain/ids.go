// Package domain defines typed identifiers shared across services.
//
// Each entity gets its own UUID-backed type so the compiler rejects
// cross-entity mixups. Record identifiers are opaque strings because they
// are minted by the upstream normalization collaborator, not by us.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "resolute/pkg/errors"
)

type (
	// SubjectID identifies one unique affected individual. Assigned once at
	// cluster formation and never reused.
	SubjectID uuid.UUID

	// TaskID identifies a review task.
	TaskID uuid.UUID

	// LinkID identifies a pending merge link awaiting human confirmation.
	LinkID uuid.UUID

	// EventID identifies an audit event.
	EventID uuid.UUID
)

// RecordID is the stable identifier of a normalized source record, owned by
// the normalization collaborator. Treated as opaque.
type RecordID string

// NewSubjectID mints a fresh subject identifier.
func NewSubjectID() SubjectID { return SubjectID(uuid.New()) }

// NewTaskID mints a fresh task identifier.
func NewTaskID() TaskID { return TaskID(uuid.New()) }

// NewLinkID mints a fresh pending-merge-link identifier.
func NewLinkID() LinkID { return LinkID(uuid.New()) }

// NewEventID mints a fresh audit event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

func (id SubjectID) String() string { return uuid.UUID(id).String() }
func (id TaskID) String() string    { return uuid.UUID(id).String() }
func (id LinkID) String() string    { return uuid.UUID(id).String() }
func (id EventID) String() string   { return uuid.UUID(id).String() }

func (id SubjectID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TaskID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id LinkID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

// ParseSubjectID parses and validates a subject identifier.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID(s)
	return SubjectID(u), err
}

// ParseTaskID parses and validates a task identifier.
func ParseTaskID(s string) (TaskID, error) {
	u, err := parseUUID(s)
	return TaskID(u), err
}

// ParseLinkID parses and validates a pending-merge-link identifier.
func ParseLinkID(s string) (LinkID, error) {
	u, err := parseUUID(s)
	return LinkID(u), err
}

// ParseEventID parses and validates an audit event identifier.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s)
	return EventID(u), err
}

// PairKey is the stable identity of an unordered record pair. It survives
// re-clustering across job re-runs, which is what lets a rejected merge stay
// rejected even when cluster identifiers change.
type PairKey string

// NewPairKey builds the canonical key for an unordered record pair.
func NewPairKey(a, b RecordID) PairKey {
	if strings.Compare(string(a), string(b)) > 0 {
		a, b = b, a
	}
	return PairKey(string(a) + "|" + string(b))
}
