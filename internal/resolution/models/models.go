// Package models defines the resolution-side domain types: normalized input
// records, matching signals, scored candidate pairs, and pending merge links.
package models

import (
	"time"

	id "resolute/pkg/domain"
)

// PostalAddress is a canonical postal address produced by the normalization
// collaborator. Comparison semantics live in the fuzzy package.
type PostalAddress struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// NormalizedRecord is one extracted personal-data record, already
// canonicalized upstream. Immutable once produced; resolution never writes
// to it.
type NormalizedRecord struct {
	ID          id.RecordID
	Name        string
	Email       string
	Phone       string
	Address     *PostalAddress
	DateOfBirth string // ISO 8601, canonical; exact match only
	GovIDHash   string // hash of any government identifier, or empty
	EntityTypes []string
	EvidenceRef string // back-reference to the originating document

	// LowConfidence is set by the detection ladder when the underlying
	// extraction scored below its confidence floor. It routes the eventual
	// subject into human review.
	LowConfidence bool

	IngestedAt time.Time
}

// Signal is a single matching rule contributing a fixed confidence weight.
type Signal string

const (
	SignalGovID       Signal = "gov_id"
	SignalEmail       Signal = "email"
	SignalPhone       Signal = "phone"
	SignalNameDOB     Signal = "name_dob"
	SignalNameAddress Signal = "name_address"
	SignalNameOnly    Signal = "name_only"
)

// AllSignals lists every signal in weight order, strongest first.
var AllSignals = []Signal{
	SignalGovID,
	SignalEmail,
	SignalPhone,
	SignalNameDOB,
	SignalNameAddress,
	SignalNameOnly,
}

// CandidatePair is the scored result of comparing two records. Zero fired
// signals means no relationship.
type CandidatePair struct {
	A          id.RecordID
	B          id.RecordID
	Signals    []Signal
	Confidence float64
}

// Key returns the stable unordered identity of the pair.
func (p CandidatePair) Key() id.PairKey { return id.NewPairKey(p.A, p.B) }

// LinkStatus is the lifecycle of a pending merge link.
type LinkStatus string

const (
	LinkPending   LinkStatus = "PENDING"
	LinkConfirmed LinkStatus = "CONFIRMED"
	LinkRejected  LinkStatus = "REJECTED"
)

// PendingMergeLink is a candidate merge whose confidence fell in the human
// confirmation band. It is resolved only through the review workflow, never
// applied silently.
type PendingMergeLink struct {
	ID         id.LinkID
	SubjectA   id.SubjectID
	SubjectB   id.SubjectID
	RecordA    id.RecordID
	RecordB    id.RecordID
	PairKey    id.PairKey
	Confidence float64
	Status     LinkStatus
	CreatedAt  time.Time
}
