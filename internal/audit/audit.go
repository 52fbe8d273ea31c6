// Package audit provides the append-only audit trail. Every merge decision
// and workflow transition produces exactly one event; a failed append aborts
// the transition it was recording (audit-before-commit, not best-effort).
package audit

import (
	"context"
	"strings"
	"time"

	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// EventType names one auditable action.
type EventType string

const (
	EventSubjectCreated   EventType = "subject_created"
	EventMergeAccepted    EventType = "merge_accepted"
	EventMergePending     EventType = "merge_pending"
	EventMergeConfirmed   EventType = "merge_confirmed"
	EventMergeRejected    EventType = "merge_rejected"
	EventHumanReview      EventType = "human_review"
	EventEscalation       EventType = "escalation"
	EventApproval         EventType = "approval"
	EventRejection        EventType = "rejection"
	EventQCSampled        EventType = "qc_sampled"
	EventQCReopened       EventType = "qc_reopened"
	EventNotificationSent EventType = "notification_sent"
)

var validEventTypes = map[EventType]bool{
	EventSubjectCreated:   true,
	EventMergeAccepted:    true,
	EventMergePending:     true,
	EventMergeConfirmed:   true,
	EventMergeRejected:    true,
	EventHumanReview:      true,
	EventEscalation:       true,
	EventApproval:         true,
	EventRejection:        true,
	EventQCSampled:        true,
	EventQCReopened:       true,
	EventNotificationSent: true,
}

// Event is one immutable audit record. Never updated or deleted after
// insertion. Raw PII never appears here; entities are referenced by id.
type Event struct {
	ID              id.EventID
	Type            EventType
	Actor           string
	SubjectID       string // affected subject, when applicable
	EntityID        string // task or link id, when applicable
	Decision        string
	Rationale       string
	RegulatoryBasis string
	Timestamp       time.Time
}

// Store is the durable append-only sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error)
	ListByType(ctx context.Context, eventType EventType) ([]Event, error)
}

// Publisher mirrors committed events to a downstream pipeline. Mirroring is
// asynchronous and must never gate a transition; the Store is the gate.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Recorder validates and appends events.
type Recorder struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

type Option func(*Recorder)

// WithPublisher mirrors each committed event to a downstream publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(store Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit store is required")
	}
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record validates event invariants, appends to the durable store, and then
// mirrors to the publisher. Returns the stored event. Any validation or
// append failure must abort the transition being audited.
func (r *Recorder) Record(ctx context.Context, event Event) (Event, error) {
	if !validEventTypes[event.Type] {
		return Event{}, dErrors.Newf(dErrors.CodeValidation, "unknown audit event type %q", event.Type)
	}
	if strings.TrimSpace(event.Actor) == "" {
		return Event{}, dErrors.New(dErrors.CodeValidation, "audit event actor must be non-empty")
	}
	switch event.Type {
	case EventHumanReview, EventApproval, EventRejection:
		if strings.TrimSpace(event.Rationale) == "" {
			return Event{}, dErrors.Newf(dErrors.CodeValidation,
				"rationale is required for %s events", event.Type)
		}
	case EventEscalation:
		// Escalation carries the reviewer's reason in Rationale too.
		if strings.TrimSpace(event.Rationale) == "" {
			return Event{}, dErrors.New(dErrors.CodeValidation, "rationale is required for escalation events")
		}
	}

	event.ID = id.NewEventID()
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now().UTC()
	}

	if err := r.store.Append(ctx, event); err != nil {
		return Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}

	if r.publisher != nil {
		r.publisher.Publish(ctx, event)
	}
	return event, nil
}

// History returns all events for a subject, oldest first.
func (r *Recorder) History(ctx context.Context, subjectID id.SubjectID) ([]Event, error) {
	events, err := r.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events")
	}
	return events, nil
}
