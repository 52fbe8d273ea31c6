// Package workflow owns Subject status transitions. Every transition is
// validated against the state machine, audited before the status write, and
// applied with optimistic locking. No other package writes Subject.Status.
package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"resolute/internal/audit"
	"resolute/internal/subject"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// MinRationaleLength is the shortest rationale accepted for a human
// decision. Single-word verdicts are not an audit trail.
const MinRationaleLength = 10

// transitions is the full state machine. APPROVED -> HUMAN_REVIEW is the QC
// reopen path; everything else flows forward.
var transitions = map[subject.Status][]subject.Status{
	subject.StatusAIPending:   {subject.StatusHumanReview, subject.StatusApproved},
	subject.StatusHumanReview: {subject.StatusLegalReview, subject.StatusApproved, subject.StatusRejected},
	subject.StatusLegalReview: {subject.StatusApproved, subject.StatusRejected},
	subject.StatusApproved:    {subject.StatusNotified, subject.StatusHumanReview},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to subject.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// eventFor maps a transition edge to its audit event type.
func eventFor(from, to subject.Status) audit.EventType {
	switch to {
	case subject.StatusHumanReview:
		if from == subject.StatusApproved {
			return audit.EventQCReopened
		}
		return audit.EventHumanReview
	case subject.StatusLegalReview:
		return audit.EventEscalation
	case subject.StatusApproved:
		return audit.EventApproval
	case subject.StatusRejected:
		return audit.EventRejection
	case subject.StatusNotified:
		return audit.EventNotificationSent
	}
	return audit.EventHumanReview
}

// Request carries one attempted transition.
type Request struct {
	SubjectID id.SubjectID
	To        subject.Status
	Actor     string
	Rationale string
	// RegulatoryBasis cites the provision justifying an approval out of
	// legal review. Required on that edge only.
	RegulatoryBasis string
}

// Engine applies workflow transitions.
type Engine struct {
	subjects subject.Store
	recorder *audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(subjects subject.Store, recorder *audit.Recorder, opts ...Option) (*Engine, error) {
	if subjects == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject store is required")
	}
	if recorder == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit recorder is required")
	}
	e := &Engine{
		subjects: subjects,
		recorder: recorder,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Transition moves a subject to req.To. The audit append happens before the
// status write: if the trail cannot record the decision, the decision does
// not happen.
func (e *Engine) Transition(ctx context.Context, req Request) (*subject.Subject, error) {
	subj, err := e.subjects.Get(ctx, req.SubjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load subject")
	}
	if subj == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "subject %s not found", req.SubjectID)
	}

	if err := e.validate(subj, req); err != nil {
		return nil, err
	}

	_, err = e.recorder.Record(ctx, audit.Event{
		Type:            eventFor(subj.Status, req.To),
		Actor:           req.Actor,
		SubjectID:       subj.ID.String(),
		Decision:        string(req.To),
		Rationale:       req.Rationale,
		RegulatoryBasis: req.RegulatoryBasis,
	})
	if err != nil {
		return nil, err
	}

	from := subj.Status
	subj.Status = req.To
	subj.UpdatedAt = e.now().UTC()
	if err := e.subjects.Update(ctx, subj); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "subject transitioned",
		"subject_id", subj.ID.String(),
		"from", string(from),
		"to", string(req.To),
		"actor", req.Actor,
	)
	return subj, nil
}

func (e *Engine) validate(subj *subject.Subject, req Request) error {
	if strings.TrimSpace(req.Actor) == "" {
		return dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if subj.Absorbed() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"subject %s was merged into %s", subj.ID, subj.MergedInto)
	}
	if subj.Status.Terminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"subject %s is in terminal status %s", subj.ID, subj.Status)
	}
	if !CanTransition(subj.Status, req.To) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"illegal transition %s -> %s", subj.Status, req.To)
	}

	rationale := strings.TrimSpace(req.Rationale)
	switch req.To {
	case subject.StatusApproved, subject.StatusRejected, subject.StatusLegalReview,
		subject.StatusHumanReview:
		if len(rationale) < MinRationaleLength {
			return dErrors.Newf(dErrors.CodeValidation,
				"rationale must be at least %d characters", MinRationaleLength)
		}
	}

	if subj.Status == subject.StatusLegalReview && req.To == subject.StatusApproved &&
		strings.TrimSpace(req.RegulatoryBasis) == "" {
		return dErrors.New(dErrors.CodeValidation,
			"regulatory basis is required to approve out of legal review")
	}
	return nil
}
