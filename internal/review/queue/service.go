// Package queue manages the four review queues: task creation, exclusive
// assignment, and completion. Completion is where reviewer verdicts become
// subject transitions, confirmed merges, and permanent pair rejections.
package queue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"resolute/internal/audit"
	resmodels "resolute/internal/resolution/models"
	linkstore "resolute/internal/resolution/store"
	"resolute/internal/review/metrics"
	"resolute/internal/review/models"
	"resolute/internal/review/store"
	"resolute/internal/review/workflow"
	"resolute/internal/subject"
	"resolute/internal/subject/synth"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// Service runs the review queues.
type Service struct {
	tasks    store.TaskStore
	subjects subject.Store
	links    linkstore.LinkStore
	workflow *workflow.Engine
	recorder *audit.Recorder
	lease    Lease
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLease adds a cross-replica assignment claim on top of the store's
// version check.
func WithLease(lease Lease) Option {
	return func(s *Service) { s.lease = lease }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	tasks store.TaskStore,
	subjects subject.Store,
	links linkstore.LinkStore,
	wf *workflow.Engine,
	recorder *audit.Recorder,
	opts ...Option,
) (*Service, error) {
	if tasks == nil || subjects == nil || links == nil || wf == nil || recorder == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "all queue service dependencies are required")
	}
	s := &Service{
		tasks:    tasks,
		subjects: subjects,
		links:    links,
		workflow: wf,
		recorder: recorder,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnqueueSubject creates a task targeting a subject. Enqueuing a subject that
// already has an open task in the same queue is a no-op returning the
// existing task.
func (s *Service) EnqueueSubject(ctx context.Context, queue models.QueueType, subj *subject.Subject) (*models.ReviewTask, error) {
	if queue == models.QueueRRAReview {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "rra_review tasks target links, not subjects")
	}
	role, err := models.RoleForQueue(queue)
	if err != nil {
		return nil, err
	}

	existing, err := s.tasks.FindOpenBySubject(ctx, subj.ID, queue)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up open task")
	}
	if existing != nil {
		return existing, nil
	}

	task := &models.ReviewTask{
		ID:           id.NewTaskID(),
		Queue:        queue,
		SubjectID:    subj.ID,
		Confidence:   subj.MergeConfidence,
		RequiredRole: role,
		Status:       models.TaskPending,
		Version:      1,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	s.metrics.IncrementCreated(string(queue))
	s.logger.InfoContext(ctx, "review task enqueued",
		"task_id", task.ID.String(),
		"queue", string(queue),
		"subject_id", subj.ID.String(),
	)
	return task, nil
}

// EnqueueLink creates an rra_review task for a pending merge link.
func (s *Service) EnqueueLink(ctx context.Context, link *resmodels.PendingMergeLink) (*models.ReviewTask, error) {
	existing, err := s.tasks.FindOpenByLink(ctx, link.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up open task")
	}
	if existing != nil {
		return existing, nil
	}

	task := &models.ReviewTask{
		ID:           id.NewTaskID(),
		Queue:        models.QueueRRAReview,
		SubjectID:    link.SubjectA,
		LinkID:       link.ID,
		Confidence:   link.Confidence,
		RequiredRole: models.RoleReviewer,
		Status:       models.TaskPending,
		Version:      1,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	s.metrics.IncrementCreated(string(models.QueueRRAReview))
	s.logger.InfoContext(ctx, "merge confirmation task enqueued",
		"task_id", task.ID.String(),
		"link_id", link.ID.String(),
	)
	return task, nil
}

// List returns the queue's open tasks, least certain first.
func (s *Service) List(ctx context.Context, queue models.QueueType) ([]*models.ReviewTask, error) {
	if !models.ValidQueue(queue) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown queue type %q", queue)
	}
	tasks, err := s.tasks.ListOpenByQueue(ctx, queue)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list queue")
	}
	s.metrics.SetQueueDepth(string(queue), len(tasks))
	return tasks, nil
}

// Assign claims a task for a reviewer. A task with an active assignment
// cannot be claimed again until the current assignee completes it.
func (s *Service) Assign(ctx context.Context, taskID id.TaskID, reviewer string, role models.Role) (*models.ReviewTask, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reviewer is required")
	}

	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load task")
	}
	if task == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "task %s not found", taskID)
	}
	if task.Status == models.TaskCompleted {
		return nil, dErrors.Newf(dErrors.CodeConflict, "task %s is already completed", taskID)
	}
	if task.Status == models.TaskInProgress {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"task %s is assigned to %s", taskID, task.AssignedTo)
	}

	allowed, err := models.CanAction(role, task.Queue)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, dErrors.Newf(dErrors.CodeForbidden,
			"role %s cannot action %s tasks", role, task.Queue)
	}

	if s.lease != nil {
		ok, err := s.lease.Acquire(ctx, taskID, reviewer)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "acquire assignment lease")
		}
		if !ok {
			s.metrics.IncrementAssignmentConflict()
			return nil, dErrors.Newf(dErrors.CodeConflict, "task %s is claimed by another reviewer", taskID)
		}
	}

	task.Status = models.TaskInProgress
	task.AssignedTo = reviewer
	if err := s.tasks.Update(ctx, task); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementAssignmentConflict()
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "review task assigned",
		"task_id", taskID.String(),
		"reviewer", reviewer,
		"queue", string(task.Queue),
	)
	return task, nil
}

// CompleteRequest carries one reviewer verdict.
type CompleteRequest struct {
	TaskID          id.TaskID
	Reviewer        string
	Role            models.Role
	Decision        models.Decision
	Rationale       string
	RegulatoryBasis string
}

// Complete applies a reviewer's verdict. The domain effect (transition,
// merge, or rejection ledger entry) happens before the task is marked done,
// so a crash in between leaves a completed effect with an open task, never
// the reverse.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (*models.ReviewTask, error) {
	task, err := s.tasks.Get(ctx, req.TaskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load task")
	}
	if task == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "task %s not found", req.TaskID)
	}
	if task.Status == models.TaskCompleted {
		return nil, dErrors.Newf(dErrors.CodeConflict, "task %s is already completed", req.TaskID)
	}
	if task.Status != models.TaskInProgress {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"task %s must be assigned before completion", req.TaskID)
	}
	if task.AssignedTo != req.Reviewer {
		return nil, dErrors.Newf(dErrors.CodeForbidden,
			"task %s is assigned to %s", req.TaskID, task.AssignedTo)
	}

	allowed, err := models.CanAction(req.Role, task.Queue)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, dErrors.Newf(dErrors.CodeForbidden,
			"role %s cannot action %s tasks", req.Role, task.Queue)
	}
	if !models.ValidDecision(task.Queue, req.Decision) {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"decision %q is not valid for %s tasks", req.Decision, task.Queue)
	}
	if req.Role == models.RoleLegalReviewer && strings.TrimSpace(req.RegulatoryBasis) == "" {
		return nil, dErrors.New(dErrors.CodeValidation,
			"regulatory basis citation is required for legal reviewer decisions")
	}

	switch task.Queue {
	case models.QueueLowConfidence:
		err = s.completeLowConfidence(ctx, task, req)
	case models.QueueEscalation:
		err = s.completeEscalation(ctx, task, req)
	case models.QueueQCSampling:
		err = s.completeQCSampling(ctx, task, req)
	case models.QueueRRAReview:
		err = s.completeRRAReview(ctx, task, req)
	}
	if err != nil {
		return nil, err
	}

	completedAt := s.now().UTC()
	task.Status = models.TaskCompleted
	task.Decision = req.Decision
	task.Rationale = req.Rationale
	task.RegulatoryBasis = req.RegulatoryBasis
	task.CompletedAt = &completedAt
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	if s.lease != nil {
		if err := s.lease.Release(ctx, task.ID, req.Reviewer); err != nil {
			s.logger.WarnContext(ctx, "release assignment lease",
				"task_id", task.ID.String(), "error", err)
		}
	}
	s.metrics.IncrementCompleted(string(task.Queue), string(req.Decision))
	s.logger.InfoContext(ctx, "review task completed",
		"task_id", task.ID.String(),
		"queue", string(task.Queue),
		"decision", string(req.Decision),
		"reviewer", req.Reviewer,
	)
	return task, nil
}

func (s *Service) completeLowConfidence(ctx context.Context, task *models.ReviewTask, req CompleteRequest) error {
	var to subject.Status
	switch req.Decision {
	case models.DecisionApprove:
		to = subject.StatusApproved
	case models.DecisionReject:
		to = subject.StatusRejected
	case models.DecisionEscalate:
		to = subject.StatusLegalReview
	}

	subj, err := s.workflow.Transition(ctx, workflow.Request{
		SubjectID: task.SubjectID,
		To:        to,
		Actor:     req.Reviewer,
		Rationale: req.Rationale,
	})
	if err != nil {
		return err
	}

	if req.Decision == models.DecisionEscalate {
		if _, err := s.EnqueueSubject(ctx, models.QueueEscalation, subj); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) completeEscalation(ctx context.Context, task *models.ReviewTask, req CompleteRequest) error {
	to := subject.StatusRejected
	if req.Decision == models.DecisionApprove {
		to = subject.StatusApproved
	}
	_, err := s.workflow.Transition(ctx, workflow.Request{
		SubjectID:       task.SubjectID,
		To:              to,
		Actor:           req.Reviewer,
		Rationale:       req.Rationale,
		RegulatoryBasis: req.RegulatoryBasis,
	})
	return err
}

func (s *Service) completeQCSampling(ctx context.Context, task *models.ReviewTask, req CompleteRequest) error {
	if req.Decision == models.DecisionApprove {
		// The subject stays APPROVED; the pass itself is still audited.
		_, err := s.recorder.Record(ctx, audit.Event{
			Type:      audit.EventHumanReview,
			Actor:     req.Reviewer,
			SubjectID: task.SubjectID.String(),
			EntityID:  task.ID.String(),
			Decision:  "qc_pass",
			Rationale: req.Rationale,
		})
		return err
	}

	subj, err := s.workflow.Transition(ctx, workflow.Request{
		SubjectID: task.SubjectID,
		To:        subject.StatusHumanReview,
		Actor:     req.Reviewer,
		Rationale: req.Rationale,
	})
	if err != nil {
		return err
	}
	_, err = s.EnqueueSubject(ctx, models.QueueLowConfidence, subj)
	return err
}

func (s *Service) completeRRAReview(ctx context.Context, task *models.ReviewTask, req CompleteRequest) error {
	link, err := s.links.GetLink(ctx, task.LinkID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load pending merge link")
	}
	if link == nil {
		return dErrors.Newf(dErrors.CodeNotFound, "pending merge link %s not found", task.LinkID)
	}
	if link.Status != resmodels.LinkPending {
		return dErrors.Newf(dErrors.CodeConflict,
			"pending merge link %s is already %s", link.ID, link.Status)
	}

	if req.Decision == models.DecisionReject {
		return s.rejectLink(ctx, link, req)
	}
	return s.confirmLink(ctx, link, req)
}

// rejectLink writes the pair to the permanent rejection ledger so the same
// two records are never auto-merged by a later run.
func (s *Service) rejectLink(ctx context.Context, link *resmodels.PendingMergeLink, req CompleteRequest) error {
	_, err := s.recorder.Record(ctx, audit.Event{
		Type:      audit.EventMergeRejected,
		Actor:     req.Reviewer,
		SubjectID: link.SubjectA.String(),
		EntityID:  link.ID.String(),
		Decision:  string(models.DecisionReject),
		Rationale: req.Rationale,
	})
	if err != nil {
		return err
	}

	if err := s.links.MarkRejected(ctx, link.PairKey); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record rejected pair")
	}
	link.Status = resmodels.LinkRejected
	if err := s.links.UpdateLink(ctx, link); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update merge link")
	}
	return nil
}

// confirmLink folds subject B into subject A and resolves the link.
func (s *Service) confirmLink(ctx context.Context, link *resmodels.PendingMergeLink, req CompleteRequest) error {
	survivor, err := s.subjects.Get(ctx, link.SubjectA)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load surviving subject")
	}
	absorbed, err := s.subjects.Get(ctx, link.SubjectB)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load absorbed subject")
	}
	if survivor == nil || absorbed == nil {
		return dErrors.Newf(dErrors.CodeNotFound, "link %s references a missing subject", link.ID)
	}
	if survivor.Absorbed() || absorbed.Absorbed() {
		return dErrors.Newf(dErrors.CodeConflict,
			"link %s references an already-merged subject", link.ID)
	}

	_, err = s.recorder.Record(ctx, audit.Event{
		Type:      audit.EventMergeConfirmed,
		Actor:     req.Reviewer,
		SubjectID: survivor.ID.String(),
		EntityID:  link.ID.String(),
		Decision:  string(models.DecisionConfirm),
		Rationale: req.Rationale,
	})
	if err != nil {
		return err
	}

	now := s.now().UTC()
	synth.Combine(survivor, absorbed, link.Confidence, now)
	if err := s.subjects.Update(ctx, survivor); err != nil {
		return err
	}

	absorbed.MergedInto = survivor.ID
	absorbed.UpdatedAt = now
	if err := s.subjects.Update(ctx, absorbed); err != nil {
		return err
	}

	link.Status = resmodels.LinkConfirmed
	if err := s.links.UpdateLink(ctx, link); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update merge link")
	}
	return nil
}
