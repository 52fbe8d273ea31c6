// Package handler wires the review API endpoints to the queue service and
// workflow engine.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"resolute/internal/audit"
	"resolute/internal/review/models"
	"resolute/internal/review/queue"
	"resolute/internal/review/workflow"
	"resolute/internal/subject"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
	"resolute/pkg/platform/httputil"
	"resolute/pkg/requestcontext"
)

// QueueService defines the queue operations the API exposes.
type QueueService interface {
	List(ctx context.Context, queueType models.QueueType) ([]*models.ReviewTask, error)
	Assign(ctx context.Context, taskID id.TaskID, reviewer string, role models.Role) (*models.ReviewTask, error)
	Complete(ctx context.Context, req queue.CompleteRequest) (*models.ReviewTask, error)
}

// Workflow defines the subject transitions the API exposes.
type Workflow interface {
	Transition(ctx context.Context, req workflow.Request) (*subject.Subject, error)
}

// AuditLog reads per-subject history.
type AuditLog interface {
	History(ctx context.Context, subjectID id.SubjectID) ([]audit.Event, error)
}

// Handler wires review endpoints to their services.
type Handler struct {
	queues   QueueService
	workflow Workflow
	audits   AuditLog
	subjects subject.Store
	logger   *slog.Logger
}

// New constructs a review handler with its dependencies.
func New(queues QueueService, wf Workflow, audits AuditLog, subjects subject.Store, logger *slog.Logger) *Handler {
	return &Handler{
		queues:   queues,
		workflow: wf,
		audits:   audits,
		subjects: subjects,
		logger:   logger,
	}
}

// Register mounts review endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/review/queues/{queueType}", h.HandleGetQueue)
	r.Post("/review/tasks/{taskID}/assign", h.HandleAssign)
	r.Post("/review/tasks/{taskID}/complete", h.HandleComplete)
	r.Get("/subjects/approved", h.HandleApprovedSubjects)
	r.Get("/subjects/{subjectID}/history", h.HandleHistory)
	r.Post("/subjects/{subjectID}/notified", h.HandleMarkNotified)
}

// reviewer pulls the authenticated reviewer identity off the context.
func reviewer(ctx context.Context) (string, models.Role, error) {
	reviewerID := requestcontext.ReviewerID(ctx)
	if reviewerID == "" {
		return "", "", dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return reviewerID, models.Role(requestcontext.Role(ctx)), nil
}

// HandleGetQueue handles GET /review/queues/{queueType} requests.
func (h *Handler) HandleGetQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	queueType := models.QueueType(chi.URLParam(r, "queueType"))
	tasks, err := h.queues.List(ctx, queueType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := QueueResponse{Queue: string(queueType), Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, FromTask(task))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleAssign handles POST /review/tasks/{taskID}/assign requests.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewerID, role, err := reviewer(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	taskID, err := id.ParseTaskID(chi.URLParam(r, "taskID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	task, err := h.queues.Assign(ctx, taskID, reviewerID, role)
	if err != nil {
		h.logger.WarnContext(ctx, "task assignment rejected",
			"request_id", requestcontext.RequestID(ctx),
			"task_id", taskID.String(),
			"reviewer", reviewerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTask(task))
}

// HandleComplete handles POST /review/tasks/{taskID}/complete requests.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewerID, role, err := reviewer(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	taskID, err := id.ParseTaskID(chi.URLParam(r, "taskID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[CompleteRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	task, err := h.queues.Complete(ctx, queue.CompleteRequest{
		TaskID:          taskID,
		Reviewer:        reviewerID,
		Role:            role,
		Decision:        req.ParsedDecision(),
		Rationale:       req.Rationale,
		RegulatoryBasis: req.RegulatoryBasis,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "task completion rejected",
			"request_id", requestcontext.RequestID(ctx),
			"task_id", taskID.String(),
			"reviewer", reviewerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "task completed",
		"request_id", requestcontext.RequestID(ctx),
		"task_id", taskID.String(),
		"queue", string(task.Queue),
		"decision", string(task.Decision),
	)
	httputil.WriteJSON(w, http.StatusOK, FromTask(task))
}

// HandleApprovedSubjects handles GET /subjects/approved requests. Only
// approved subjects are listable for delivery.
func (h *Handler) HandleApprovedSubjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjects, err := h.subjects.ListByStatus(ctx, subject.StatusApproved)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list approved subjects"))
		return
	}

	resp := make([]SubjectResponse, 0, len(subjects))
	for _, subj := range subjects {
		resp = append(resp, FromSubject(subj))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleHistory handles GET /subjects/{subjectID}/history requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	subj, err := h.subjects.Get(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load subject"))
		return
	}
	if subj == nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "subject %s not found", subjectID))
		return
	}

	events, err := h.audits.History(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, FromEvent(event))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleMarkNotified handles POST /subjects/{subjectID}/notified requests,
// recorded on behalf of the delivery collaborator.
func (h *Handler) HandleMarkNotified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewerID, _, err := reviewer(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	subj, err := h.workflow.Transition(ctx, workflow.Request{
		SubjectID: subjectID,
		To:        subject.StatusNotified,
		Actor:     reviewerID,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubject(subj))
}
