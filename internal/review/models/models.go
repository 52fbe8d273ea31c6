// Package models defines review queues, reviewer roles, and review tasks.
package models

import (
	"time"

	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// QueueType names one of the four review queues.
type QueueType string

const (
	// QueueLowConfidence holds subjects flagged by low-confidence
	// extractions.
	QueueLowConfidence QueueType = "low_confidence"
	// QueueEscalation holds subjects escalated for regulatory judgment.
	QueueEscalation QueueType = "escalation"
	// QueueQCSampling holds randomly sampled auto-approved subjects.
	QueueQCSampling QueueType = "qc_sampling"
	// QueueRRAReview holds pending merge links awaiting confirmation.
	QueueRRAReview QueueType = "rra_review"
)

// Role is a reviewer privilege level.
type Role string

const (
	RoleReviewer      Role = "REVIEWER"
	RoleLegalReviewer Role = "LEGAL_REVIEWER"
	RoleApprover      Role = "APPROVER"
	RoleQCSampler     Role = "QC_SAMPLER"
)

var validRoles = map[Role]bool{
	RoleReviewer:      true,
	RoleLegalReviewer: true,
	RoleApprover:      true,
	RoleQCSampler:     true,
}

var queueRoles = map[QueueType]Role{
	QueueLowConfidence: RoleReviewer,
	QueueEscalation:    RoleLegalReviewer,
	QueueQCSampling:    RoleQCSampler,
	QueueRRAReview:     RoleReviewer,
}

// RoleForQueue returns the role required to action items in queue.
func RoleForQueue(queue QueueType) (Role, error) {
	role, ok := queueRoles[queue]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown queue type %q", queue)
	}
	return role, nil
}

// CanAction reports whether role may action items in queue. APPROVER
// overrides every queue.
func CanAction(role Role, queue QueueType) (bool, error) {
	if !validRoles[role] {
		return false, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", role)
	}
	required, err := RoleForQueue(queue)
	if err != nil {
		return false, err
	}
	return role == RoleApprover || role == required, nil
}

// ValidQueue reports whether queue names a known queue type.
func ValidQueue(queue QueueType) bool {
	_, ok := queueRoles[queue]
	return ok
}

// Decision is a reviewer's verdict on a task.
type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionEscalate Decision = "escalate"
	DecisionConfirm  Decision = "confirm" // rra_review only: apply the merge
)

// decisionsByQueue lists the verdicts each queue accepts.
var decisionsByQueue = map[QueueType][]Decision{
	QueueLowConfidence: {DecisionApprove, DecisionReject, DecisionEscalate},
	QueueEscalation:    {DecisionApprove, DecisionReject},
	QueueQCSampling:    {DecisionApprove, DecisionReject},
	QueueRRAReview:     {DecisionConfirm, DecisionReject},
}

// ValidDecision reports whether decision is accepted for queue.
func ValidDecision(queue QueueType, decision Decision) bool {
	for _, d := range decisionsByQueue[queue] {
		if d == decision {
			return true
		}
	}
	return false
}

// TaskStatus is the lifecycle state of a review task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
)

// ReviewTask is one queue item. At most one assignment is active at a time;
// only the current assignee may complete it.
type ReviewTask struct {
	ID    id.TaskID
	Queue QueueType

	// SubjectID targets the subject under review. For rra_review tasks it
	// carries the first endpoint of the pending link.
	SubjectID id.SubjectID
	// LinkID targets the pending merge link. Set for rra_review tasks only.
	LinkID id.LinkID

	// Confidence orders the queue ascending: least certain first.
	Confidence float64

	RequiredRole Role
	Status       TaskStatus
	AssignedTo   string

	Decision        Decision
	Rationale       string
	RegulatoryBasis string

	// Version supports optimistic locking on assignment and completion.
	Version int64

	CreatedAt   time.Time
	CompletedAt *time.Time
}
