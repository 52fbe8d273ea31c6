package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review module.
type Metrics struct {
	// Tasks enqueued by queue type
	TasksCreated *prometheus.CounterVec

	// Tasks completed by queue type and decision
	TasksCompleted *prometheus.CounterVec

	// Open tasks by queue type, refreshed on each queue read
	QueueDepth *prometheus.GaugeVec

	// Assignment attempts lost to another reviewer
	AssignmentConflicts prometheus.Counter
}

// New creates a new Metrics instance with all review module metrics registered.
func New() *Metrics {
	return &Metrics{
		TasksCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "resolute_review_tasks_created_total",
			Help: "Total review tasks enqueued by queue type",
		}, []string{"queue"}),

		TasksCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "resolute_review_tasks_completed_total",
			Help: "Total review tasks completed by queue type and decision",
		}, []string{"queue", "decision"}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resolute_review_queue_depth",
			Help: "Open review tasks by queue type",
		}, []string{"queue"}),

		AssignmentConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolute_review_assignment_conflicts_total",
			Help: "Assignment attempts that lost the task to another reviewer",
		}),
	}
}

// IncrementCreated records a task enqueue.
func (m *Metrics) IncrementCreated(queue string) {
	if m != nil {
		m.TasksCreated.WithLabelValues(queue).Inc()
	}
}

// IncrementCompleted records a task completion.
func (m *Metrics) IncrementCompleted(queue, decision string) {
	if m != nil {
		m.TasksCompleted.WithLabelValues(queue, decision).Inc()
	}
}

// SetQueueDepth records the current open-task count for a queue.
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	if m != nil {
		m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
	}
}

// IncrementAssignmentConflict records a lost assignment race.
func (m *Metrics) IncrementAssignmentConflict() {
	if m != nil {
		m.AssignmentConflicts.Inc()
	}
}
