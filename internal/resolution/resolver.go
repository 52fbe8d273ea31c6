// Package resolution turns a batch of normalized records into Subjects:
// pairwise signal scoring, threshold-gated clustering, canonical synthesis,
// and routing into the review workflow.
package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"resolute/internal/audit"
	"resolute/internal/resolution/cluster"
	"resolute/internal/resolution/metrics"
	"resolute/internal/resolution/models"
	"resolute/internal/resolution/signal"
	"resolute/internal/resolution/store"
	queuemodels "resolute/internal/review/models"
	"resolute/internal/review/queue"
	"resolute/internal/review/workflow"
	"resolute/internal/subject"
	"resolute/internal/subject/synth"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// Result summarizes one resolved batch.
type Result struct {
	Subjects     []*subject.Subject
	PendingLinks []*models.PendingMergeLink
	PairsScored  int
}

// Resolver runs batch resolution end to end. Scoring fans out across
// workers; everything that mutates state runs sequentially afterwards, so a
// batch is a single-writer unit of work.
type Resolver struct {
	signals  signal.Config
	clusters *cluster.Engine
	subjects subject.Store
	links    store.LinkStore
	recorder *audit.Recorder
	workflow *workflow.Engine
	queue    *queue.Service
	tracer   trace.Tracer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	workers  int
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithWorkers bounds the scoring fan-out.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(
	signals signal.Config,
	clusters *cluster.Engine,
	subjects subject.Store,
	links store.LinkStore,
	recorder *audit.Recorder,
	wf *workflow.Engine,
	q *queue.Service,
	opts ...Option,
) (*Resolver, error) {
	if clusters == nil || subjects == nil || links == nil || recorder == nil || wf == nil || q == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "all resolver dependencies are required")
	}
	r := &Resolver{
		signals:  signals,
		clusters: clusters,
		subjects: subjects,
		links:    links,
		recorder: recorder,
		workflow: wf,
		queue:    q,
		tracer:   otel.Tracer("resolute/resolution"),
		logger:   slog.Default(),
		now:      time.Now,
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve processes one batch. Re-running the same batch is idempotent:
// provenance is deduplicated, reviewer rejections hold, and subjects already
// routed past AI_PENDING are left where the workflow put them.
func (r *Resolver) Resolve(ctx context.Context, records []models.NormalizedRecord) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "resolution.resolve",
		trace.WithAttributes(attribute.Int("records", len(records))))
	defer span.End()
	started := r.now()

	byID := make(map[id.RecordID]models.NormalizedRecord, len(records))
	ids := make([]id.RecordID, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "record id must not be empty")
		}
		if _, dup := byID[rec.ID]; dup {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "duplicate record id %s in batch", rec.ID)
		}
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}

	pairs, err := r.scorePairs(ctx, records)
	if err != nil {
		return nil, err
	}

	rejected, err := r.links.RejectedPairs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load rejected pairs")
	}

	partition := r.clusters.Partition(ids, pairs, rejected)
	span.SetAttributes(
		attribute.Int("pairs_scored", len(pairs)),
		attribute.Int("clusters", len(partition.Clusters)),
		attribute.Int("pending_edges", len(partition.Pending)),
	)

	result := &Result{PairsScored: len(pairs)}
	for _, c := range partition.Clusters {
		subj, err := r.persistCluster(ctx, c, byID)
		if err != nil {
			return nil, err
		}
		result.Subjects = append(result.Subjects, subj)
	}

	for _, edge := range partition.Pending {
		link, err := r.persistPendingEdge(ctx, edge.Pair)
		if err != nil {
			return nil, err
		}
		if link != nil {
			result.PendingLinks = append(result.PendingLinks, link)
		}
	}

	for _, subj := range result.Subjects {
		if err := r.route(ctx, subj); err != nil {
			return nil, err
		}
	}

	r.metrics.ObserveBatch(len(pairs), len(result.PendingLinks), r.now().Sub(started).Seconds())
	r.logger.InfoContext(ctx, "batch resolved",
		"records", len(records),
		"pairs_scored", len(pairs),
		"subjects", len(result.Subjects),
		"pending_links", len(result.PendingLinks),
	)
	return result, nil
}

// scorePairs fans pairwise comparison out across workers. Each worker owns
// one left index and scores it against everything after it.
func (r *Resolver) scorePairs(ctx context.Context, records []models.NormalizedRecord) ([]models.CandidatePair, error) {
	var (
		mu    sync.Mutex
		pairs []models.CandidatePair
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			local := make([]models.CandidatePair, 0, len(records)-i-1)
			for j := i + 1; j < len(records); j++ {
				p := signal.Compare(records[i], records[j], r.signals)
				if p.Confidence > 0 {
					local = append(local, p)
				}
			}
			mu.Lock()
			pairs = append(pairs, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// persistCluster creates or incrementally merges the Subject for one cluster.
func (r *Resolver) persistCluster(ctx context.Context, c cluster.Cluster, byID map[id.RecordID]models.NormalizedRecord) (*subject.Subject, error) {
	recs := make([]models.NormalizedRecord, 0, len(c.Records))
	for _, rid := range c.Records {
		recs = append(recs, byID[rid])
	}

	var existing *subject.Subject
	for _, rid := range c.Records {
		subj, err := r.subjects.FindByRecord(ctx, rid)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find subject by record")
		}
		if subj != nil {
			existing = subj
			break
		}
	}

	now := r.now().UTC()
	if existing == nil {
		subj := synth.Build(recs, c.MinConfidence, now)
		if err := r.subjects.Save(ctx, subj); err != nil {
			return nil, err
		}
		if _, err := r.recorder.Record(ctx, audit.Event{
			Type:      audit.EventSubjectCreated,
			Actor:     "system",
			SubjectID: subj.ID.String(),
		}); err != nil {
			return nil, err
		}
		if err := r.auditAcceptedEdges(ctx, subj, c.Edges(), nil); err != nil {
			return nil, err
		}
		return subj, nil
	}

	known := make(map[id.RecordID]bool, len(existing.SourceRecords))
	for _, rid := range existing.SourceRecords {
		known[rid] = true
	}

	minConfidence := c.MinConfidence
	if existing.MergeConfidence < minConfidence {
		minConfidence = existing.MergeConfidence
	}
	synth.Merge(existing, recs, minConfidence, now)
	if err := r.subjects.Update(ctx, existing); err != nil {
		return nil, err
	}
	if err := r.auditAcceptedEdges(ctx, existing, c.Edges(), known); err != nil {
		return nil, err
	}
	return existing, nil
}

// auditAcceptedEdges records merge_accepted for edges that brought a record
// the subject had not absorbed before. Re-runs over unchanged provenance stay
// silent.
func (r *Resolver) auditAcceptedEdges(ctx context.Context, subj *subject.Subject, edges []models.CandidatePair, known map[id.RecordID]bool) error {
	for _, p := range edges {
		if known != nil && known[p.A] && known[p.B] {
			continue
		}
		_, err := r.recorder.Record(ctx, audit.Event{
			Type:      audit.EventMergeAccepted,
			Actor:     "system",
			SubjectID: subj.ID.String(),
			EntityID:  string(p.Key()),
			Decision:  fmt.Sprintf("%.2f", p.Confidence),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// persistPendingEdge materializes a review-band edge as a pending merge link
// and flags both endpoint subjects.
func (r *Resolver) persistPendingEdge(ctx context.Context, p models.CandidatePair) (*models.PendingMergeLink, error) {
	link, err := r.links.FindPendingByPair(ctx, p.Key())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find pending link")
	}
	if link == nil {
		subjA, err := r.subjects.FindByRecord(ctx, p.A)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find subject by record")
		}
		subjB, err := r.subjects.FindByRecord(ctx, p.B)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find subject by record")
		}
		if subjA == nil || subjB == nil {
			return nil, dErrors.Newf(dErrors.CodeInternal,
				"pending edge %s references an unresolved record", p.Key())
		}
		if subjA.ID == subjB.ID {
			// A confirmed merge since the last run already joined them.
			return nil, nil
		}

		link = &models.PendingMergeLink{
			ID:         id.NewLinkID(),
			SubjectA:   subjA.ID,
			SubjectB:   subjB.ID,
			RecordA:    p.A,
			RecordB:    p.B,
			PairKey:    p.Key(),
			Confidence: p.Confidence,
			Status:     models.LinkPending,
			CreatedAt:  r.now().UTC(),
		}
		if err := r.links.SaveLink(ctx, link); err != nil {
			return nil, err
		}
		if _, err := r.recorder.Record(ctx, audit.Event{
			Type:      audit.EventMergePending,
			Actor:     "system",
			SubjectID: subjA.ID.String(),
			EntityID:  link.ID.String(),
			Decision:  fmt.Sprintf("%.2f", p.Confidence),
		}); err != nil {
			return nil, err
		}

		for _, subj := range []*subject.Subject{subjA, subjB} {
			if !subj.FlaggedForReview {
				subj.FlaggedForReview = true
				subj.UpdatedAt = r.now().UTC()
				if err := r.subjects.Update(ctx, subj); err != nil {
					return nil, err
				}
			}
		}
	}

	if _, err := r.queue.EnqueueLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// route moves a freshly resolved subject into the workflow: flagged subjects
// go to human review, clean ones are approved automatically. Subjects the
// workflow already routed are left alone.
func (r *Resolver) route(ctx context.Context, subj *subject.Subject) error {
	// persistPendingEdge may have flagged the stored copy after this
	// snapshot was taken.
	current, err := r.subjects.Get(ctx, subj.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reload subject")
	}
	if current == nil {
		return dErrors.Newf(dErrors.CodeInternal, "subject %s vanished during resolution", subj.ID)
	}
	*subj = *current

	if subj.Status != subject.StatusAIPending {
		if subj.Status == subject.StatusHumanReview && subj.FlaggedForReview {
			_, err := r.queue.EnqueueSubject(ctx, queuemodels.QueueLowConfidence, subj)
			return err
		}
		return nil
	}

	if subj.FlaggedForReview {
		moved, err := r.workflow.Transition(ctx, workflow.Request{
			SubjectID: subj.ID,
			To:        subject.StatusHumanReview,
			Actor:     "system",
			Rationale: "automatic routing: low-confidence extraction or pending merge evidence",
		})
		if err != nil {
			return err
		}
		*subj = *moved
		if _, err := r.queue.EnqueueSubject(ctx, queuemodels.QueueLowConfidence, subj); err != nil {
			return err
		}
		r.metrics.IncrementRouted("human_review")
		return nil
	}

	moved, err := r.workflow.Transition(ctx, workflow.Request{
		SubjectID: subj.ID,
		To:        subject.StatusApproved,
		Actor:     "system",
		Rationale: "automated approval: no low-confidence extractions and no pending merge links",
	})
	if err != nil {
		return err
	}
	*subj = *moved
	r.metrics.IncrementRouted("auto_approved")
	return nil
}
