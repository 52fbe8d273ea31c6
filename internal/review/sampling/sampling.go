// Package sampling selects a random slice of auto-approved subjects for
// quality-control review. Sampling is how silent auto-approval errors get a
// second pair of eyes without reviewing every subject.
package sampling

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"resolute/internal/audit"
	"resolute/internal/review/models"
	"resolute/internal/review/queue"
	"resolute/internal/review/store"
	"resolute/internal/subject"
	dErrors "resolute/pkg/errors"
)

// Config sets the sampling policy for one batch.
type Config struct {
	// Rate is the fraction of the auto-approved population to sample.
	Rate float64
	// Min is the floor per batch, clamped to the population size.
	Min int
	// Max caps the batch. Zero means uncapped.
	Max int
}

// DefaultConfig samples 5% with a floor of one subject per batch.
func DefaultConfig() Config {
	return Config{Rate: 0.05, Min: 1}
}

func NewConfig(rate float64, min, max int) (Config, error) {
	if rate < 0 || rate > 1 {
		return Config{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"sampling rate %v must be within [0, 1]", rate)
	}
	if min < 0 {
		return Config{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"sampling minimum %d must not be negative", min)
	}
	if max != 0 && max < min {
		return Config{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"sampling maximum %d must not be below minimum %d", max, min)
	}
	return Config{Rate: rate, Min: min, Max: max}, nil
}

// SampleSize computes how many subjects to draw from a population.
func (c Config) SampleSize(population int) int {
	if population <= 0 {
		return 0
	}
	n := int(math.Ceil(c.Rate * float64(population)))
	if n < c.Min {
		n = c.Min
	}
	if c.Max > 0 && n > c.Max {
		n = c.Max
	}
	if n > population {
		n = population
	}
	return n
}

// Sampler draws QC batches.
type Sampler struct {
	cfg      Config
	queue    *queue.Service
	tasks    store.TaskStore
	recorder *audit.Recorder
	rng      *rand.Rand
	logger   *slog.Logger
}

type Option func(*Sampler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) { s.logger = logger }
}

// WithSeed pins the random source, for tests.
func WithSeed(seed int64) Option {
	return func(s *Sampler) { s.rng = rand.New(rand.NewSource(seed)) }
}

func NewSampler(cfg Config, q *queue.Service, tasks store.TaskStore, recorder *audit.Recorder, opts ...Option) (*Sampler, error) {
	if q == nil || tasks == nil || recorder == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "all sampler dependencies are required")
	}
	s := &Sampler{
		cfg:      cfg,
		queue:    q,
		tasks:    tasks,
		recorder: recorder,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sample draws a batch from the automatically approved subjects and
// enqueues qc_sampling tasks. Subjects that went through a human reviewer
// carry the review flag and are excluded; subjects already holding an open
// QC task are skipped rather than drawn twice. The draw continues past both
// so the batch stays full when the population allows.
func (s *Sampler) Sample(ctx context.Context, approved []*subject.Subject) ([]*models.ReviewTask, error) {
	want := s.cfg.SampleSize(len(approved))
	if want == 0 {
		return nil, nil
	}

	var sampled []*models.ReviewTask
	for _, i := range s.rng.Perm(len(approved)) {
		if len(sampled) == want {
			break
		}
		subj := approved[i]
		if subj.Status != subject.StatusApproved || subj.Absorbed() || subj.FlaggedForReview {
			continue
		}

		open, err := s.tasks.FindOpenBySubject(ctx, subj.ID, models.QueueQCSampling)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up open qc task")
		}
		if open != nil {
			continue
		}

		_, err = s.recorder.Record(ctx, audit.Event{
			Type:      audit.EventQCSampled,
			Actor:     "system",
			SubjectID: subj.ID.String(),
		})
		if err != nil {
			return nil, err
		}

		task, err := s.queue.EnqueueSubject(ctx, models.QueueQCSampling, subj)
		if err != nil {
			return nil, err
		}
		sampled = append(sampled, task)
	}

	s.logger.InfoContext(ctx, "qc sample drawn",
		"population", len(approved),
		"target", want,
		"sampled", len(sampled),
	)
	return sampled, nil
}
