package subject

import (
	"context"
	"sort"
	"sync"

	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// InMemoryStore keeps Subjects in process memory. Used in tests and
// single-node deployments; the postgres store is the durable twin.
type InMemoryStore struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]*Subject
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{subjects: make(map[id.SubjectID]*Subject)}
}

func (s *InMemoryStore) Save(_ context.Context, subj *Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subjects[subj.ID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "subject %s already exists", subj.ID)
	}
	s.subjects[subj.ID] = clone(subj)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, subjectID id.SubjectID) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if subj, exists := s.subjects[subjectID]; exists {
		return clone(subj), nil
	}
	return nil, nil
}

func (s *InMemoryStore) Update(_ context.Context, subj *Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.subjects[subj.ID]
	if !exists {
		return dErrors.Newf(dErrors.CodeNotFound, "subject %s not found", subj.ID)
	}
	if stored.Version != subj.Version {
		return dErrors.Newf(dErrors.CodeConflict,
			"subject %s version %d is stale (stored %d)", subj.ID, subj.Version, stored.Version)
	}

	next := clone(subj)
	next.Version++
	s.subjects[subj.ID] = next
	subj.Version = next.Version
	return nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status) ([]*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Subject
	for _, subj := range s.subjects {
		if subj.Status == status && !subj.Absorbed() {
			out = append(out, clone(subj))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) FindByRecord(_ context.Context, recordID id.RecordID) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, subj := range s.subjects {
		if subj.Absorbed() {
			continue
		}
		for _, rid := range subj.SourceRecords {
			if rid == recordID {
				return clone(subj), nil
			}
		}
	}
	return nil, nil
}

// clone copies a Subject so callers cannot mutate stored state in place.
func clone(s *Subject) *Subject {
	c := *s
	c.PIITypesFound = append([]string(nil), s.PIITypesFound...)
	c.SourceRecords = append([]id.RecordID(nil), s.SourceRecords...)
	if s.CanonicalAddress != nil {
		addr := *s.CanonicalAddress
		c.CanonicalAddress = &addr
	}
	return &c
}
