package store

import (
	"context"
	"sort"
	"sync"

	"resolute/internal/resolution/models"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

type InMemoryLinkStore struct {
	mu       sync.RWMutex
	links    map[id.LinkID]*models.PendingMergeLink
	rejected map[id.PairKey]bool
}

func NewInMemoryLinkStore() *InMemoryLinkStore {
	return &InMemoryLinkStore{
		links:    make(map[id.LinkID]*models.PendingMergeLink),
		rejected: make(map[id.PairKey]bool),
	}
}

func (s *InMemoryLinkStore) SaveLink(_ context.Context, link *models.PendingMergeLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.ID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "pending merge link %s already exists", link.ID)
	}
	cp := *link
	s.links[link.ID] = &cp
	return nil
}

func (s *InMemoryLinkStore) GetLink(_ context.Context, linkID id.LinkID) (*models.PendingMergeLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if link, exists := s.links[linkID]; exists {
		cp := *link
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemoryLinkStore) UpdateLink(_ context.Context, link *models.PendingMergeLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.ID]; !exists {
		return dErrors.Newf(dErrors.CodeNotFound, "pending merge link %s not found", link.ID)
	}
	cp := *link
	s.links[link.ID] = &cp
	return nil
}

func (s *InMemoryLinkStore) ListPending(_ context.Context) ([]*models.PendingMergeLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.PendingMergeLink
	for _, link := range s.links {
		if link.Status == models.LinkPending {
			cp := *link
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence < out[j].Confidence
		}
		return out[i].PairKey < out[j].PairKey
	})
	return out, nil
}

func (s *InMemoryLinkStore) FindPendingByPair(_ context.Context, key id.PairKey) (*models.PendingMergeLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.links {
		if link.PairKey == key && link.Status == models.LinkPending {
			cp := *link
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryLinkStore) MarkRejected(_ context.Context, key id.PairKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[key] = true
	return nil
}

func (s *InMemoryLinkStore) RejectedPairs(_ context.Context) (map[id.PairKey]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[id.PairKey]bool, len(s.rejected))
	for k := range s.rejected {
		out[k] = true
	}
	return out, nil
}
