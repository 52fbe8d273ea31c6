// Package synth builds canonical Subject records from resolved clusters.
// Source records are never mutated; synthesis only reads them.
package synth

import (
	"sort"
	"time"

	"resolute/internal/resolution/models"
	"resolute/internal/subject"
	id "resolute/pkg/domain"
	pstrings "resolute/pkg/platform/strings"
)

// candidate is one observed value for a canonical field.
type candidate struct {
	value      string
	ingestedAt time.Time
}

// bestValue picks the canonical value: most corroborated first, then most
// recently ingested, then longest, then lexicographically smallest. The
// trailing tie-breaks keep selection deterministic.
func bestValue(candidates []candidate) string {
	if len(candidates) == 0 {
		return ""
	}

	type stat struct {
		count  int
		latest time.Time
	}
	stats := make(map[string]*stat)
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		s, ok := stats[c.value]
		if !ok {
			s = &stat{}
			stats[c.value] = s
		}
		s.count++
		if c.ingestedAt.After(s.latest) {
			s.latest = c.ingestedAt
		}
	}
	if len(stats) == 0 {
		return ""
	}

	values := make([]string, 0, len(stats))
	for v := range stats {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		si, sj := stats[values[i]], stats[values[j]]
		if si.count != sj.count {
			return si.count > sj.count
		}
		if !si.latest.Equal(sj.latest) {
			return si.latest.After(sj.latest)
		}
		if len(values[i]) != len(values[j]) {
			return len(values[i]) > len(values[j])
		}
		return values[i] < values[j]
	})
	return values[0]
}

func bestAddress(recs []models.NormalizedRecord) *models.PostalAddress {
	zips := make([]candidate, 0, len(recs))
	for _, r := range recs {
		if r.Address != nil && r.Address.Zip != "" {
			zips = append(zips, candidate{value: r.Address.Zip, ingestedAt: r.IngestedAt})
		}
	}
	zip := bestValue(zips)
	if zip == "" {
		for _, r := range recs {
			if r.Address != nil {
				addr := *r.Address
				return &addr
			}
		}
		return nil
	}
	for _, r := range recs {
		if r.Address != nil && r.Address.Zip == zip {
			addr := *r.Address
			return &addr
		}
	}
	return nil
}

// Build creates a new Subject from a cluster's records. minConfidence is the
// minimum edge confidence of the cluster's spanning set (1.0 for singletons).
func Build(recs []models.NormalizedRecord, minConfidence float64, now time.Time) *subject.Subject {
	s := &subject.Subject{
		ID:              id.NewSubjectID(),
		MergeConfidence: minConfidence,
		Status:          subject.StatusAIPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	refresh(s, recs, minConfidence, now)
	return s
}

// Merge attaches the full merged record set to an existing Subject in
// place. Provenance is appended, canonical fields and merge confidence are
// recomputed; the Subject is never replaced.
func Merge(s *subject.Subject, recs []models.NormalizedRecord, minConfidence float64, now time.Time) {
	refresh(s, recs, minConfidence, now)
	s.UpdatedAt = now
}

func refresh(s *subject.Subject, recs []models.NormalizedRecord, minConfidence float64, now time.Time) {
	names := make([]candidate, 0, len(recs))
	emails := make([]candidate, 0, len(recs))
	phones := make([]candidate, 0, len(recs))
	tags := make([][]string, 0, len(recs))
	flagged := s.FlaggedForReview

	seen := make(map[id.RecordID]bool, len(s.SourceRecords))
	for _, rid := range s.SourceRecords {
		seen[rid] = true
	}

	for _, r := range recs {
		names = append(names, candidate{r.Name, r.IngestedAt})
		emails = append(emails, candidate{r.Email, r.IngestedAt})
		phones = append(phones, candidate{r.Phone, r.IngestedAt})
		tags = append(tags, r.EntityTypes)
		if r.LowConfidence {
			flagged = true
		}
		if !seen[r.ID] {
			s.SourceRecords = append(s.SourceRecords, r.ID)
			seen[r.ID] = true
		}
	}

	s.CanonicalName = bestValue(names)
	s.CanonicalEmail = bestValue(emails)
	s.CanonicalPhone = bestValue(phones)
	s.CanonicalAddress = bestAddress(recs)
	s.PIITypesFound = pstrings.SortedUnion(append(tags, s.PIITypesFound)...)
	s.FlaggedForReview = flagged

	// Recomputed by the caller over the cluster's full edge set, never
	// averaged: the conservative aggregate is the minimum.
	s.MergeConfidence = minConfidence
}

// Combine folds subject b into subject a after a reviewer confirms a
// pending merge. The surviving record keeps a's identity; b's provenance
// and tags are absorbed and the merge confidence drops to the weakest link.
func Combine(a, b *subject.Subject, linkConfidence float64, now time.Time) {
	seen := make(map[id.RecordID]bool, len(a.SourceRecords))
	for _, rid := range a.SourceRecords {
		seen[rid] = true
	}
	for _, rid := range b.SourceRecords {
		if !seen[rid] {
			a.SourceRecords = append(a.SourceRecords, rid)
			seen[rid] = true
		}
	}

	a.PIITypesFound = pstrings.SortedUnion(a.PIITypesFound, b.PIITypesFound)

	if a.CanonicalName == "" {
		a.CanonicalName = b.CanonicalName
	}
	if a.CanonicalEmail == "" {
		a.CanonicalEmail = b.CanonicalEmail
	}
	if a.CanonicalPhone == "" {
		a.CanonicalPhone = b.CanonicalPhone
	}
	if a.CanonicalAddress == nil {
		a.CanonicalAddress = b.CanonicalAddress
	}

	conf := a.MergeConfidence
	if b.MergeConfidence < conf {
		conf = b.MergeConfidence
	}
	if linkConfidence < conf {
		conf = linkConfidence
	}
	a.MergeConfidence = conf

	a.FlaggedForReview = a.FlaggedForReview || b.FlaggedForReview
	a.UpdatedAt = now
}
