package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolute/internal/resolution/models"
	"resolute/internal/subject"
	id "resolute/pkg/domain"
)

var (
	t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t0.Add(48 * time.Hour)
)

func rec(rid, name, email string, at time.Time) models.NormalizedRecord {
	return models.NormalizedRecord{
		ID:         id.RecordID(rid),
		Name:       name,
		Email:      email,
		IngestedAt: at,
	}
}

func TestBuild(t *testing.T) {
	t.Run("most corroborated value wins", func(t *testing.T) {
		recs := []models.NormalizedRecord{
			rec("r1", "Jane Doe", "jane@example.com", t0),
			rec("r2", "Jane Doe", "jane@example.com", t1),
			rec("r3", "J. Doe", "jane@example.com", t2),
		}
		s := Build(recs, 0.9, t2)
		assert.Equal(t, "Jane Doe", s.CanonicalName)
		assert.Equal(t, "jane@example.com", s.CanonicalEmail)
	})

	t.Run("frequency tie breaks by most recent ingestion", func(t *testing.T) {
		recs := []models.NormalizedRecord{
			rec("r1", "Jane Doe", "", t0),
			rec("r2", "Jane M Doe", "", t2),
		}
		s := Build(recs, 1.0, t2)
		assert.Equal(t, "Jane M Doe", s.CanonicalName)
	})

	t.Run("tags union is sorted and deduplicated", func(t *testing.T) {
		recs := []models.NormalizedRecord{
			{ID: "r1", EntityTypes: []string{"US_SSN", "EMAIL"}, IngestedAt: t0},
			{ID: "r2", EntityTypes: []string{"EMAIL", "PHONE"}, IngestedAt: t1},
		}
		s := Build(recs, 1.0, t1)
		assert.Equal(t, []string{"EMAIL", "PHONE", "US_SSN"}, s.PIITypesFound)
	})

	t.Run("low confidence extraction flags the subject", func(t *testing.T) {
		recs := []models.NormalizedRecord{
			{ID: "r1", IngestedAt: t0},
			{ID: "r2", LowConfidence: true, IngestedAt: t1},
		}
		s := Build(recs, 1.0, t1)
		assert.True(t, s.FlaggedForReview)
	})

	t.Run("new subject starts in AI_PENDING with version one", func(t *testing.T) {
		s := Build([]models.NormalizedRecord{rec("r1", "Jane Doe", "", t0)}, 1.0, t0)
		assert.Equal(t, subject.StatusAIPending, s.Status)
		assert.EqualValues(t, 1, s.Version)
		assert.False(t, s.ID.IsNil())
	})

	t.Run("canonical address picks most corroborated zip", func(t *testing.T) {
		a1 := &models.PostalAddress{Street: "12 Elm St", Zip: "94105"}
		a2 := &models.PostalAddress{Street: "99 Oak Ave", Zip: "10001"}
		recs := []models.NormalizedRecord{
			{ID: "r1", Address: a1, IngestedAt: t0},
			{ID: "r2", Address: a1, IngestedAt: t1},
			{ID: "r3", Address: a2, IngestedAt: t2},
		}
		s := Build(recs, 1.0, t2)
		require.NotNil(t, s.CanonicalAddress)
		assert.Equal(t, "94105", s.CanonicalAddress.Zip)
	})
}

func TestMerge(t *testing.T) {
	t.Run("provenance only grows and stays deduplicated", func(t *testing.T) {
		s := Build([]models.NormalizedRecord{rec("r1", "Jane Doe", "", t0)}, 1.0, t0)
		before := append([]id.RecordID(nil), s.SourceRecords...)

		Merge(s, []models.NormalizedRecord{
			rec("r1", "Jane Doe", "", t0),
			rec("r2", "Jane Doe", "", t1),
		}, 0.85, t1)

		assert.Subset(t, s.SourceRecords, before)
		assert.Equal(t, []id.RecordID{"r1", "r2"}, s.SourceRecords)
	})

	t.Run("merge confidence is recomputed to the new minimum", func(t *testing.T) {
		s := Build([]models.NormalizedRecord{rec("r1", "Jane Doe", "", t0)}, 1.0, t0)
		Merge(s, []models.NormalizedRecord{
			rec("r1", "Jane Doe", "", t0),
			rec("r2", "Jane Doe", "", t1),
		}, 0.82, t1)
		assert.Equal(t, 0.82, s.MergeConfidence)
	})
}

func TestCombine(t *testing.T) {
	t.Run("absorbs provenance tags and weakest confidence", func(t *testing.T) {
		a := Build([]models.NormalizedRecord{
			{ID: "r1", Name: "Jane Doe", EntityTypes: []string{"EMAIL"}, IngestedAt: t0},
		}, 0.9, t0)
		b := Build([]models.NormalizedRecord{
			{ID: "r2", Name: "Jane M Doe", EntityTypes: []string{"PHONE"}, IngestedAt: t1},
		}, 0.88, t1)

		Combine(a, b, 0.65, t2)

		assert.Equal(t, []id.RecordID{"r1", "r2"}, a.SourceRecords)
		assert.Equal(t, []string{"EMAIL", "PHONE"}, a.PIITypesFound)
		assert.Equal(t, 0.65, a.MergeConfidence)
		assert.Equal(t, "Jane Doe", a.CanonicalName)
	})

	t.Run("fills empty canonical fields from the absorbed subject", func(t *testing.T) {
		a := Build([]models.NormalizedRecord{{ID: "r1", Name: "Jane Doe", IngestedAt: t0}}, 1.0, t0)
		b := Build([]models.NormalizedRecord{rec("r2", "Jane Doe", "jane@example.com", t1)}, 1.0, t1)

		Combine(a, b, 0.7, t2)
		assert.Equal(t, "jane@example.com", a.CanonicalEmail)
	})
}
