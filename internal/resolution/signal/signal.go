// Package signal scores record pairs against the matching signal ladder.
//
// Comparison is pure and stateless, so callers may fan pairs out across
// workers freely. Which signals may fire is controlled per engagement by a
// validated Config (the "dedup anchors").
package signal

import (
	"sort"

	"resolute/internal/resolution/fuzzy"
	"resolute/internal/resolution/models"
	dErrors "resolute/pkg/errors"
)

// weights is the fixed confidence contribution of each signal. The ladder
// is ordered by how hard the underlying field is to share by coincidence.
var weights = map[models.Signal]float64{
	models.SignalGovID:       0.50,
	models.SignalEmail:       0.40,
	models.SignalPhone:       0.35,
	models.SignalNameDOB:     0.35,
	models.SignalNameAddress: 0.25,
	models.SignalNameOnly:    0.10,
}

// Weight returns the fixed confidence weight of s, or 0 for an unknown
// signal.
func Weight(s models.Signal) float64 { return weights[s] }

// Config holds the validated active-signal set for an engagement.
type Config struct {
	active map[models.Signal]bool
}

// NewConfig validates names and builds an active-signal set. An empty list
// activates every signal. Unknown signal names fail here, at configuration
// time, never at match time.
func NewConfig(names []string) (Config, error) {
	active := make(map[models.Signal]bool, len(weights))
	if len(names) == 0 {
		for s := range weights {
			active[s] = true
		}
		return Config{active: active}, nil
	}
	for _, name := range names {
		s := models.Signal(name)
		if _, ok := weights[s]; !ok {
			return Config{}, dErrors.Newf(dErrors.CodeInvalidInput,
				"unknown dedup anchor %q; valid anchors: %v", name, validNames())
		}
		active[s] = true
	}
	return Config{active: active}, nil
}

// Active reports whether s may contribute under this configuration.
func (c Config) Active(s models.Signal) bool { return c.active[s] }

func validNames() []string {
	names := make([]string, 0, len(weights))
	for s := range weights {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Compare scores one record pair. Each signal type contributes at most once;
// the sum is clipped to [0, 1]. A pair with no fired signals has confidence
// zero and represents no relationship.
func Compare(a, b models.NormalizedRecord, cfg Config) models.CandidatePair {
	pair := models.CandidatePair{A: a.ID, B: b.ID}

	fire := func(s models.Signal) {
		pair.Signals = append(pair.Signals, s)
		pair.Confidence += weights[s]
	}

	if cfg.Active(models.SignalGovID) &&
		a.GovIDHash != "" && a.GovIDHash == b.GovIDHash {
		fire(models.SignalGovID)
	}

	if cfg.Active(models.SignalEmail) &&
		a.Email != "" && a.Email == b.Email {
		fire(models.SignalEmail)
	}

	if cfg.Active(models.SignalPhone) &&
		a.Phone != "" && a.Phone == b.Phone {
		fire(models.SignalPhone)
	}

	// Name-dependent signals share one fuzzy name comparison.
	nameSignals := cfg.Active(models.SignalNameDOB) ||
		cfg.Active(models.SignalNameAddress) ||
		cfg.Active(models.SignalNameOnly)
	if nameSignals && fuzzy.NamesMatch(a.Name, b.Name) {
		if cfg.Active(models.SignalNameDOB) &&
			a.DateOfBirth != "" && a.DateOfBirth == b.DateOfBirth {
			fire(models.SignalNameDOB)
		}

		if cfg.Active(models.SignalNameAddress) &&
			fuzzy.AddressesMatch(toFuzzyAddress(a.Address), toFuzzyAddress(b.Address)) {
			fire(models.SignalNameAddress)
		}

		if cfg.Active(models.SignalNameOnly) {
			fire(models.SignalNameOnly)
		}
	}

	if pair.Confidence > 1.0 {
		pair.Confidence = 1.0
	}
	return pair
}

func toFuzzyAddress(a *models.PostalAddress) *fuzzy.Address {
	if a == nil {
		return nil
	}
	return &fuzzy.Address{Street: a.Street, Zip: a.Zip, Country: a.Country}
}
