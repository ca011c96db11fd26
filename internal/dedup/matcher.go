// Package dedup decides whether a newly extracted event is a re-upload of one
// already stored. It favours precision: a missed merge is cheaper than merging
// two distinct events.
package dedup

import (
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
)

const (
	DefaultNameThreshold        = 0.985
	DefaultDescriptionThreshold = 0.95
)

// Matcher compares the text fields of events already known to share start,
// end and location.
type Matcher struct {
	NameThreshold        float64
	DescriptionThreshold float64
	metric               *metrics.JaroWinkler
}

func NewMatcher(nameThreshold, descriptionThreshold float64) *Matcher {
	if nameThreshold <= 0 {
		nameThreshold = DefaultNameThreshold
	}
	if descriptionThreshold <= 0 {
		descriptionThreshold = DefaultDescriptionThreshold
	}
	m := metrics.NewJaroWinkler()
	m.CaseSensitive = true
	return &Matcher{NameThreshold: nameThreshold, DescriptionThreshold: descriptionThreshold, metric: m}
}

// Similarity is the Jaro-Winkler score of a and b in [0, 1].
func (m *Matcher) Similarity(a, b string) float64 {
	return strutil.Similarity(a, b, m.metric)
}

// IsDuplicate reports whether candidate is the same event as existing. Both
// thresholds are strict: a score equal to the threshold does not match.
// "Workshop A" vs "Workshop B" scores 0.98 and must stay distinct.
func (m *Matcher) IsDuplicate(existing, candidate *model.Event) bool {
	if m.Similarity(existing.Name, candidate.Name) <= m.NameThreshold {
		return false
	}
	return m.Similarity(existing.Description, candidate.Description) > m.DescriptionThreshold
}

// SameSlot is the null-safe equality on time and location that a candidate
// must pass before text similarity is considered.
func SameSlot(a, b *model.Event) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return false
	}
	if !timeEqual(a.EndDate, b.EndDate) {
		return false
	}
	if a.Address != nil || b.Address != nil {
		return strEqual(a.Address, b.Address)
	}
	return strEqual(a.OriginalLocation, b.OriginalLocation)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func strEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
