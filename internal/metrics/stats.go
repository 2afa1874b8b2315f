package metrics

import (
	"math"
	"sort"
	"time"

	"meshdiag/internal/model"
)

// Summary is a basic statistics snapshot of attribution rows.
type Summary struct {
	Count         int
	From          time.Time
	To            time.Time
	None          int
	Unambiguous   int
	Ambiguous     int
	AvgCandidates float64
	P95Candidates float64
	MaxCandidates int
	// AvgBestScore covers rows that resolved to at least one candidate.
	AvgBestScore float64
}

// AmbiguousPct is the share of rows with more than one candidate.
func (s Summary) AmbiguousPct() float64 {
	if s.Count == 0 {
		return 0
	}
	return 100 * float64(s.Ambiguous) / float64(s.Count)
}

// Summarize computes summary statistics for rows at or after since.
func Summarize(items []model.Attribution, since time.Time) Summary {
	filtered := make([]model.Attribution, 0, len(items))
	for _, a := range items {
		if a.Timestamp.After(since) || a.Timestamp.Equal(since) {
			filtered = append(filtered, a)
		}
	}

	if len(filtered) == 0 {
		return Summary{Count: 0}
	}

	var s Summary
	values := make([]float64, 0, len(filtered))
	var sumCandidates, sumScore float64
	scored := 0
	s.From = filtered[0].Timestamp
	s.To = filtered[0].Timestamp

	for _, a := range filtered {
		switch a.Kind {
		case "unambiguous":
			s.Unambiguous++
		case "ambiguous":
			s.Ambiguous++
		default:
			s.None++
		}
		values = append(values, float64(a.Candidates))
		sumCandidates += float64(a.Candidates)
		if a.Candidates > s.MaxCandidates {
			s.MaxCandidates = a.Candidates
		}
		if a.Candidates > 0 {
			sumScore += a.BestScore
			scored++
		}
		if a.Timestamp.Before(s.From) {
			s.From = a.Timestamp
		}
		if a.Timestamp.After(s.To) {
			s.To = a.Timestamp
		}
	}

	sort.Float64s(values)
	s.Count = len(filtered)
	s.AvgCandidates = sumCandidates / float64(s.Count)
	s.P95Candidates = percentile(values, 0.95)
	if scored > 0 {
		s.AvgBestScore = sumScore / float64(scored)
	}
	return s
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
