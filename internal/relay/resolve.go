package relay

import (
	"errors"
	"fmt"
	"sort"

	"meshdiag/internal/model"
)

// ErrInvalidSuffix is returned for relay suffix values outside 0..255.
// Such a value means the decoder upstream is broken, so it is never masked.
var ErrInvalidSuffix = errors.New("invalid relay suffix")

// ParseSuffix validates a raw relay suffix value.
func ParseSuffix(v int) (uint8, error) {
	if v < 0 || v > model.RelaySuffixMask {
		return 0, fmt.Errorf("%w: %d not in 0..255", ErrInvalidSuffix, v)
	}
	return uint8(v), nil
}

// Kind classifies a resolution.
type Kind int

const (
	NoAttribution Kind = iota
	Unambiguous
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case NoAttribution:
		return "none"
	case Unambiguous:
		return "unambiguous"
	case Ambiguous:
		return "ambiguous"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Candidate is a node paired with its signal score.
type Candidate struct {
	Node  model.Node
	Score float64
}

// Resolution is the outcome of attributing one relay suffix.
type Resolution struct {
	Suffix uint8
	Kind   Kind
	// Candidates is sorted best first (score desc, then id asc).
	Candidates []Candidate

	best    Candidate
	hasBest bool
}

// Best returns the highest-scoring candidate. ok is false for NoAttribution.
func (r Resolution) Best() (Candidate, bool) {
	return r.best, r.hasBest
}

// Rank scores nodes and orders them best first. Exact score ties are
// ordered by ascending node id so identical snapshots rank identically.
func Rank(nodes []model.Node) []Candidate {
	out := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Candidate{Node: n, Score: Score(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		return better(out[i], out[j])
	})
	return out
}

// Best picks the maximum-scoring node with the same tie-break as Rank.
func Best(nodes []model.Node) (Candidate, bool) {
	var (
		best Candidate
		ok   bool
	)
	for _, n := range nodes {
		c := Candidate{Node: n, Score: Score(n)}
		if !ok || better(c, best) {
			best = c
			ok = true
		}
	}
	return best, ok
}

func better(a, b Candidate) bool {
	if a.Score == b.Score {
		return a.Node.ID < b.Node.ID
	}
	return a.Score > b.Score
}

// Resolve attributes a raw relay suffix against a snapshot. It fails only
// when suffix is outside 0..255.
func Resolve(snap model.Snapshot, owner *model.NodeID, suffix int) (Resolution, error) {
	s, err := ParseSuffix(suffix)
	if err != nil {
		return Resolution{}, err
	}
	return ResolveSuffix(snap, owner, s), nil
}

// ResolveSuffix attributes an already validated suffix.
func ResolveSuffix(snap model.Snapshot, owner *model.NodeID, suffix uint8) Resolution {
	nodes := Candidates(snap, owner, suffix)
	res := Resolution{Suffix: suffix}

	switch len(nodes) {
	case 0:
		res.Kind = NoAttribution
		return res
	case 1:
		res.Kind = Unambiguous
	default:
		res.Kind = Ambiguous
	}

	res.Candidates = Rank(nodes)
	res.best, res.hasBest = Best(nodes)
	return res
}
