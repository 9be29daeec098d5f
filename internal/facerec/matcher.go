package facerec

import (
	"github.com/jsalmela/attendant/internal/conf"
)

// NoMatch is returned by Match when no known encoding is within tolerance.
const NoMatch = -1

// Matcher resolves a detected face encoding against a set of known
// encodings using a fixed tolerance.
type Matcher struct {
	tolerance float64
	policy    string
}

// NewMatcher creates a matcher with the given tolerance and match policy.
func NewMatcher(tolerance float64, policy string) *Matcher {
	if policy == "" {
		policy = conf.MatchPolicyFirst
	}
	return &Matcher{tolerance: tolerance, policy: policy}
}

// Match returns the index of the matching known encoding, or NoMatch.
//
// With MatchPolicyFirst the first known encoding within tolerance wins, in
// roster load order. This mirrors the original kiosk behavior and is kept
// as the default; when several enrolled faces fall within tolerance it is
// order dependent, not distance ranked. MatchPolicyClosest picks the
// minimum distance entry instead.
func (m *Matcher) Match(encoding Encoding, known []Encoding) int {
	switch m.policy {
	case conf.MatchPolicyClosest:
		return m.matchClosest(encoding, known)
	default:
		return m.matchFirst(encoding, known)
	}
}

func (m *Matcher) matchFirst(encoding Encoding, known []Encoding) int {
	for i := range known {
		if EuclideanDistance(encoding, known[i]) <= m.tolerance {
			return i
		}
	}
	return NoMatch
}

func (m *Matcher) matchClosest(encoding Encoding, known []Encoding) int {
	best := NoMatch
	bestDistance := m.tolerance
	for i := range known {
		if d := EuclideanDistance(encoding, known[i]); d <= bestDistance {
			best = i
			bestDistance = d
		}
	}
	return best
}
