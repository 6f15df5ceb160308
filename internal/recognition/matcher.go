package recognition

import (
	"github.com/andresmejia3/kiosk/internal/store"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/utils"
)

// Gallery is the read side of the face store.
type Gallery interface {
	Entries() []store.Entry
	Get(slot int) (store.FaceRecord, bool)
	IsFull() bool
}

// Matcher maps detector candidates to a slot, types.MatchUnknown or types.MatchNone.
type Matcher interface {
	Match(cands []types.Candidate, g Gallery) int
}

// DefaultThreshold is the cosine distance under which two faces match.
const DefaultThreshold = 0.4

// CosineMatcher matches the best-scoring candidate's feature against every
// stored feature and picks the closest one under Threshold. Records enrolled
// without a feature never match.
type CosineMatcher struct {
	Threshold float64
}

func (m CosineMatcher) Match(cands []types.Candidate, g Gallery) int {
	best := bestCandidate(cands)
	if best == nil {
		return types.MatchNone
	}

	slot, bestDist := types.MatchUnknown, m.Threshold
	for _, e := range g.Entries() {
		if e.Feature.IsZero() {
			continue
		}
		if d := utils.CosineDist(best.Vec, e.Feature[:]); d < bestDist {
			slot, bestDist = e.Slot, d
		}
	}
	return slot
}

// FirstRecordMatcher reports the first used slot for any face. It ignores
// features entirely.
type FirstRecordMatcher struct{}

func (FirstRecordMatcher) Match(cands []types.Candidate, g Gallery) int {
	if len(cands) == 0 {
		return types.MatchNone
	}
	if entries := g.Entries(); len(entries) > 0 {
		return entries[0].Slot
	}
	return types.MatchUnknown
}

// NewMatcher returns the matcher registered under name ("cosine" or "first").
func NewMatcher(name string, threshold float64) Matcher {
	if name == "first" {
		return FirstRecordMatcher{}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return CosineMatcher{Threshold: threshold}
}

// bestCandidate is the highest-scoring candidate that carries a full feature.
func bestCandidate(cands []types.Candidate) *types.Candidate {
	var best *types.Candidate
	for i := range cands {
		c := &cands[i]
		if len(c.Vec) != types.FeatureSize {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	return best
}

// featureOf copies the best candidate's feature, or returns the zero feature.
func featureOf(cands []types.Candidate) types.Feature {
	var f types.Feature
	if c := bestCandidate(cands); c != nil {
		copy(f[:], c.Vec)
	}
	return f
}
