package recognition

import (
	"context"
	"testing"

	"github.com/andresmejia3/kiosk/internal/kv"
	"github.com/andresmejia3/kiosk/internal/store"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func galleryWith(t *testing.T, axes ...int) *store.FaceStore {
	t.Helper()
	g := store.New(kv.NewMemory(), store.MaxFaces)
	for i, axis := range axes {
		var feat types.Feature
		if axis >= 0 {
			feat[axis] = 1
		}
		_, err := g.EnrollWithFeature(context.Background(), string(rune('A'+i)), feat)
		require.NoError(t, err)
	}
	return g
}

func TestCosineMatcher(t *testing.T) {
	m := CosineMatcher{Threshold: DefaultThreshold}
	g := galleryWith(t, 0, 1, -1)

	tests := []struct {
		name  string
		cands []types.Candidate
		want  int
	}{
		{name: "No candidates", cands: nil, want: types.MatchNone},
		{name: "No features", cands: []types.Candidate{{Score: 1}}, want: types.MatchNone},
		{name: "Matches slot 1", cands: []types.Candidate{{Vec: unitVec(1), Score: 1}}, want: 1},
		{name: "Unknown face", cands: []types.Candidate{{Vec: unitVec(7), Score: 1}}, want: types.MatchUnknown},
		{
			name: "Best score wins",
			cands: []types.Candidate{
				{Vec: unitVec(1), Score: 0.2},
				{Vec: unitVec(0), Score: 0.9},
			},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.cands, g))
		})
	}
}

func TestFirstRecordMatcher(t *testing.T) {
	var m FirstRecordMatcher
	empty := galleryWith(t)
	assert.Equal(t, types.MatchNone, m.Match(nil, empty))
	assert.Equal(t, types.MatchUnknown, m.Match([]types.Candidate{{}}, empty))

	g := galleryWith(t, -1, -1)
	require.NoError(t, g.Delete(context.Background(), 0))
	assert.Equal(t, 1, m.Match([]types.Candidate{{}}, g))
}

func TestNewMatcher(t *testing.T) {
	assert.IsType(t, FirstRecordMatcher{}, NewMatcher("first", 0))
	assert.Equal(t, CosineMatcher{Threshold: DefaultThreshold}, NewMatcher("cosine", 0))
}
