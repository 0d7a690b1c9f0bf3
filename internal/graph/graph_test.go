package graph

import (
	"context"
	"testing"

	"github.com/openmemory/engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWaypoints struct {
	edges map[int64]model.Waypoint
}

func newFakeWaypoints() *fakeWaypoints {
	return &fakeWaypoints{edges: map[int64]model.Waypoint{}}
}

func (f *fakeWaypoints) UpsertWaypoint(_ context.Context, src, dst int64, weight float64) error {
	if cur, ok := f.edges[src]; ok && cur.Weight > weight {
		return nil
	}
	f.edges[src] = model.Waypoint{SrcID: src, DstID: dst, Weight: weight}
	return nil
}

func (f *fakeWaypoints) OutgoingWaypoint(_ context.Context, id int64) (*model.Waypoint, bool, error) {
	wp, ok := f.edges[id]
	if !ok {
		return nil, false, nil
	}
	return &wp, true, nil
}

func (f *fakeWaypoints) DeleteWaypointsBelow(_ context.Context, threshold float64) (int, error) {
	removed := 0
	for src, wp := range f.edges {
		if wp.Weight < threshold {
			delete(f.edges, src)
			removed++
		}
	}
	return removed, nil
}

func TestCreateEdges_ReciprocalOnDifferentSectors(t *testing.T) {
	ctx := context.Background()
	w := newFakeWaypoints()

	best := MeanCandidate{ID: 1, PrimarySector: model.SectorSemantic}
	created, err := CreateEdges(ctx, w, 2, model.SectorEpisodic, best, 0.9, DefaultThreshold)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	fwd, ok, _ := w.OutgoingWaypoint(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, int64(1), fwd.DstID)

	rec, ok, _ := w.OutgoingWaypoint(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, int64(2), rec.DstID)
}

func TestCreateEdges_NoReciprocalSameSector(t *testing.T) {
	ctx := context.Background()
	w := newFakeWaypoints()

	best := MeanCandidate{ID: 1, PrimarySector: model.SectorEpisodic}
	_, err := CreateEdges(ctx, w, 2, model.SectorEpisodic, best, 0.9, DefaultThreshold)
	require.NoError(t, err)

	_, ok, _ := w.OutgoingWaypoint(ctx, 1)
	assert.False(t, ok)
}

func TestCreateEdges_BelowThreshold(t *testing.T) {
	ctx := context.Background()
	w := newFakeWaypoints()
	best := MeanCandidate{ID: 1, PrimarySector: model.SectorSemantic}
	created, err := CreateEdges(ctx, w, 2, model.SectorEpisodic, best, 0.5, DefaultThreshold)
	require.NoError(t, err)
	assert.Nil(t, created)
}

func TestSingleOutgoingEdgeInvariant(t *testing.T) {
	ctx := context.Background()
	w := newFakeWaypoints()
	require.NoError(t, w.UpsertWaypoint(ctx, 1, 2, 0.8))
	require.NoError(t, w.UpsertWaypoint(ctx, 1, 3, 0.6)) // weaker, rejected
	wp, _, _ := w.OutgoingWaypoint(ctx, 1)
	assert.Equal(t, int64(2), wp.DstID)

	require.NoError(t, w.UpsertWaypoint(ctx, 1, 4, 0.95)) // stronger, replaces
	wp, _, _ = w.OutgoingWaypoint(ctx, 1)
	assert.Equal(t, int64(4), wp.DstID)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	w := newFakeWaypoints()
	weights := []float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.04, 0.03}
	for i, wt := range weights {
		w.edges[int64(i)] = model.Waypoint{SrcID: int64(i), DstID: int64(i + 100), Weight: wt}
	}
	removed, err := Prune(ctx, w, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Len(t, w.edges, 8)
}

func TestReinforce_Caps(t *testing.T) {
	ctx := context.Background()
	w := newFakeWaypoints()
	edge := model.Waypoint{SrcID: 1, DstID: 2, Weight: 0.98}
	for i := 0; i < 5; i++ {
		require.NoError(t, Reinforce(ctx, w, edge, DefaultReinforceDelta))
		wp, _, _ := w.OutgoingWaypoint(ctx, 1)
		edge = *wp
	}
	assert.Equal(t, 1.0, edge.Weight)
}
