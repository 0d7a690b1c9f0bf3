package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmemory/engine/internal/config"
	"github.com/openmemory/engine/internal/embed"
	"github.com/openmemory/engine/internal/model"
	"github.com/openmemory/engine/internal/sector"
	"github.com/openmemory/engine/internal/store"
)

func newTestEngine(t *testing.T, clock func() time.Time) (*Engine, store.Store) {
	t.Helper()
	s := store.NewInMemoryStore()
	coord := embed.NewCoordinator(embed.Config{Tier: embed.TierFast, ProviderName: "synthetic", Mode: embed.ModeSimple}, nil, s, nil, nil)
	cfg := config.Default()
	cfg.Tier = embed.TierFast
	return New(s, coord, sector.New(), cfg, nil, nil, clock), s
}

func TestAdd_PersistsPrimarySectorAndVector(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)

	res, err := e.Add(ctx, "today I felt anxious about the deploy", "u1", nil, nil)
	require.NoError(t, err)
	assert.NotZero(t, res.MemoryID)
	assert.Contains(t, res.Sectors, model.SectorEmotional)

	mem, err := s.Get(ctx, res.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, "emotional", string(mem.PrimarySector))
	assert.Equal(t, 0.5, mem.Salience)
	assert.NotEmpty(t, mem.MeanVec)
}

func TestAdd_EmptyContentRejected(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.Add(context.Background(), "   ", "u1", nil, nil)
	require.Error(t, err)
}

func TestAdd_CreatesWaypointAboveThreshold(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)

	first, err := e.Add(ctx, "the deploy failed again today", "u1", nil, nil)
	require.NoError(t, err)

	// Identical content under FAST tier hashes to an identical vector
	// for every shared sector, so cosine against the first memory's
	// mean_vec is 1.0 — comfortably above the 0.75 creation threshold.
	second, err := e.Add(ctx, "the deploy failed again today", "u1", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, second.Waypoint)
	assert.Equal(t, first.MemoryID, second.Waypoint.DstID)
	assert.InDelta(t, 1.0, second.Waypoint.Weight, 1e-6)

	wp, found, err := s.OutgoingWaypoint(ctx, second.MemoryID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.MemoryID, wp.DstID)
}

func TestAddThenQuery_ExactTextScoresHighest(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)

	_, err := e.Add(ctx, "the bread recipe needs more yeast", "u1", nil, nil)
	require.NoError(t, err)
	target, err := e.Add(ctx, "today I felt anxious about the deploy", "u1", nil, nil)
	require.NoError(t, err)

	results, err := e.Query(ctx, "today I felt anxious about the deploy", QueryOptions{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, target.MemoryID, results[0].Memory.ID)
	assert.Greater(t, results[0].Score, 0.3)
}

func TestQuery_EmptyTextRejected(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.Query(context.Background(), "", QueryOptions{})
	require.Error(t, err)
}

func TestQuery_ReinforcesRecalledMemory(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, s := newTestEngine(t, func() time.Time { return fixed })

	added, err := e.Add(ctx, "deploy pipeline broke again", "u1", nil, nil)
	require.NoError(t, err)

	_, err = e.Query(ctx, "deploy pipeline broke again", QueryOptions{UserID: "u1", Limit: 5})
	require.NoError(t, err)

	mem, err := s.Get(ctx, added.MemoryID)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, mem.Salience, 1e-6) // 0.5 + default reinforce delta 0.1
	assert.Equal(t, fixed.UnixMilli(), mem.LastSeenAt.UnixMilli())
}

func TestQuery_MinScoreFloorDropsWeakMatches(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)

	_, err := e.Add(ctx, "the bread recipe needs more yeast", "u1", nil, nil)
	require.NoError(t, err)

	floor := 0.99
	results, err := e.Query(ctx, "completely unrelated query about spacecraft", QueryOptions{UserID: "u1", MinScore: &floor})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReinforce_BumpsSalienceAndCapsAtOne(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, func() time.Time { return fixed })

	added, err := e.Add(ctx, "a procedural how-to for backups", "u1", nil, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := e.Reinforce(ctx, added.MemoryID, nil)
		require.NoError(t, err)
	}
	mem, err := e.Get(ctx, added.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, mem.Salience)
}

func TestDelete_RemovesMemory(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)
	added, err := e.Add(ctx, "some semantic fact about go channels", "u1", nil, nil)
	require.NoError(t, err)

	require.NoError(t, e.Delete(ctx, added.MemoryID))
	_, err = e.Get(ctx, added.MemoryID)
	assert.Error(t, err)
}
