package decay

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmemory/engine/internal/model"
	"github.com/openmemory/engine/internal/store"
)

func TestDecayOne_ExactFormula(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := model.NewMemory("u1", "some emotional memory", model.SectorEmotional, nil, nil, start)
	mem.Salience = 0.4
	require.NoError(t, s.InsertMemory(ctx, mem, []model.Vector{{Sector: model.SectorEmotional, Tier: "FAST", Dim: 2, V: []float32{1, 0}}}, nil))

	later := start.Add(60 * 24 * time.Hour)
	w := New(s, Config{NumWorkers: 2}, nil, nil, func() time.Time { return later })

	require.NoError(t, w.decayOne(ctx, mem.ID))

	got, err := s.Get(ctx, mem.ID)
	require.NoError(t, err)
	want := 0.4 * math.Exp(-0.020*60)
	assert.InDelta(t, want, got.Salience, 1e-9)
	assert.InDelta(t, 0.120, want, 1e-3)
}

func TestDecayOne_FingerprintsOnColdTransition(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := model.NewMemory("u1", "a memory that will go cold over time", model.SectorSemantic, nil, nil, start)
	mem.Salience = 0.5
	require.NoError(t, s.InsertMemory(ctx, mem, []model.Vector{{Sector: model.SectorSemantic, Tier: "FAST", Dim: 2, V: []float32{1, 0}}}, nil))

	later := start.Add(365 * 24 * time.Hour)
	w := New(s, Config{NumWorkers: 2}, nil, nil, func() time.Time { return later })
	require.NoError(t, w.decayOne(ctx, mem.ID))

	got, err := s.Get(ctx, mem.ID)
	require.NoError(t, err)
	assert.True(t, got.Cold)
	assert.NotEqual(t, "a memory that will go cold over time", got.Content)
	assert.Less(t, got.Salience, 0.25)
}

func TestDecayOne_NeverTouchesVectorsOrLastSeen(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := model.NewMemory("u1", "something procedural", model.SectorProcedural, nil, nil, start)
	require.NoError(t, s.InsertMemory(ctx, mem, []model.Vector{{Sector: model.SectorProcedural, Tier: "FAST", Dim: 2, V: []float32{1, 0}}}, nil))

	w := New(s, Config{NumWorkers: 2}, nil, nil, func() time.Time { return start.Add(24 * time.Hour) })
	require.NoError(t, w.decayOne(ctx, mem.ID))

	got, err := s.Get(ctx, mem.ID)
	require.NoError(t, err)
	assert.Equal(t, start.UnixMilli(), got.LastSeenAt.UnixMilli())

	cands, err := s.CandidatesBySector(ctx, "u1", model.SectorProcedural)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, []float32{1, 0}, cands[0].Vec)
}

func TestRun_PrunesWeakWaypointsAfterCadence(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m1 := model.NewMemory("u1", "m1", model.SectorSemantic, nil, nil, start)
	require.NoError(t, s.InsertMemory(ctx, m1, []model.Vector{{Sector: model.SectorSemantic, Dim: 2, V: []float32{1, 0}}}, nil))
	m2 := model.NewMemory("u1", "m2", model.SectorSemantic, nil, nil, start)
	require.NoError(t, s.InsertMemory(ctx, m2, []model.Vector{{Sector: model.SectorSemantic, Dim: 2, V: []float32{1, 0}}}, nil))

	require.NoError(t, s.UpsertWaypoint(ctx, m1.ID, m2.ID, 0.02))

	w := New(s, Config{NumWorkers: 2, PruneDays: 7}, nil, nil, func() time.Time { return start.Add(8 * 24 * time.Hour) })
	require.NoError(t, w.Run(ctx))

	_, found, err := s.OutgoingWaypoint(ctx, m1.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("hello world")
	b := Fingerprint("hello world")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Fingerprint("hello mars"))
}
