package embed

import (
	"context"
	"testing"

	"github.com/openmemory/engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbed_Deterministic(t *testing.T) {
	v1 := HashEmbed("the capital of France is Paris", model.SectorSemantic, 256)
	v2 := HashEmbed("the capital of France is Paris", model.SectorSemantic, 256)
	assert.Equal(t, v1, v2)

	v3 := HashEmbed("the capital of France is Paris", model.SectorEpisodic, 256)
	assert.NotEqual(t, v1, v3)

	assert.InDelta(t, 1.0, model.Norm(v1), 1e-6)
}

func TestDimFor(t *testing.T) {
	assert.Equal(t, 256, DimFor(TierFast, model.SectorSemantic))
	assert.Equal(t, 384, DimFor(TierSmart, model.SectorSemantic))
	assert.Equal(t, 256, DimFor(TierSmart, model.SectorEpisodic))
	assert.Equal(t, 1536, DimFor(TierDeep, model.SectorEpisodic))
}

type fakeSink struct {
	entries []model.EmbedLog
}

func (f *fakeSink) LogEmbed(_ context.Context, e model.EmbedLog) error {
	f.entries = append(f.entries, e)
	return nil
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Embed(context.Context, string, model.Sector, int) ([]float32, error) {
	return nil, assertErr
}

var assertErr = fmtErr("provider unavailable")

type fmtErr string

func (e fmtErr) Error() string { return string(e) }

func TestCoordinator_FastTierNeverUsesProvider(t *testing.T) {
	sink := &fakeSink{}
	c := NewCoordinator(Config{Tier: TierFast, Mode: ModeSimple}, failingProvider{}, sink, nil, nil)

	vecs, err := c.EmbedBatch(context.Background(), "hello world", []model.Sector{model.SectorSemantic, model.SectorEmotional})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	for _, e := range sink.entries {
		assert.True(t, e.OK)
	}
}

func TestCoordinator_DropsFailedSector(t *testing.T) {
	sink := &fakeSink{}
	c := NewCoordinator(Config{Tier: TierDeep, Mode: ModeAdvanced}, failingProvider{}, sink, nil, nil)

	vecs, err := c.EmbedBatch(context.Background(), "hello world", []model.Sector{model.SectorSemantic})
	require.NoError(t, err)
	assert.Empty(t, vecs)
	require.Len(t, sink.entries, 1)
	assert.False(t, sink.entries[0].OK)
}
