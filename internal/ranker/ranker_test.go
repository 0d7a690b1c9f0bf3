package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSim(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizeSim(1.0), 1e-9)
	assert.InDelta(t, 0.5, NormalizeSim(0.0), 1e-9)
	assert.InDelta(t, 0.25, NormalizeSim(-0.5), 1e-9)
}

func TestRecency(t *testing.T) {
	assert.InDelta(t, 1.0, Recency(0), 1e-9)
	assert.InDelta(t, math.Exp(-1), Recency(30), 1e-9)
}

func TestComposite_Weights(t *testing.T) {
	got := Composite(1.0, 1.0, 1.0, 1.0)
	assert.InDelta(t, 1.0, got, 1e-9)

	got = Composite(0.5, 0.5, 0.5, 0.5)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestBlendHybrid(t *testing.T) {
	assert.InDelta(t, 0.75, BlendHybrid(1.0, 0.5), 1e-9)
}

func TestBM25Index_RanksExactMatchHigher(t *testing.T) {
	docs := map[int64][]string{
		1: {"deploy", "failed", "today", "anxious"},
		2: {"recipe", "for", "bread", "dough"},
	}
	idx := NewBM25Index(docs)
	query := []string{"deploy", "anxious"}

	s1 := idx.NormalizedScore(1, query)
	s2 := idx.NormalizedScore(2, query)
	assert.Greater(t, s1, s2)
	assert.Equal(t, 0.0, s2)
}

func TestBM25Index_EmptyCorpus(t *testing.T) {
	idx := NewBM25Index(map[int64][]string{})
	assert.Equal(t, 0.0, idx.NormalizedScore(1, []string{"x"}))
}
