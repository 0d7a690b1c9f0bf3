package sector

import (
	"testing"

	"github.com/openmemory/engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_DeployAnxiety(t *testing.T) {
	c := New()
	res := c.Classify("today I felt anxious about the deploy")

	require.Equal(t, model.SectorEmotional, res.PrimarySector)
	assert.Contains(t, res.Candidates, model.SectorEmotional)
	assert.Contains(t, res.Candidates, model.SectorEpisodic)
	assert.Equal(t, 0.0, res.Confidences[model.SectorSemantic])
}

func TestClassify_NoMatchDefaultsToSemantic(t *testing.T) {
	c := New()
	res := c.Classify("zzz qqq xyzzy")

	assert.Equal(t, model.SectorSemantic, res.PrimarySector)
	assert.Equal(t, 0.0, res.Confidences[model.SectorSemantic])
}

func TestClassify_Idempotent(t *testing.T) {
	c := New()
	text := "how to configure the deploy pipeline, step 1: install the agent"
	first := c.Classify(text)
	second := c.Classify(text)

	assert.Equal(t, first.PrimarySector, second.PrimarySector)
	assert.Equal(t, first.Confidences, second.Confidences)
	assert.ElementsMatch(t, first.Candidates, second.Candidates)
}

func TestClassify_TieBreakOrder(t *testing.T) {
	// No sector has any pattern matches, so every confidence is 0 and
	// the argmax tie-break must land on semantic, the first in
	// model.Sectors order.
	c := LoadPatterns(map[model.Sector][]string{})
	res := c.Classify("anything at all")
	assert.Equal(t, model.SectorSemantic, res.PrimarySector)
}
