package embed

import (
	"context"

	"github.com/openmemory/engine/internal/model"
)

// Tier controls embedding dimensionality and provider usage, per §4.2.
type Tier string

const (
	TierHybrid Tier = "HYBRID"
	TierFast   Tier = "FAST"
	TierSmart  Tier = "SMART"
	TierDeep   Tier = "DEEP"
)

// Mode controls provider call batching, per §4.2.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeAdvanced Mode = "advanced"
)

// syntheticDim is the dimensionality of every synthetic (hash-seeded)
// embedding, regardless of tier.
const syntheticDim = 256

// semanticClassSectors are the sectors SMART promotes to the external
// provider; everything else stays synthetic under SMART.
var semanticClassSectors = map[model.Sector]bool{
	model.SectorSemantic:   true,
	model.SectorReflective: true,
}

// Provider produces a single vector for one (text, sector) pair at a
// given dimensionality. Each of internal/embed's concrete providers
// (openai, gemini, ollama/local, aws, synthetic) implements this.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string, sector model.Sector, dim int) ([]float32, error)
}

// DimFor returns the dimensionality a (tier, sector) pair must produce,
// per §4.2's tier table.
func DimFor(tier Tier, sector model.Sector) int {
	switch tier {
	case TierHybrid, TierFast:
		return syntheticDim
	case TierSmart:
		if semanticClassSectors[sector] {
			return 384
		}
		return syntheticDim
	case TierDeep:
		return 1536
	default:
		return syntheticDim
	}
}

// UsesProvider reports whether (tier, sector) is routed to the
// external provider rather than the synthetic embedder.
func UsesProvider(tier Tier, sector model.Sector) bool {
	switch tier {
	case TierHybrid, TierFast:
		return false
	case TierSmart:
		return semanticClassSectors[sector]
	case TierDeep:
		return true
	default:
		return false
	}
}
