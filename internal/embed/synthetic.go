package embed

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/openmemory/engine/internal/model"
)

// SyntheticProvider implements the deterministic hashed embedding
// contract of §4.2: a stable 64-bit hash of (sector || "|" || text)
// seeds a PRNG that fills dim floats in [-1,1]; the result is
// L2-normalized. Identical (text, sector) always yields an identical
// vector.
type SyntheticProvider struct{}

func (SyntheticProvider) Name() string { return "synthetic" }

func (SyntheticProvider) Embed(_ context.Context, text string, sector model.Sector, dim int) ([]float32, error) {
	return HashEmbed(text, sector, dim), nil
}

// HashEmbed is the synthetic embedding algorithm itself, exposed
// standalone so the Coordinator and tests can call it without
// constructing a Provider.
func HashEmbed(text string, sector model.Sector, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(sector)))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	rng := rand.New(rand.NewSource(int64(seed)))
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.Float64()*2 - 1)
	}
	return model.NormalizeL2(v)
}
