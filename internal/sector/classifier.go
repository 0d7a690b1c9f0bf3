package sector

import (
	"strings"

	"github.com/openmemory/engine/internal/model"
)

// candidateThreshold is the confidence floor for inclusion in
// candidate_sectors, per §4.1 step 4.
const candidateThreshold = 0.2

// Result is the outcome of classifying one piece of text.
type Result struct {
	PrimarySector model.Sector
	Candidates    []model.Sector
	Confidences   map[model.Sector]float64
}

// Classifier tags text with a primary sector and candidate sectors.
// It is deterministic and holds no mutable state beyond its pattern
// table, so a *Classifier is safe for concurrent use.
type Classifier struct {
	patterns map[model.Sector][]string
}

// New builds a Classifier using the default pattern table.
func New() *Classifier {
	return &Classifier{patterns: ClonePatterns()}
}

// LoadPatterns builds a Classifier from a caller-supplied pattern
// table, letting the pattern set be reloaded without a data migration
// (§4.1).
func LoadPatterns(patterns map[model.Sector][]string) *Classifier {
	cp := make(map[model.Sector][]string, len(patterns))
	for s, pats := range patterns {
		dup := make([]string, len(pats))
		copy(dup, pats)
		cp[s] = dup
	}
	return &Classifier{patterns: cp}
}

// Classify implements §4.1 steps 1-4 exactly: count matches per
// sector, derive confidence, pick the argmax (ties broken by sector
// order) as primary, and collect every sector at or above the
// candidate threshold plus the primary sector.
func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(text)

	confidences := make(map[model.Sector]float64, len(model.Sectors))
	var bestSector model.Sector
	bestConfidence := -1.0

	for _, s := range model.Sectors {
		matches := countMatches(lower, c.patterns[s])
		confidence := float64(matches) / float64(matches+1)
		confidences[s] = confidence
		if confidence > bestConfidence {
			bestConfidence = confidence
			bestSector = s
		}
	}

	if bestConfidence <= 0 {
		bestSector = model.SectorSemantic
		confidences[model.SectorSemantic] = 0
	}

	candidates := make([]model.Sector, 0, len(model.Sectors))
	seen := make(map[model.Sector]bool, len(model.Sectors))
	for _, s := range model.Sectors {
		if confidences[s] >= candidateThreshold {
			candidates = append(candidates, s)
			seen[s] = true
		}
	}
	if !seen[bestSector] {
		candidates = append(candidates, bestSector)
	}

	return Result{
		PrimarySector: bestSector,
		Candidates:    candidates,
		Confidences:   confidences,
	}
}

func countMatches(lowerText string, patterns []string) int {
	count := 0
	for _, p := range patterns {
		count += strings.Count(lowerText, p)
	}
	return count
}
