package model

import "time"

// Memory is the engine's core persisted unit: a piece of text tagged
// with a cognitive sector, a salience score, and a centroid vector used
// for waypoint matching.
type Memory struct {
	ID            int64
	UserID        string
	Content       string
	PrimarySector Sector
	Tags          []string
	Meta          map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastSeenAt    time.Time
	Salience      float64
	DecayLambda   float64
	MeanVec       []float32
	Cold          bool
}

// NewMemory builds a Memory with the defaults §3 and §4.4 require:
// salience starts at 0.5, decay_lambda is derived from the primary
// sector, and last_seen_at equals created_at.
func NewMemory(userID, content string, primary Sector, tags []string, meta map[string]any, now time.Time) *Memory {
	if meta == nil {
		meta = map[string]any{}
	}
	return &Memory{
		UserID:        userID,
		Content:       content,
		PrimarySector: primary,
		Tags:          tags,
		Meta:          meta,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastSeenAt:    now,
		Salience:      0.5,
		DecayLambda:   primary.DecayLambda(),
	}
}

// Tier buckets a memory by its current salience, per §4.6 step 3.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

func (m *Memory) Tier() Tier {
	switch {
	case m.Salience >= 0.5:
		return TierHot
	case m.Salience >= 0.25:
		return TierWarm
	default:
		return TierCold
	}
}

// Clamp01 clamps x into [0, 1]; used for salience everywhere it is
// mutated (reinforcement, decay).
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
