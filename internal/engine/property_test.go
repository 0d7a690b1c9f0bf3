package engine

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/openmemory/engine/internal/model"
)

func TestProperty_SalienceStaysInUnitInterval(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("reinforcing a memory any number of times never pushes salience outside [0,1]", prop.ForAll(
		func(content string, reinforceCount int) bool {
			ctx := context.Background()
			e, _ := newTestEngine(t, nil)

			added, err := e.Add(ctx, content, "u1", nil, nil)
			if err != nil {
				t.Logf("add failed: %v", err)
				return false
			}

			for i := 0; i < reinforceCount; i++ {
				if _, err := e.Reinforce(ctx, added.MemoryID, nil); err != nil {
					t.Logf("reinforce failed: %v", err)
					return false
				}
			}

			mem, err := e.Get(ctx, added.MemoryID)
			if err != nil {
				t.Logf("get failed: %v", err)
				return false
			}
			return mem.Salience >= 0 && mem.Salience <= 1
		},
		gen.Identifier(),
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}

func TestProperty_ReinforceNeverDecreasesSalience(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("a single reinforcement never decreases salience", prop.ForAll(
		func(content string) bool {
			ctx := context.Background()
			e, _ := newTestEngine(t, nil)

			added, err := e.Add(ctx, content, "u1", nil, nil)
			if err != nil {
				t.Logf("add failed: %v", err)
				return false
			}
			before, err := e.Get(ctx, added.MemoryID)
			if err != nil {
				return false
			}
			if _, err := e.Reinforce(ctx, added.MemoryID, nil); err != nil {
				t.Logf("reinforce failed: %v", err)
				return false
			}
			after, err := e.Get(ctx, added.MemoryID)
			if err != nil {
				return false
			}
			return after.Salience >= before.Salience
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestProperty_MeanVecIsUnitLengthWhenPresent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("mean_vec is L2-normalized for any non-empty content", prop.ForAll(
		func(content string) bool {
			ctx := context.Background()
			e, s := newTestEngine(t, nil)

			added, err := e.Add(ctx, content, "u1", nil, nil)
			if err != nil {
				t.Logf("add failed: %v", err)
				return false
			}
			mem, err := s.Get(ctx, added.MemoryID)
			if err != nil {
				return false
			}
			if len(mem.MeanVec) == 0 {
				return false
			}
			norm := model.Norm(mem.MeanVec)
			return norm > 0.999 && norm < 1.001
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestProperty_AtMostOneOutgoingWaypointPerMemory(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("a memory never accumulates more than one outgoing waypoint edge", prop.ForAll(
		func(content string, repeats int) bool {
			ctx := context.Background()
			e, s := newTestEngine(t, nil)

			var lastID int64
			for i := 0; i < repeats; i++ {
				res, err := e.Add(ctx, content, "u1", nil, nil)
				if err != nil {
					t.Logf("add failed: %v", err)
					return false
				}
				lastID = res.MemoryID
			}
			if lastID == 0 {
				return true
			}
			_, found1, err := s.OutgoingWaypoint(ctx, lastID)
			if err != nil {
				return false
			}
			// A second lookup must agree: the store holds at most one
			// outgoing edge per source, never a growing set.
			_, found2, err := s.OutgoingWaypoint(ctx, lastID)
			if err != nil {
				return false
			}
			return found1 == found2
		},
		gen.Identifier(),
		gen.IntRange(2, 6),
	))

	properties.TestingRun(t)
}
