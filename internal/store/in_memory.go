package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openmemory/engine/internal/model"
)

// InMemoryStore is a process-local Store used by tests and selected
// with store_backend=memory; the default backend is SQLite. Grounded on
// the teacher's pkg/memory/in_memory_store.go.
type InMemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	memories   map[int64]*model.Memory
	vectors    map[int64]map[model.Sector]model.Vector
	waypoints  map[int64]model.Waypoint // keyed by SrcID; single-outgoing-edge invariant
	embedLogs  []model.EmbedLog
	decayLast  int64
}

// NewInMemoryStore builds an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memories:  make(map[int64]*model.Memory),
		vectors:   make(map[int64]map[model.Sector]model.Vector),
		waypoints: make(map[int64]model.Waypoint),
	}
}

func (s *InMemoryStore) InsertMemory(_ context.Context, m *model.Memory, vectors []model.Vector, waypoint *model.Waypoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m.ID = s.nextID

	cp := *m
	s.memories[m.ID] = &cp

	vs := make(map[model.Sector]model.Vector, len(vectors))
	for _, v := range vectors {
		v.MemoryID = m.ID
		vs[v.Sector] = v
	}
	s.vectors[m.ID] = vs

	if waypoint != nil {
		s.upsertWaypointLocked(m.ID, waypoint.DstID, waypoint.Weight)
	}
	return nil
}

func (s *InMemoryStore) UpdateSalience(_ context.Context, id int64, newSalience float64, lastSeenAtMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return model.ErrNotFound("memory", idStr(id))
	}
	m.Salience = model.Clamp01(newSalience)
	m.LastSeenAt = time.UnixMilli(lastSeenAtMillis).UTC()
	m.UpdatedAt = m.LastSeenAt
	return nil
}

func (s *InMemoryStore) ReplaceContent(_ context.Context, id int64, content string, cold bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return model.ErrNotFound("memory", idStr(id))
	}
	m.Content = content
	m.Cold = cold
	return nil
}

func (s *InMemoryStore) UpsertWaypoint(_ context.Context, src, dst int64, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertWaypointLocked(src, dst, weight)
	return nil
}

// upsertWaypointLocked enforces the single-outgoing-edge invariant:
// src's prior edge is replaced only if the new weight is >= the
// current one (§5: "strictly higher weights preferred ... weight >=
// current check before replacement").
func (s *InMemoryStore) upsertWaypointLocked(src, dst int64, weight float64) {
	if cur, ok := s.waypoints[src]; ok && cur.Weight > weight {
		return
	}
	s.waypoints[src] = model.Waypoint{SrcID: src, DstID: dst, Weight: weight}
}

func (s *InMemoryStore) DeleteWaypointsBelow(_ context.Context, threshold float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for src, wp := range s.waypoints {
		if wp.Weight < threshold {
			delete(s.waypoints, src)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) Get(_ context.Context, id int64) (*model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, model.ErrNotFound("memory", idStr(id))
	}
	cp := *m
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context, userID string, filters Filters, cursor string, limit int) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, m := range s.memories {
		if userID != "" && m.UserID != userID {
			continue
		}
		if filters.Sector != "" && m.PrimarySector != filters.Sector {
			continue
		}
		if filters.Tag != "" && !model.HasTag(m.Tags, filters.Tag) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := 0
	if cursor != "" {
		if c, ok := parseCursor(cursor); ok {
			for i, id := range ids {
				if id > c {
					start = i
					break
				}
				start = i + 1
			}
		}
	}
	if limit <= 0 {
		limit = 20
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	if start > len(ids) {
		start = len(ids)
	}

	page := Page{}
	for _, id := range ids[start:end] {
		cp := *s.memories[id]
		page.Memories = append(page.Memories, &cp)
	}
	if end < len(ids) {
		page.NextCursor = formatCursor(ids[end-1])
	}
	return page, nil
}

func (s *InMemoryStore) CandidatesBySector(_ context.Context, userID string, sector model.Sector) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Candidate
	for id, m := range s.memories {
		if userID != "" && m.UserID != userID {
			continue
		}
		vs, ok := s.vectors[id]
		if !ok {
			continue
		}
		v, ok := vs[sector]
		if !ok {
			continue
		}
		out = append(out, Candidate{
			MemoryID:   id,
			Vec:        v.V,
			Salience:   m.Salience,
			LastSeenAt: m.LastSeenAt.UnixMilli(),
		})
	}
	return out, nil
}

func (s *InMemoryStore) OutgoingWaypoint(_ context.Context, id int64) (*model.Waypoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wp, ok := s.waypoints[id]
	if !ok {
		return nil, false, nil
	}
	cp := wp
	return &cp, true, nil
}

func (s *InMemoryStore) AllMemoryIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.memories))
	for id := range s.memories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[id]; !ok {
		return model.ErrNotFound("memory", idStr(id))
	}
	delete(s.memories, id)
	delete(s.vectors, id)
	delete(s.waypoints, id)
	for src, wp := range s.waypoints {
		if wp.DstID == id {
			delete(s.waypoints, src)
		}
	}
	return nil
}

func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		BySector:     make(map[model.Sector]int),
		ByTier:       make(map[model.Tier]int),
		DecayLastRun: s.decayLast,
	}
	for _, m := range s.memories {
		st.BySector[m.PrimarySector]++
		st.ByTier[m.Tier()]++
		st.Total++
	}
	return st, nil
}

func (s *InMemoryStore) LogEmbed(_ context.Context, entry model.EmbedLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedLogs = append(s.embedLogs, entry)
	return nil
}

// EmbedLogs returns a copy of every recorded embed log entry, for
// tests that assert on observability behavior.
func (s *InMemoryStore) EmbedLogs() []model.EmbedLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.EmbedLog, len(s.embedLogs))
	copy(out, s.embedLogs)
	return out
}

// MarkDecayRun records the wall-clock time of a decay cycle for Stats.
func (s *InMemoryStore) MarkDecayRun(ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decayLast = ts.UnixMilli()
}

func (s *InMemoryStore) Close() error { return nil }
