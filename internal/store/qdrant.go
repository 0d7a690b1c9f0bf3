package store

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/openmemory/engine/internal/model"
)

// QdrantStore is an optional remote vector backend, on the real gRPC
// client rather than a hand-rolled HTTP one: grounded on
// intelligencedev-manifold's internal/persistence/databases/qdrant_vector.go
// (dsn host/port parsing, ensureCollection, qdrant.NewClient), extended
// from that file's single dense vector per point to one named vector
// per sector. CandidatesBySector reads every point and returns its
// named vector for the sector; similarity is computed by the caller,
// not by a Qdrant search. Waypoints and the memory row's scalar
// fields live in the point payload, the same place the teacher example
// keeps its own point metadata.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	mu         sync.Mutex
}

// NewQdrantStore builds a client against dsn (e.g.
// http://localhost:6334 — the gRPC port, not the 6333 HTTP one) for
// the named collection.
func NewQdrantStore(dsn, collection string) (*QdrantStore, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &QdrantStore{client: client, collection: collection}, nil
}

// sectorVectorDim is the fixed per-sector vector width the collection
// is provisioned with; InsertMemory zero-pads narrower embeddings
// (FAST/HYBRID's 256-dim synthetic vectors) to this width with fitDim.
// The SQLite backend, by contrast, stores each vector at its own dim.
const sectorVectorDim = 1536

func (q *QdrantStore) CreateSchema(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return model.ErrStoreFailed("qdrant collection exists", err)
	}
	if exists {
		return nil
	}
	vectors := make(map[string]*qdrant.VectorParams, len(model.Sectors))
	for _, s := range model.Sectors {
		vectors[string(s)] = &qdrant.VectorParams{
			Size:     uint64(sectorVectorDim),
			Distance: qdrant.Distance_Cosine,
		}
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig:  qdrant.NewVectorsConfigMap(vectors),
	})
	if err != nil {
		return model.ErrStoreFailed("qdrant create collection", err)
	}
	return nil
}

func (q *QdrantStore) InsertMemory(ctx context.Context, m *model.Memory, vectors []model.Vector, waypoint *model.Waypoint) error {
	q.mu.Lock()
	id := q.generateID()
	q.mu.Unlock()
	m.ID = id

	named := make(map[string]*qdrant.Vector, len(vectors))
	for _, v := range vectors {
		named[string(v.Sector)] = qdrant.NewVector(fitDim(v.V, sectorVectorDim)...)
	}

	payload := memoryToPayload(m)
	if waypoint != nil {
		payload["waypoint_dst"] = waypoint.DstID
		payload["waypoint_weight"] = waypoint.Weight
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(id)),
		Vectors: qdrant.NewVectorsMap(named),
		Payload: qdrant.NewValueMap(payload),
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return model.ErrStoreFailed("qdrant upsert point", err)
	}
	return nil
}

func (q *QdrantStore) UpdateSalience(ctx context.Context, id int64, newSalience float64, lastSeenAtMillis int64) error {
	return q.patchPayload(ctx, id, map[string]any{
		"salience":     model.Clamp01(newSalience),
		"last_seen_at": lastSeenAtMillis,
	})
}

func (q *QdrantStore) ReplaceContent(ctx context.Context, id int64, content string, cold bool) error {
	return q.patchPayload(ctx, id, map[string]any{"content": content, "cold": cold})
}

func (q *QdrantStore) UpsertWaypoint(ctx context.Context, src, dst int64, weight float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	point, err := q.getPoint(ctx, src)
	if err != nil {
		return err
	}
	if current, ok := payloadFloat(point.Payload, "waypoint_weight"); ok && current > weight {
		return nil
	}
	return q.patchPayload(ctx, src, map[string]any{"waypoint_dst": dst, "waypoint_weight": weight})
}

func (q *QdrantStore) DeleteWaypointsBelow(ctx context.Context, threshold float64) (int, error) {
	ids, err := q.AllMemoryIDs(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		p, err := q.getPoint(ctx, id)
		if err != nil {
			continue
		}
		w, ok := payloadFloat(p.Payload, "waypoint_weight")
		if !ok || w >= threshold {
			continue
		}
		_, err = q.client.DeletePayload(ctx, &qdrant.DeletePayloadPoints{
			CollectionName: q.collection,
			Keys:           []string{"waypoint_dst", "waypoint_weight"},
			PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(id))),
		})
		if err == nil {
			removed++
		}
	}
	return removed, nil
}

func (q *QdrantStore) Get(ctx context.Context, id int64) (*model.Memory, error) {
	p, err := q.getPoint(ctx, id)
	if err != nil {
		return nil, err
	}
	return payloadToMemory(id, p.Payload), nil
}

func (q *QdrantStore) List(ctx context.Context, userID string, filters Filters, cursor string, limit int) (Page, error) {
	ids, err := q.AllMemoryIDs(ctx)
	if err != nil {
		return Page{}, err
	}
	var page Page
	for _, id := range ids {
		m, err := q.Get(ctx, id)
		if err != nil {
			continue
		}
		if userID != "" && m.UserID != userID {
			continue
		}
		if filters.Sector != "" && m.PrimarySector != filters.Sector {
			continue
		}
		if filters.Tag != "" && !model.HasTag(m.Tags, filters.Tag) {
			continue
		}
		page.Memories = append(page.Memories, m)
		if limit > 0 && len(page.Memories) >= limit {
			break
		}
	}
	return page, nil
}

func (q *QdrantStore) CandidatesBySector(ctx context.Context, userID string, sector model.Sector) ([]Candidate, error) {
	ids, err := q.AllMemoryIDs(ctx)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, id := range ids {
		p, err := q.getPoint(ctx, id)
		if err != nil {
			continue
		}
		if userID != "" {
			if uid, _ := payloadString(p.Payload, "user_id"); uid != userID {
				continue
			}
		}
		vec, ok := p.Vectors.GetVectors().GetVectors()[string(sector)]
		if !ok {
			continue
		}
		salience, _ := payloadFloat(p.Payload, "salience")
		lastSeen, _ := payloadFloat(p.Payload, "last_seen_at")
		out = append(out, Candidate{MemoryID: id, Vec: vec.GetData(), Salience: salience, LastSeenAt: int64(lastSeen)})
	}
	return out, nil
}

func (q *QdrantStore) OutgoingWaypoint(ctx context.Context, id int64) (*model.Waypoint, bool, error) {
	p, err := q.getPoint(ctx, id)
	if err != nil {
		return nil, false, err
	}
	dst, ok := payloadFloat(p.Payload, "waypoint_dst")
	if !ok {
		return nil, false, nil
	}
	weight, _ := payloadFloat(p.Payload, "waypoint_weight")
	return &model.Waypoint{SrcID: id, DstID: int64(dst), Weight: weight}, true, nil
}

func (q *QdrantStore) AllMemoryIDs(ctx context.Context) ([]int64, error) {
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Limit:          qdrant.PtrOf(uint32(10000)),
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, model.ErrStoreFailed("qdrant scroll", err)
	}
	ids := make([]int64, 0, len(points))
	for _, p := range points {
		ids = append(ids, int64(p.GetId().GetNum()))
	}
	return ids, nil
}

func (q *QdrantStore) Delete(ctx context.Context, id int64) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(id))),
	})
	if err != nil {
		return model.ErrStoreFailed("qdrant delete", err)
	}
	return nil
}

func (q *QdrantStore) Stats(ctx context.Context) (Stats, error) {
	ids, err := q.AllMemoryIDs(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{BySector: map[model.Sector]int{}, ByTier: map[model.Tier]int{}}
	for _, id := range ids {
		m, err := q.Get(ctx, id)
		if err != nil {
			continue
		}
		st.BySector[m.PrimarySector]++
		st.ByTier[m.Tier()]++
		st.Total++
	}
	return st, nil
}

func (q *QdrantStore) LogEmbed(context.Context, model.EmbedLog) error {
	// Qdrant has no side-table facility worth round-tripping for an
	// observability log; embed logs are best-effort on this backend.
	return nil
}

func (q *QdrantStore) Close() error {
	return q.client.Close()
}

func (q *QdrantStore) patchPayload(ctx context.Context, id int64, fields map[string]any) error {
	_, err := q.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: q.collection,
		Payload:        qdrant.NewValueMap(fields),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(id))),
	})
	if err != nil {
		return model.ErrStoreFailed("qdrant patch payload", err)
	}
	return nil
}

func (q *QdrantStore) getPoint(ctx context.Context, id int64) (*qdrant.RetrievedPoint, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(id))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil || len(points) == 0 {
		return nil, model.ErrNotFound("memory", idStr(id))
	}
	return points[0], nil
}

func (q *QdrantStore) generateID() int64 {
	id := time.Now().UnixNano() ^ rand.Int63()
	if id < 0 {
		id = -id
	}
	return id
}

func memoryToPayload(m *model.Memory) map[string]any {
	return map[string]any{
		"user_id":        m.UserID,
		"content":        m.Content,
		"primary_sector": string(m.PrimarySector),
		"tags":           m.Tags,
		"meta":           m.Meta,
		"created_at":     m.CreatedAt.UnixMilli(),
		"updated_at":     m.UpdatedAt.UnixMilli(),
		"last_seen_at":   m.LastSeenAt.UnixMilli(),
		"salience":       m.Salience,
		"decay_lambda":   m.DecayLambda,
		"cold":           m.Cold,
	}
}

func payloadToMemory(id int64, p map[string]*qdrant.Value) *model.Memory {
	m := &model.Memory{ID: id}
	m.UserID, _ = payloadString(p, "user_id")
	m.Content, _ = payloadString(p, "content")
	if s, ok := payloadString(p, "primary_sector"); ok {
		m.PrimarySector = model.Sector(s)
	}
	if v, ok := p["tags"]; ok {
		for _, t := range v.GetListValue().GetValues() {
			m.Tags = append(m.Tags, t.GetStringValue())
		}
	}
	m.Meta = map[string]any{}
	if v, ok := p["meta"]; ok {
		for k, fv := range v.GetStructValue().GetFields() {
			m.Meta[k] = valueToAny(fv)
		}
	}
	if v, ok := payloadFloat(p, "created_at"); ok {
		m.CreatedAt = time.UnixMilli(int64(v)).UTC()
	}
	if v, ok := payloadFloat(p, "updated_at"); ok {
		m.UpdatedAt = time.UnixMilli(int64(v)).UTC()
	}
	if v, ok := payloadFloat(p, "last_seen_at"); ok {
		m.LastSeenAt = time.UnixMilli(int64(v)).UTC()
	}
	if v, ok := payloadFloat(p, "salience"); ok {
		m.Salience = v
	}
	if v, ok := payloadFloat(p, "decay_lambda"); ok {
		m.DecayLambda = v
	}
	if v, ok := p["cold"]; ok {
		m.Cold = v.GetBoolValue()
	}
	return m
}

// payloadString/payloadFloat read back the qdrant.Value wire shape
// (a oneof over string/double/integer/bool/list/struct, mirroring
// google.protobuf.Value) written by NewValueMap.
func payloadString(p map[string]*qdrant.Value, key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	return v.GetStringValue(), true
}

func payloadFloat(p map[string]*qdrant.Value, key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	if v.GetIntegerValue() != 0 {
		return float64(v.GetIntegerValue()), true
	}
	return v.GetDoubleValue(), true
}

func valueToAny(v *qdrant.Value) any {
	switch {
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetBoolValue():
		return true
	default:
		return v.GetDoubleValue()
	}
}
