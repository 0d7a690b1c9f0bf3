package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openmemory/engine/internal/model"
)

// SQLiteStore is the primary durable backend: a single embedded
// database file with WAL journaling, so readers are never blocked by
// an in-flight writer (§5 "write-ahead logging on the embedded
// backend"). Grounded in shape on the teacher's pkg/memory/postgres_store.go
// (schema-file override, CREATE TABLE IF NOT EXISTS, one query per
// Store method), adapted from pgvector's `<->` operator (no SQLite
// equivalent) to an application-side cosine scan over decoded vector
// blobs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path
// and enables WAL journaling.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// A pool of several connections, not one, is what actually lets WAL
	// mode serve concurrent readers (§5): a single-connection pool would
	// queue every reader behind an in-flight writer regardless of
	// journal mode. busy_timeout absorbs the brief writer-vs-writer lock
	// conflicts WAL still allows instead of surfacing "database is
	// locked" to the caller.
	db.SetMaxOpenConns(8)
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		return nil, fmt.Errorf("sqlite wal pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
		return nil, fmt.Errorf("sqlite busy_timeout pragma: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// CreateSchema provisions the four logical tables of §6.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	primary_sector TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	meta TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	last_seen_at INTEGER NOT NULL,
	salience REAL NOT NULL,
	decay_lambda REAL NOT NULL,
	mean_vec BLOB,
	cold INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);

CREATE TABLE IF NOT EXISTS vectors (
	memory_id INTEGER NOT NULL,
	sector TEXT NOT NULL,
	tier TEXT NOT NULL DEFAULT '',
	dim INTEGER NOT NULL,
	v BLOB NOT NULL,
	PRIMARY KEY (memory_id, sector)
);

CREATE TABLE IF NOT EXISTS waypoints (
	src_id INTEGER PRIMARY KEY,
	dst_id INTEGER NOT NULL,
	weight REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS embed_logs (
	ts INTEGER NOT NULL,
	provider TEXT NOT NULL,
	sector TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	dim INTEGER NOT NULL,
	ok INTEGER NOT NULL
);
`

func (s *SQLiteStore) InsertMemory(ctx context.Context, m *model.Memory, vectors []model.Vector, waypoint *model.Waypoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ErrStoreFailed("begin tx", err)
	}
	defer tx.Rollback()

	tagsBlob := encodeTags(m.Tags)
	metaJSON, err := model.EncodeMeta(m.Meta)
	if err != nil {
		return model.ErrStoreFailed("encode meta", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO memories (user_id, content, primary_sector, tags, meta, created_at, updated_at, last_seen_at, salience, decay_lambda, mean_vec, cold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UserID, m.Content, string(m.PrimarySector), tagsBlob, metaJSON,
		m.CreatedAt.UnixMilli(), m.UpdatedAt.UnixMilli(), m.LastSeenAt.UnixMilli(),
		m.Salience, m.DecayLambda, encodeVec(m.MeanVec), boolToInt(m.Cold),
	)
	if err != nil {
		return model.ErrStoreFailed("insert memory", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.ErrStoreFailed("last insert id", err)
	}
	m.ID = id

	for _, v := range vectors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vectors (memory_id, sector, tier, dim, v) VALUES (?, ?, ?, ?, ?)`,
			id, string(v.Sector), v.Tier, v.Dim, encodeVec(v.V)); err != nil {
			return model.ErrStoreFailed("insert vector", err)
		}
	}

	if waypoint != nil {
		if err := upsertWaypointTx(ctx, tx, id, waypoint.DstID, waypoint.Weight); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return model.ErrStoreFailed("commit", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSalience(ctx context.Context, id int64, newSalience float64, lastSeenAtMillis int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET salience = ?, last_seen_at = ?, updated_at = ? WHERE id = ?`,
		model.Clamp01(newSalience), lastSeenAtMillis, lastSeenAtMillis, id)
	if err != nil {
		return model.ErrStoreFailed("update salience", err)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) ReplaceContent(ctx context.Context, id int64, content string, cold bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET content = ?, cold = ? WHERE id = ?`, content, boolToInt(cold), id)
	if err != nil {
		return model.ErrStoreFailed("replace content", err)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) UpsertWaypoint(ctx context.Context, src, dst int64, weight float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ErrStoreFailed("begin tx", err)
	}
	defer tx.Rollback()
	if err := upsertWaypointTx(ctx, tx, src, dst, weight); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return model.ErrStoreFailed("commit", err)
	}
	return nil
}

// upsertWaypointTx enforces the single-outgoing-edge invariant inside
// an existing transaction: src's current edge is read, and replaced
// only if the new weight is >= the current one.
func upsertWaypointTx(ctx context.Context, tx *sql.Tx, src, dst int64, weight float64) error {
	var current float64
	err := tx.QueryRowContext(ctx, `SELECT weight FROM waypoints WHERE src_id = ?`, src).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		// no existing edge, fall through to insert
	case err != nil:
		return model.ErrStoreFailed("read waypoint", err)
	default:
		if current > weight {
			return nil
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO waypoints (src_id, dst_id, weight) VALUES (?, ?, ?)
		ON CONFLICT(src_id) DO UPDATE SET dst_id = excluded.dst_id, weight = excluded.weight`,
		src, dst, weight); err != nil {
		return model.ErrStoreFailed("upsert waypoint", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteWaypointsBelow(ctx context.Context, threshold float64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM waypoints WHERE weight < ?`, threshold)
	if err != nil {
		return 0, model.ErrStoreFailed("delete waypoints", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, primary_sector, tags, meta, created_at, updated_at, last_seen_at, salience, decay_lambda, mean_vec, cold
		FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound("memory", idStr(id))
	}
	if err != nil {
		return nil, model.ErrStoreFailed("get memory", err)
	}
	return m, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string, filters Filters, cursor string, limit int) (Page, error) {
	if limit <= 0 {
		limit = 20
	}
	var afterID int64
	if cursor != "" {
		if c, ok := parseCursor(cursor); ok {
			afterID = c
		}
	}

	var clauses []string
	var args []any
	clauses = append(clauses, `id > ?`)
	args = append(args, afterID)
	if userID != "" {
		clauses = append(clauses, `user_id = ?`)
		args = append(args, userID)
	}
	if filters.Sector != "" {
		clauses = append(clauses, `primary_sector = ?`)
		args = append(args, string(filters.Sector))
	}
	args = append(args, limit+1)

	query := fmt.Sprintf(`
		SELECT id, user_id, content, primary_sector, tags, meta, created_at, updated_at, last_seen_at, salience, decay_lambda, mean_vec, cold
		FROM memories WHERE %s ORDER BY id ASC LIMIT ?`, strings.Join(clauses, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, model.ErrStoreFailed("list memories", err)
	}
	defer rows.Close()

	var page Page
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return Page{}, model.ErrStoreFailed("scan memory", err)
		}
		if filters.Tag != "" && !model.HasTag(m.Tags, filters.Tag) {
			continue
		}
		page.Memories = append(page.Memories, m)
	}
	if len(page.Memories) > limit {
		page.Memories = page.Memories[:limit]
		page.NextCursor = formatCursor(page.Memories[len(page.Memories)-1].ID)
	}
	return page, rows.Err()
}

func (s *SQLiteStore) CandidatesBySector(ctx context.Context, userID string, sector model.Sector) ([]Candidate, error) {
	query := `
		SELECT v.memory_id, v.v, m.salience, m.last_seen_at
		FROM vectors v JOIN memories m ON m.id = v.memory_id
		WHERE v.sector = ?`
	args := []any{string(sector)}
	if userID != "" {
		query += ` AND m.user_id = ?`
		args = append(args, userID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.ErrStoreFailed("candidates by sector", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var blob []byte
		if err := rows.Scan(&c.MemoryID, &blob, &c.Salience, &c.LastSeenAt); err != nil {
			return nil, model.ErrStoreFailed("scan candidate", err)
		}
		c.Vec = decodeVec(blob)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) OutgoingWaypoint(ctx context.Context, id int64) (*model.Waypoint, bool, error) {
	var wp model.Waypoint
	wp.SrcID = id
	err := s.db.QueryRowContext(ctx, `SELECT dst_id, weight FROM waypoints WHERE src_id = ?`, id).Scan(&wp.DstID, &wp.Weight)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, model.ErrStoreFailed("outgoing waypoint", err)
	}
	return &wp, true, nil
}

func (s *SQLiteStore) AllMemoryIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM memories ORDER BY id ASC`)
	if err != nil {
		return nil, model.ErrStoreFailed("all memory ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, model.ErrStoreFailed("scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ErrStoreFailed("begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return model.ErrStoreFailed("delete memory", err)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE memory_id = ?`, id); err != nil {
		return model.ErrStoreFailed("delete vectors", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM waypoints WHERE src_id = ? OR dst_id = ?`, id, id); err != nil {
		return model.ErrStoreFailed("delete waypoints", err)
	}
	if err := tx.Commit(); err != nil {
		return model.ErrStoreFailed("commit", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{BySector: map[model.Sector]int{}, ByTier: map[model.Tier]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT primary_sector, salience FROM memories`)
	if err != nil {
		return st, model.ErrStoreFailed("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sector string
		var salience float64
		if err := rows.Scan(&sector, &salience); err != nil {
			return st, model.ErrStoreFailed("scan stats", err)
		}
		st.BySector[model.Sector(sector)]++
		st.Total++
		switch {
		case salience >= 0.5:
			st.ByTier[model.TierHot]++
		case salience >= 0.25:
			st.ByTier[model.TierWarm]++
		default:
			st.ByTier[model.TierCold]++
		}
	}
	return st, rows.Err()
}

func (s *SQLiteStore) LogEmbed(ctx context.Context, entry model.EmbedLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embed_logs (ts, provider, sector, input_tokens, dim, ok) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Ts.UnixMilli(), entry.Provider, string(entry.Sector), entry.InputTokens, entry.Dim, boolToInt(entry.OK))
	if err != nil {
		return model.ErrStoreFailed("log embed", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row *sql.Row) (*model.Memory, error) {
	return scanMemoryScanner(row)
}

func scanMemoryRows(rows *sql.Rows) (*model.Memory, error) {
	return scanMemoryScanner(rows)
}

func scanMemoryScanner(sc rowScanner) (*model.Memory, error) {
	var (
		m                                             model.Memory
		sector, tagsBlob, metaJSON                    string
		createdAt, updatedAt, lastSeenAt               int64
		meanVecBlob                                    []byte
		cold                                            int
	)
	if err := sc.Scan(&m.ID, &m.UserID, &m.Content, &sector, &tagsBlob, &metaJSON,
		&createdAt, &updatedAt, &lastSeenAt, &m.Salience, &m.DecayLambda, &meanVecBlob, &cold); err != nil {
		return nil, err
	}
	m.PrimarySector = model.Sector(sector)
	m.Tags = decodeTags(tagsBlob)
	m.Meta = model.DecodeMeta(metaJSON)
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	m.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	m.LastSeenAt = time.UnixMilli(lastSeenAt).UTC()
	m.MeanVec = decodeVec(meanVecBlob)
	m.Cold = cold != 0
	return &m, nil
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return model.ErrStoreFailed("rows affected", err)
	}
	if n == 0 {
		return model.ErrNotFound("memory", idStr(id))
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeVec serializes a float32 slice as little-endian IEEE-754
// floats prefixed by a 4-byte dim, per §6's persisted state layout.
func encodeVec(v []float32) []byte {
	buf := make([]byte, 4+4*len(v))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(v)))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], math.Float32bits(x))
	}
	return buf
}

func decodeVec(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	dim := binary.LittleEndian.Uint32(buf[0:4])
	out := make([]float32, dim)
	for i := range out {
		off := 4 + 4*i
		if off+4 > len(buf) {
			break
		}
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
	}
	return out
}

func encodeTags(tags []string) string {
	return strings.Join(tags, "\x1f")
}

func decodeTags(blob string) []string {
	if blob == "" {
		return nil
	}
	return strings.Split(blob, "\x1f")
}
