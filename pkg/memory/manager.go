package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/hearthd/hearth/internal/observability"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// ErrRecordNotFound is returned when a record id does not exist or
// belongs to a different user.
var ErrRecordNotFound = errors.New("memory record not found")

// EmbeddingProvider generates text embeddings for semantic search.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Record is one stored memory fact.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Score     float64   `json:"score,omitempty"`
}

// Config holds memory manager configuration.
type Config struct {
	DBPath string
	Logger zerolog.Logger
	// Optional. Without a provider, retrieval degrades to keyword-only.
	EmbeddingProvider EmbeddingProvider
}

// Manager stores and retrieves memory records.
type Manager struct {
	db                *sql.DB
	dbPath            string
	logger            zerolog.Logger
	embeddingProvider EmbeddingProvider
	mu                sync.Mutex
}

// NewManager opens (or creates) the memory database at cfg.DBPath.
func NewManager(cfg Config) (*Manager, error) {
	observability.EnsureRegistered()

	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create memory storage directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_fts5=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	m := &Manager{
		db:                db,
		dbPath:            cfg.DBPath,
		logger:            cfg.Logger,
		embeddingProvider: cfg.EmbeddingProvider,
	}

	if err := m.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if total, err := m.totalRecords(); err == nil {
		observability.SetMemoryRecords(total)
	}

	m.logger.Info().Str("db_path", cfg.DBPath).Msg("Memory manager initialized")
	return m, nil
}

func (m *Manager) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_records_user ON records(user_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			record_id UNINDEXED,
			user_id UNINDEXED,
			content,
			tokenize='porter unicode61'
		);
	`
	if _, err := m.db.Exec(schema); err != nil {
		return err
	}

	if m.embeddingProvider != nil {
		vectorSchema := fmt.Sprintf(`
			CREATE VIRTUAL TABLE IF NOT EXISTS record_embeddings USING vec0(
				record_id TEXT PRIMARY KEY,
				embedding float[%d] distance_metric=cosine
			);
		`, m.embeddingProvider.Dimension())
		if _, err := m.db.Exec(vectorSchema); err != nil {
			return fmt.Errorf("failed to create vector table: %w", err)
		}
	}
	return nil
}

// DBPath returns the backing database path.
func (m *Manager) DBPath() string {
	return m.dbPath
}

// SemanticSearchAvailable reports whether an embedding provider is wired.
func (m *Manager) SemanticSearchAvailable() bool {
	return m.embeddingProvider != nil
}

// Store persists a new memory record for the user. Embedding failures
// degrade the record to keyword-only retrieval; the fact is never lost
// to an embedding outage.
func (m *Manager) Store(ctx context.Context, userID, content string) (*Record, error) {
	start := time.Now()
	record, err := m.store(ctx, userID, content)
	observability.RecordMemoryOp("store", time.Since(start), err == nil)
	return record, err
}

func (m *Manager) store(ctx context.Context, userID, content string) (*Record, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("content is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record := &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO records (id, user_id, content, created_at) VALUES (?, ?, ?, ?)",
		record.ID, record.UserID, record.Content, record.CreatedAt.Unix(),
	); err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO records_fts (record_id, user_id, content) VALUES (?, ?, ?)",
		record.ID, record.UserID, record.Content,
	); err != nil {
		return nil, fmt.Errorf("failed to index record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit record: %w", err)
	}

	if m.embeddingProvider != nil {
		if err := m.embedRecord(ctx, record.ID, record.Content); err != nil {
			m.logger.Warn().Err(err).Str("record_id", record.ID).
				Msg("Embedding failed, record is keyword-searchable only")
		}
	}

	if total, err := m.totalRecords(); err == nil {
		observability.SetMemoryRecords(total)
	}

	m.logger.Debug().Str("user_id", userID).Str("record_id", record.ID).Msg("Memory record stored")
	return record, nil
}

func (m *Manager) embedRecord(ctx context.Context, recordID, content string) error {
	embedding, err := m.embeddingProvider.GenerateEmbedding(ctx, content)
	if err != nil {
		return err
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	if _, err := m.db.ExecContext(ctx,
		"INSERT INTO record_embeddings (record_id, embedding) VALUES (?, ?)",
		recordID, string(embeddingJSON),
	); err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

// Retrieve returns the user's records most relevant to query, hybrid
// merged from semantic and keyword search. Either leg failing degrades
// to the other; both failing is an error.
func (m *Manager) Retrieve(ctx context.Context, userID, query string, limit int) ([]Record, error) {
	start := time.Now()
	records, err := m.retrieve(ctx, userID, query, limit)
	observability.RecordMemoryOp("retrieve", time.Since(start), err == nil)
	return records, err
}

func (m *Manager) retrieve(ctx context.Context, userID, query string, limit int) ([]Record, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if strings.TrimSpace(query) == "" {
		return []Record{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var vectorScores map[string]float64
	var vectorErr error
	if m.embeddingProvider != nil {
		vectorScores, vectorErr = m.vectorSearch(ctx, userID, query, limit*4)
		if vectorErr != nil {
			m.logger.Warn().Err(vectorErr).Msg("Vector search failed, using keyword only")
		}
	}

	keywordScores, keywordErr := m.keywordSearch(ctx, userID, query, limit*4)
	if keywordErr != nil {
		m.logger.Warn().Err(keywordErr).Msg("Keyword search failed, using vector only")
	}

	if vectorErr != nil && keywordErr != nil {
		return nil, fmt.Errorf("both search methods failed")
	}
	if m.embeddingProvider == nil && keywordErr != nil {
		return nil, keywordErr
	}

	merged := mergeScores(vectorScores, keywordScores)
	if len(merged) == 0 {
		return []Record{}, nil
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].score > merged[j].score })
	if len(merged) > limit {
		merged = merged[:limit]
	}

	records := make([]Record, 0, len(merged))
	for _, hit := range merged {
		record, err := m.getRecord(ctx, hit.recordID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		record.Score = hit.score
		records = append(records, *record)
	}
	return records, nil
}

type scoredHit struct {
	recordID string
	score    float64
}

func (m *Manager) vectorSearch(ctx context.Context, userID, query string, limit int) (map[string]float64, error) {
	embedding, err := m.embeddingProvider.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT e.record_id, vec_distance_cosine(e.embedding, ?) AS distance
		FROM record_embeddings e
		JOIN records r ON r.id = e.record_id
		WHERE r.user_id = ?
		ORDER BY distance ASC
		LIMIT ?
	`, string(embeddingJSON), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var recordID string
		var distance float64
		if err := rows.Scan(&recordID, &distance); err != nil {
			return nil, err
		}
		// cosine distance [0, 2] -> similarity [-1, 1]
		scores[recordID] = 1.0 - distance
	}
	return scores, rows.Err()
}

func (m *Manager) keywordSearch(ctx context.Context, userID, query string, limit int) (map[string]float64, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT record_id, bm25(records_fts) AS score
		FROM records_fts
		WHERE records_fts MATCH ? AND user_id = ?
		ORDER BY score
		LIMIT ?
	`, ftsQuery(query), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var recordID string
		var score float64
		if err := rows.Scan(&recordID, &score); err != nil {
			return nil, err
		}
		// BM25 scores are negative, convert to positive
		scores[recordID] = -score
	}
	return scores, rows.Err()
}

// ftsQuery quotes each term so user text with FTS5 operators cannot
// break the MATCH expression.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// mergeScores normalizes each leg to [0, 1] and combines them weighted.
func mergeScores(vectorScores, keywordScores map[string]float64) []scoredHit {
	var maxVector, maxKeyword float64
	for _, s := range vectorScores {
		if s > maxVector {
			maxVector = s
		}
	}
	for _, s := range keywordScores {
		if s > maxKeyword {
			maxKeyword = s
		}
	}

	combined := make(map[string]float64)
	for recordID, s := range vectorScores {
		if maxVector > 0 {
			combined[recordID] += vectorWeight * (s / maxVector)
		}
	}
	for recordID, s := range keywordScores {
		if maxKeyword > 0 {
			combined[recordID] += keywordWeight * (s / maxKeyword)
		}
	}

	hits := make([]scoredHit, 0, len(combined))
	for recordID, score := range combined {
		hits = append(hits, scoredHit{recordID: recordID, score: score})
	}
	return hits
}

func (m *Manager) getRecord(ctx context.Context, recordID string) (*Record, error) {
	var record Record
	var createdAt int64
	err := m.db.QueryRowContext(ctx,
		"SELECT id, user_id, content, created_at FROM records WHERE id = ?", recordID,
	).Scan(&record.ID, &record.UserID, &record.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &record, nil
}

// List returns all of the user's records, newest first.
func (m *Manager) List(ctx context.Context, userID string) ([]Record, error) {
	start := time.Now()
	records, err := m.list(ctx, userID)
	observability.RecordMemoryOp("list", time.Since(start), err == nil)
	return records, err
}

func (m *Manager) list(ctx context.Context, userID string) ([]Record, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	rows, err := m.db.QueryContext(ctx,
		"SELECT id, user_id, content, created_at FROM records WHERE user_id = ? ORDER BY created_at DESC, id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var record Record
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.UserID, &record.Content, &createdAt); err != nil {
			return nil, err
		}
		record.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}

// Delete removes one of the user's records. Deleting another user's
// record (or a missing id) returns ErrRecordNotFound.
func (m *Manager) Delete(ctx context.Context, userID, recordID string) error {
	start := time.Now()
	err := m.delete(ctx, userID, recordID)
	observability.RecordMemoryOp("delete", time.Since(start), err == nil)
	return err
}

func (m *Manager) delete(ctx context.Context, userID, recordID string) error {
	if userID == "" || recordID == "" {
		return errors.New("user id and record id are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"DELETE FROM records WHERE id = ? AND user_id = ?", recordID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM records_fts WHERE record_id = ?", recordID); err != nil {
		return fmt.Errorf("failed to delete record index: %w", err)
	}
	if m.embeddingProvider != nil {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM record_embeddings WHERE record_id = ?", recordID); err != nil {
			return fmt.Errorf("failed to delete record embedding: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	if total, err := m.totalRecords(); err == nil {
		observability.SetMemoryRecords(total)
	}

	m.logger.Debug().Str("user_id", userID).Str("record_id", recordID).Msg("Memory record deleted")
	return nil
}

func (m *Manager) totalRecords() (int, error) {
	var total int
	err := m.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&total)
	return total, err
}

// Count returns the number of records stored for the user.
func (m *Manager) Count(ctx context.Context, userID string) (int, error) {
	var total int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE user_id = ?", userID).Scan(&total)
	return total, err
}

// Close releases the database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}
