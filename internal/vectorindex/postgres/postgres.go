// Package postgres stores indexes as PostgreSQL tables with a pgvector
// embedding column. Each index name maps to one table.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"mini-rag/internal/models"
	"mini-rag/internal/vectorindex"
)

var (
	_ vectorindex.Admin = (*DB)(nil)
	_ vectorindex.Index = (*Table)(nil)
)

// DefaultTablePrefix keeps index tables apart from other tables in the schema.
const DefaultTablePrefix = "vectors_"

// DB represents the database connection
type DB struct {
	Pool   *pgxpool.Pool
	Prefix string
}

// NewDB creates a new database connection. The vector extension is created
// first so the pgvector codecs can be registered on every pooled connection.
func NewDB(ctx context.Context, connStr string) (*DB, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool, Prefix: DefaultTablePrefix}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}

func (db *DB) table(name string) string {
	return pgx.Identifier{db.Prefix + name}.Sanitize()
}

// ops returns the operator class for the HNSW index and the distance
// operator used in ORDER BY.
func ops(metric vectorindex.Metric) (opclass, operator string, err error) {
	switch metric {
	case vectorindex.MetricCosine, "":
		return "vector_cosine_ops", "<=>", nil
	case vectorindex.MetricEuclidean:
		return "vector_l2_ops", "<->", nil
	case vectorindex.MetricDotProduct:
		return "vector_ip_ops", "<#>", nil
	default:
		return "", "", fmt.Errorf("unsupported metric %q", metric)
	}
}

// score turns a pgvector distance into a higher-is-closer similarity.
func score(metric vectorindex.Metric, distance float64) float32 {
	switch metric {
	case vectorindex.MetricEuclidean:
		return float32(-distance)
	case vectorindex.MetricDotProduct:
		// <#> is the negative inner product
		return float32(-distance)
	default:
		return float32(1 - distance)
	}
}

const listQuery = `
	SELECT c.relname, a.atttypmod, COALESCE(obj_description(c.oid, 'pg_class'), '')
	FROM pg_attribute a
	JOIN pg_class c ON a.attrelid = c.oid
	JOIN pg_namespace n ON c.relnamespace = n.oid
	JOIN pg_type t ON a.atttypid = t.oid
	WHERE t.typname = 'vector'
	  AND a.attname = 'embedding'
	  AND NOT a.attisdropped
	  AND c.relkind = 'r'
	  AND n.nspname = current_schema()
	  AND starts_with(c.relname, $1)
	ORDER BY c.relname
`

func (db *DB) describeAll(ctx context.Context) ([]vectorindex.Description, error) {
	rows, err := db.Pool.Query(ctx, listQuery, db.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list vector tables: %w", err)
	}
	defer rows.Close()

	var descs []vectorindex.Description
	for rows.Next() {
		var (
			table   string
			typmod  int32
			comment string
		)
		if err := rows.Scan(&table, &typmod, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		descs = append(descs, vectorindex.Description{
			Name:      strings.TrimPrefix(table, db.Prefix),
			Dimension: int(typmod),
			Metric:    metricFromComment(comment),
			Host:      "postgres",
			Ready:     true,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return descs, nil
}

func metricFromComment(comment string) vectorindex.Metric {
	if m, ok := strings.CutPrefix(comment, "metric="); ok {
		return vectorindex.Metric(m)
	}
	return vectorindex.MetricCosine
}

func (db *DB) ListIndexes(ctx context.Context) ([]string, error) {
	descs, err := db.describeAll(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	return names, nil
}

// DescribeIndex reads the dimension from the embedding column's type modifier
func (db *DB) DescribeIndex(ctx context.Context, name string) (*vectorindex.Description, error) {
	descs, err := db.describeAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range descs {
		if d.Name == name {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", vectorindex.ErrIndexNotFound, name)
}

// CreateIndex sets up the table and its HNSW index
func (db *DB) CreateIndex(ctx context.Context, spec vectorindex.Spec) error {
	opclass, _, err := ops(spec.Metric)
	if err != nil {
		return err
	}
	if spec.Metric == "" {
		spec.Metric = vectorindex.MetricCosine
	}

	table := db.table(spec.Name)
	idx := pgx.Identifier{db.Prefix + spec.Name + "_embedding_idx"}.Sanitize()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			source TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			embedding vector(%d) NOT NULL
		)
	`, table, spec.Dimension))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX %s ON %s USING hnsw (embedding %s)`, idx, table, opclass))
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	// COMMENT does not take bind parameters.
	_, err = tx.Exec(ctx, fmt.Sprintf(`COMMENT ON TABLE %s IS 'metric=%s'`, table, spec.Metric))
	if err != nil {
		return fmt.Errorf("failed to record metric: %w", err)
	}

	return tx.Commit(ctx)
}

func (db *DB) DeleteIndex(ctx context.Context, name string) error {
	if _, err := db.Pool.Exec(ctx, "DROP TABLE IF EXISTS "+db.table(name)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	return nil
}

func (db *DB) Index(ctx context.Context, name string) (vectorindex.Index, error) {
	desc, err := db.DescribeIndex(ctx, name)
	if err != nil {
		return nil, err
	}

	_, operator, err := ops(desc.Metric)
	if err != nil {
		return nil, err
	}

	return &Table{
		pool:      db.Pool,
		name:      db.table(name),
		dimension: desc.Dimension,
		metric:    desc.Metric,
		operator:  operator,
	}, nil
}

// Table is one index table.
type Table struct {
	pool      *pgxpool.Pool
	name      string
	dimension int
	metric    vectorindex.Metric
	operator  string
}

// Upsert writes all records in one transaction
func (t *Table) Upsert(ctx context.Context, records []models.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, text, source, chunk_id, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			source = EXCLUDED.source,
			chunk_id = EXCLUDED.chunk_id,
			embedding = EXCLUDED.embedding
	`, t.name)

	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Values) != t.dimension {
			return 0, fmt.Errorf("%w: record %s has %d values, index has %d",
				vectorindex.ErrDimensionMismatch, r.ID, len(r.Values), t.dimension)
		}
		batch.Queue(query,
			r.ID,
			r.Metadata.Text,
			r.Metadata.Source,
			r.Metadata.ChunkID,
			pgvector.NewVector(r.Values))
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for _, r := range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to store record %s: %w", r.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return len(records), nil
}

// Query finds the rows nearest to vector
func (t *Table) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	if len(vector) != t.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d",
			vectorindex.ErrDimensionMismatch, len(vector), t.dimension)
	}
	if topK <= 0 {
		return []models.Match{}, nil
	}

	rows, err := t.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, text, source, chunk_id, embedding %[2]s $1 AS distance
		FROM %[1]s
		ORDER BY embedding %[2]s $1
		LIMIT $2
	`, t.name, t.operator), pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar chunks: %w", err)
	}
	defer rows.Close()

	matches := []models.Match{}
	for rows.Next() {
		var (
			m        models.Match
			distance float64
		)
		if err := rows.Scan(&m.ID, &m.Metadata.Text, &m.Metadata.Source, &m.Metadata.ChunkID, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m.Score = score(t.metric, distance)
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return matches, nil
}
