// Package postgres stores the exercise index in PostgreSQL using the
// pgvector extension. Distances are computed by the database with the
// cosine distance operator <=>.
package postgres

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
)

const (
	defaultTable       = "exercise_vectors"
	metaTable          = "exercise_index_meta"
	fingerprintMetaKey = "fingerprint"
)

// OpenDB opens a connection pool and verifies it with a ping.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return db, nil
}

type postgresVectorIndex struct {
	db    *sql.DB
	table string // quoted identifier
}

// NewPostgresVectorIndex creates a vector index stored in table.
func NewPostgresVectorIndex(db *sql.DB, table string) repository.VectorIndex {
	if table == "" {
		table = defaultTable
	}
	return &postgresVectorIndex{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the pgvector extension and the index tables.
func EnsureSchema(ctx context.Context, db *sql.DB, table string) error {
	if table == "" {
		table = defaultTable
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(table) + ` (
			id             TEXT PRIMARY KEY,
			embedding      vector NOT NULL,
			category       TEXT NOT NULL DEFAULT '',
			equipment      TEXT NOT NULL DEFAULT '',
			difficulty     TEXT NOT NULL DEFAULT '',
			target_muscles TEXT[] NOT NULL DEFAULT '{}',
			seq            BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier(table+"_category_idx") + ` ON ` + pq.QuoteIdentifier(table) + ` (category)`,
		`CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier(table+"_equipment_idx") + ` ON ` + pq.QuoteIdentifier(table) + ` (equipment)`,
		`CREATE TABLE IF NOT EXISTS ` + metaTable + ` (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create vector index schema")
		}
	}
	return nil
}

func (r *postgresVectorIndex) upsertStatement() string {
	return `
		INSERT INTO ` + r.table + ` (id, embedding, category, equipment, difficulty, target_muscles, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			category = EXCLUDED.category,
			equipment = EXCLUDED.equipment,
			difficulty = EXCLUDED.difficulty,
			target_muscles = EXCLUDED.target_muscles
	`
}

// Upsert writes all entries in one transaction. seq is kept on conflict.
func (r *postgresVectorIndex) Upsert(ctx context.Context, entries ...repository.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin upsert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.upsertStatement())
	if err != nil {
		return errors.Wrap(err, "failed to prepare upsert")
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			return errors.New("index entry ID and vector are required")
		}
		muscles := e.Metadata.TargetMuscles
		if muscles == nil {
			muscles = []string{}
		}
		_, err := stmt.ExecContext(ctx,
			e.ID,
			pgvector.NewVector(e.Vector),
			e.Metadata.Category,
			e.Metadata.Equipment,
			e.Metadata.Difficulty,
			pq.Array(muscles),
			int64(e.Ordinal),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to upsert vector %s", e.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit upsert")
}

func (r *postgresVectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+r.table).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count vectors")
	}
	return n, nil
}

// buildQuery renders the similarity query for the filter. The vector is
// always $1 and the limit is the last argument.
func (r *postgresVectorIndex) buildQuery(vector []float32, k int, filter domain.ExerciseFilter) (string, []any) {
	args := []any{pgvector.NewVector(vector)}
	where := []string{"1 = 1"}

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("category", filter.Category)
	add("equipment", filter.Equipment)
	add("difficulty", filter.Difficulty)

	args = append(args, k)
	query := `
		SELECT id, embedding <=> $1 AS distance
		FROM ` + r.table + `
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY distance ASC, seq ASC
		LIMIT ` + fmt.Sprintf("$%d", len(args))
	return query, args
}

func (r *postgresVectorIndex) Query(ctx context.Context, vector []float32, k int, filter domain.ExerciseFilter) ([]repository.IndexHit, error) {
	if k <= 0 {
		return []repository.IndexHit{}, nil
	}

	query, args := r.buildQuery(vector, k, filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query vectors")
	}
	defer rows.Close()

	hits := []repository.IndexHit{}
	for rows.Next() {
		var hit repository.IndexHit
		if err := rows.Scan(&hit.ID, &hit.Distance); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector hit")
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *postgresVectorIndex) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE `+r.table); err != nil {
		return errors.Wrap(err, "failed to truncate vectors")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM `+metaTable+` WHERE key = $1`, fingerprintMetaKey)
	return errors.Wrap(err, "failed to clear index fingerprint")
}

func (r *postgresVectorIndex) Fingerprint(ctx context.Context) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM `+metaTable+` WHERE key = $1`, fingerprintMetaKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read index fingerprint")
	}
	return value, nil
}

func (r *postgresVectorIndex) SetFingerprint(ctx context.Context, fingerprint string) error {
	stmt := `
		INSERT INTO ` + metaTable + ` (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, stmt, fingerprintMetaKey, fingerprint)
	return errors.Wrap(err, "failed to store index fingerprint")
}
