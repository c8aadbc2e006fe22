package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Queries is the pgx-backed Querier implementation over the documents table
// (see db/migrations). Ties on distance are broken by the seq column so that
// earlier-ingested chunks rank first, keeping result order deterministic.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries bound to the given connection pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const insertDocumentSQL = `
INSERT INTO documents (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)`

// InsertDocuments writes all rows in one batch inside a transaction, so a
// failed insert leaves nothing behind.
func (q *Queries) InsertDocuments(ctx context.Context, rows []InsertParams) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		embedding := pgvector.NewVector(row.Embedding)
		createdAt := pgtype.Timestamptz{Time: row.CreatedAt, Valid: !row.CreatedAt.IsZero()}
		batch.Queue(insertDocumentSQL, row.ID, row.Content, embedding, row.Metadata, createdAt)
	}

	return pgx.BeginFunc(ctx, q.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer func() { _ = results.Close() }()

		for range rows {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("batch insert: %w", err)
			}
		}
		return nil
	})
}

const searchDocumentsSQL = `
SELECT id, content, metadata, created_at,
       (1 - (embedding <=> $1))::float4 AS similarity
FROM documents
WHERE metadata @> $2
ORDER BY embedding <=> $1, seq
LIMIT $3`

const searchDocumentsAllSQL = `
SELECT id, content, metadata, created_at,
       (1 - (embedding <=> $1))::float4 AS similarity
FROM documents
ORDER BY embedding <=> $1, seq
LIMIT $2`

// SearchDocuments runs a nearest-neighbor scan, optionally constrained by a
// JSONB containment filter. Filter values are always produced by
// json.Marshal upstream; the query itself is fully parameterized.
func (q *Queries) SearchDocuments(ctx context.Context, arg SearchParams) ([]SearchRow, error) {
	embedding := pgvector.NewVector(arg.QueryEmbedding)

	var (
		pgRows pgx.Rows
		err    error
	)
	if arg.FilterMetadata != nil {
		pgRows, err = q.pool.Query(ctx, searchDocumentsSQL, embedding, arg.FilterMetadata, arg.Limit)
	} else {
		pgRows, err = q.pool.Query(ctx, searchDocumentsAllSQL, embedding, arg.Limit)
	}
	if err != nil {
		return nil, err
	}
	defer pgRows.Close()

	return scanSearchRows(pgRows, true)
}

const deleteDocumentsSQL = `DELETE FROM documents WHERE id = ANY($1)`

func (q *Queries) DeleteDocuments(ctx context.Context, ids []string) error {
	_, err := q.pool.Exec(ctx, deleteDocumentsSQL, ids)
	return err
}

const countDocumentsSQL = `SELECT count(*) FROM documents WHERE metadata @> $1`
const countDocumentsAllSQL = `SELECT count(*) FROM documents`

func (q *Queries) CountDocuments(ctx context.Context, filterMetadata []byte) (int64, error) {
	var count int64
	var err error
	if filterMetadata != nil {
		err = q.pool.QueryRow(ctx, countDocumentsSQL, filterMetadata).Scan(&count)
	} else {
		err = q.pool.QueryRow(ctx, countDocumentsAllSQL).Scan(&count)
	}
	return count, err
}

const listDocumentsByTypeSQL = `
SELECT id, content, metadata, created_at
FROM documents
WHERE metadata @> jsonb_build_object('type', $1::text)
ORDER BY created_at DESC, seq DESC
LIMIT $2`

func (q *Queries) ListDocumentsByType(ctx context.Context, recordType string, limit int32) ([]SearchRow, error) {
	pgRows, err := q.pool.Query(ctx, listDocumentsByTypeSQL, recordType, limit)
	if err != nil {
		return nil, err
	}
	defer pgRows.Close()

	return scanSearchRows(pgRows, false)
}

func scanSearchRows(pgRows pgx.Rows, withSimilarity bool) ([]SearchRow, error) {
	var rows []SearchRow
	for pgRows.Next() {
		var (
			row       SearchRow
			createdAt pgtype.Timestamptz
		)
		var err error
		if withSimilarity {
			err = pgRows.Scan(&row.ID, &row.Content, &row.Metadata, &createdAt, &row.Similarity)
		} else {
			err = pgRows.Scan(&row.ID, &row.Content, &row.Metadata, &createdAt)
		}
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if createdAt.Valid {
			row.CreatedAt = createdAt.Time
		}
		rows = append(rows, row)
	}
	return rows, pgRows.Err()
}
