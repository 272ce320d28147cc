package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mnemonic-kb/mnemonic/core"
)

// PostgresStore implements Store on Postgres with the pgvector extension.
// Similarity ordering and the threshold are pushed down to the database
// via the cosine distance operator; the ranker re-enforces both, so the
// pushdown is purely an optimization.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS notes (
	id         UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      VARCHAR(255) NOT NULL,
	content    TEXT NOT NULL,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	embedding  vector(384),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_user_id ON notes (user_id);
CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes (created_at);
`

// NewPostgresStore connects to Postgres and ensures the notes schema
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// CreateNote stores a new note, assigning an ID and timestamps if unset
func (p *PostgresStore) CreateNote(ctx context.Context, note core.Note) (core.Note, error) {
	if err := core.ValidateNote(note); err != nil {
		return core.Note{}, err
	}

	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now
	if note.Tags == nil {
		note.Tags = []string{}
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO notes (id, user_id, title, content, tags, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		note.ID, note.OwnerID, note.Title, note.Content, note.Tags,
		embeddingParam(note.Embedding), note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to insert note %s: %w", note.ID, err)
	}
	return note, nil
}

// GetNote returns a single note owned by ownerID
func (p *PostgresStore) GetNote(ctx context.Context, ownerID string, id uuid.UUID) (core.Note, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, user_id, title, content, tags, embedding, created_at, updated_at
		 FROM notes WHERE id = $1 AND user_id = $2`,
		id, ownerID)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Note{}, core.NewQueryError("GetNote", core.ErrNoteNotFound, id.String(), false)
		}
		return core.Note{}, fmt.Errorf("failed to load note %s: %w", id, err)
	}
	return note, nil
}

// ListNotes returns a page of the owner's notes, newest first
func (p *PostgresStore) ListNotes(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Note, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM notes WHERE user_id = $1`
	listQuery := `SELECT id, user_id, title, content, tags, embedding, created_at, updated_at
		 FROM notes WHERE user_id = $1`
	args := []any{ownerID}

	if opts.Tag != "" {
		countQuery += ` AND tags @> ARRAY[$2]`
		listQuery += ` AND tags @> ARRAY[$2]`
		args = append(args, opts.Tag)
	}

	if err := p.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notes: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, opts.Offset, limit)

	rows, err := p.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []core.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, total, nil
}

// UpdateNote replaces a stored note's writable fields
func (p *PostgresStore) UpdateNote(ctx context.Context, note core.Note) (core.Note, error) {
	if err := core.ValidateNote(note); err != nil {
		return core.Note{}, err
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}
	note.UpdatedAt = time.Now().UTC()

	row := p.pool.QueryRow(ctx,
		`UPDATE notes SET title = $1, content = $2, tags = $3, embedding = $4, updated_at = $5
		 WHERE id = $6 AND user_id = $7
		 RETURNING created_at`,
		note.Title, note.Content, note.Tags, embeddingParam(note.Embedding),
		note.UpdatedAt, note.ID, note.OwnerID)
	if err := row.Scan(&note.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Note{}, core.NewQueryError("UpdateNote", core.ErrNoteNotFound, note.ID.String(), false)
		}
		return core.Note{}, fmt.Errorf("failed to update note %s: %w", note.ID, err)
	}
	return note, nil
}

// DeleteNote removes a note owned by ownerID
func (p *PostgresStore) DeleteNote(ctx context.Context, ownerID string, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM notes WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewQueryError("DeleteNote", core.ErrNoteNotFound, id.String(), false)
	}
	return nil
}

// ListTags returns the owner's distinct tags, sorted
func (p *PostgresStore) ListTags(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT unnest(tags) FROM notes WHERE user_id = $1 ORDER BY 1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags, rows.Err()
}

// FindByOwnerAndIDs resolves note IDs for one owner, skipping unknown IDs
func (p *PostgresStore) FindByOwnerAndIDs(ctx context.Context, ownerID string, ids []uuid.UUID) ([]core.Note, error) {
	if len(ids) == 0 {
		return []core.Note{}, nil
	}
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, title, content, tags, embedding, created_at, updated_at
		 FROM notes WHERE user_id = $1 AND id = ANY($2::uuid[])`,
		ownerID, idStrings)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	defer rows.Close()

	notes := []core.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// SearchByOwner answers a ranked similarity query scoped to one owner. The
// cosine distance operator (<=>) orders candidates; similarity is
// 1 - distance, filtered strictly above minSimilarity.
func (p *PostgresStore) SearchByOwner(ctx context.Context, ownerID string, query core.EmbeddingVector, limit int, minSimilarity float64) ([]core.ScoredNote, error) {
	vec := pgvector.NewVector(query)
	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, title, content, tags, embedding, created_at, updated_at,
		        1 - (embedding <=> $2) AS similarity
		 FROM notes
		 WHERE user_id = $1
		   AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $2) > $3
		 ORDER BY embedding <=> $2, created_at DESC
		 LIMIT $4`,
		ownerID, vec, minSimilarity, limit)
	if err != nil {
		return nil, core.NewQueryError("SearchByOwner", core.ErrIndexUnavailable, err.Error(), false)
	}
	defer rows.Close()

	results := []core.ScoredNote{}
	for rows.Next() {
		var (
			note       core.Note
			embedding  pgvector.Vector
			similarity float64
		)
		err := rows.Scan(&note.ID, &note.OwnerID, &note.Title, &note.Content, &note.Tags,
			&embedding, &note.CreatedAt, &note.UpdatedAt, &similarity)
		if err != nil {
			return nil, core.NewQueryError("SearchByOwner", core.ErrIndexUnavailable, err.Error(), false)
		}
		note.Embedding = embedding.Slice()
		results = append(results, core.ScoredNote{Note: note, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewQueryError("SearchByOwner", core.ErrIndexUnavailable, err.Error(), false)
	}
	return results, nil
}

// Close releases the connection pool
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// embeddingParam converts an embedding to a nullable pgvector parameter
func embeddingParam(embedding core.EmbeddingVector) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (core.Note, error) {
	var (
		note      core.Note
		embedding *pgvector.Vector
	)
	err := row.Scan(&note.ID, &note.OwnerID, &note.Title, &note.Content, &note.Tags,
		&embedding, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return core.Note{}, err
	}
	if embedding != nil {
		note.Embedding = embedding.Slice()
	}
	return note, nil
}
