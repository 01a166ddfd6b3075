package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/highlight"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	slug TEXT PRIMARY KEY,
	body JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS discussions (
	id   BIGSERIAL PRIMARY KEY,
	slug TEXT NOT NULL REFERENCES documents (slug) ON DELETE CASCADE,
	body JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS discussions_slug_idx ON discussions (slug, id);
`

// PostgresStore keeps documents and discussions as JSONB rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the tables.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := NewPostgresStoreWithPool(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	return store, nil
}

// NewPostgresStoreWithPool creates a store from an existing pool. Call
// Migrate before use.
func NewPostgresStoreWithPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

// CreateDocument stores a new document.
func (s *PostgresStore) CreateDocument(ctx context.Context, doc document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO documents (slug, body) VALUES ($1, $2) ON CONFLICT (slug) DO NOTHING`,
		doc.Slug, body)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDocumentExists
	}

	return nil
}

// LoadDocument returns the document with the given slug.
func (s *PostgresStore) LoadDocument(ctx context.Context, slug string) (document.Document, error) {
	return loadDocument(ctx, s.pool, slug, "")
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadDocument(ctx context.Context, q querier, slug, lock string) (document.Document, error) {
	var body []byte

	err := q.QueryRow(ctx, `SELECT body FROM documents WHERE slug = $1 `+lock, slug).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return document.Document{}, ErrDocumentNotFound
	}

	if err != nil {
		return document.Document{}, fmt.Errorf("load document: %w", err)
	}

	var doc document.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return document.Document{}, fmt.Errorf("unmarshal document: %w", err)
	}

	return doc, nil
}

// SaveDraft replaces the live draft of a document.
func (s *PostgresStore) SaveDraft(ctx context.Context, slug string, draft document.Content) error {
	_, err := s.update(ctx, slug, func(doc *document.Document) error {
		doc.Draft = draft

		return doc.Validate()
	})

	return err
}

// PublishVersion appends an immutable version.
func (s *PostgresStore) PublishVersion(ctx context.Context, slug string, version document.Version) (document.Document, error) {
	return s.update(ctx, slug, func(doc *document.Document) error {
		return publish(doc, version)
	})
}

// update applies fn to the stored document inside a row-locking transaction.
func (s *PostgresStore) update(ctx context.Context, slug string, fn func(*document.Document) error) (document.Document, error) {
	var out document.Document

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		doc, err := loadDocument(ctx, tx, slug, "FOR UPDATE")
		if err != nil {
			return err
		}

		if err := fn(&doc); err != nil {
			return err
		}

		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE documents SET body = $2 WHERE slug = $1`, slug, body); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		out = doc

		return nil
	})

	return out, err
}

// AddDiscussion attaches a discussion to a document. The document row is
// locked so thread numbers are assigned one writer at a time.
func (s *PostgresStore) AddDiscussion(ctx context.Context, slug string, d highlight.Discussion) (highlight.Discussion, error) {
	var out highlight.Discussion

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := loadDocument(ctx, tx, slug, "FOR UPDATE"); err != nil {
			return err
		}

		existing, err := listDiscussions(ctx, tx, slug)
		if err != nil {
			return err
		}

		numbered, err := numberDiscussion(existing, d)
		if err != nil {
			return err
		}

		body, err := json.Marshal(numbered)
		if err != nil {
			return fmt.Errorf("marshal discussion: %w", err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO discussions (slug, body) VALUES ($1, $2)`, slug, body); err != nil {
			return fmt.Errorf("insert discussion: %w", err)
		}

		out = numbered

		return nil
	})

	return out, err
}

// ListDiscussions returns a document's discussions in insertion order.
func (s *PostgresStore) ListDiscussions(ctx context.Context, slug string) ([]highlight.Discussion, error) {
	if _, err := loadDocument(ctx, s.pool, slug, ""); err != nil {
		return nil, err
	}

	return listDiscussions(ctx, s.pool, slug)
}

func listDiscussions(ctx context.Context, q querier, slug string) ([]highlight.Discussion, error) {
	rows, err := q.Query(ctx, `SELECT body FROM discussions WHERE slug = $1 ORDER BY id`, slug)
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}

	bodies, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}

	out := make([]highlight.Discussion, 0, len(bodies))

	for _, body := range bodies {
		var d highlight.Discussion
		if err := json.Unmarshal(body, &d); err != nil {
			return nil, fmt.Errorf("unmarshal discussion: %w", err)
		}

		out = append(out, d)
	}

	return out, nil
}

// DeleteDocument removes a document and, by cascade, its discussions.
func (s *PostgresStore) DeleteDocument(ctx context.Context, slug string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
