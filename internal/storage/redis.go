package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/highlight"
)

// ErrConflict is returned when a write keeps losing optimistic races.
var ErrConflict = errors.New("concurrent update, retry")

const (
	defaultPrefix = "annotated:"
	maxTxRetries  = 8
)

// RedisStore keeps each document as a JSON value and its discussions as a
// JSON list.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server at redisURL.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: defaultPrefix}
}

func (s *RedisStore) docKey(slug string) string {
	return s.prefix + "doc:" + slug
}

func (s *RedisStore) discussionsKey(slug string) string {
	return s.prefix + "doc:" + slug + ":discussions"
}

// CreateDocument stores a new document.
func (s *RedisStore) CreateDocument(ctx context.Context, doc document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.docKey(doc.Slug), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	if !created {
		return ErrDocumentExists
	}

	return nil
}

// LoadDocument returns the document with the given slug.
func (s *RedisStore) LoadDocument(ctx context.Context, slug string) (document.Document, error) {
	return s.load(ctx, s.client, slug)
}

func (s *RedisStore) load(ctx context.Context, c redis.Cmdable, slug string) (document.Document, error) {
	raw, err := c.Get(ctx, s.docKey(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return document.Document{}, ErrDocumentNotFound
	}

	if err != nil {
		return document.Document{}, fmt.Errorf("load document: %w", err)
	}

	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document.Document{}, fmt.Errorf("unmarshal document: %w", err)
	}

	return doc, nil
}

// SaveDraft replaces the live draft of a document.
func (s *RedisStore) SaveDraft(ctx context.Context, slug string, draft document.Content) error {
	_, err := s.update(ctx, slug, func(doc *document.Document) error {
		doc.Draft = draft

		return doc.Validate()
	})

	return err
}

// PublishVersion appends an immutable version.
func (s *RedisStore) PublishVersion(ctx context.Context, slug string, version document.Version) (document.Document, error) {
	return s.update(ctx, slug, func(doc *document.Document) error {
		return publish(doc, version)
	})
}

// update applies fn to the stored document under an optimistic lock.
func (s *RedisStore) update(ctx context.Context, slug string, fn func(*document.Document) error) (document.Document, error) {
	key := s.docKey(slug)

	var out document.Document

	txf := func(tx *redis.Tx) error {
		doc, err := s.load(ctx, tx, slug)
		if err != nil {
			return err
		}

		if err := fn(&doc); err != nil {
			return err
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)

			return nil
		})
		if err != nil {
			return err
		}

		out = doc

		return nil
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return out, err
	}

	return document.Document{}, ErrConflict
}

// AddDiscussion attaches a discussion to a document.
func (s *RedisStore) AddDiscussion(ctx context.Context, slug string, d highlight.Discussion) (highlight.Discussion, error) {
	key := s.discussionsKey(slug)

	var out highlight.Discussion

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, s.docKey(slug)).Result()
		if err != nil {
			return fmt.Errorf("check document: %w", err)
		}

		if exists == 0 {
			return ErrDocumentNotFound
		}

		existing, err := s.discussions(ctx, tx, key)
		if err != nil {
			return err
		}

		numbered, err := numberDiscussion(existing, d)
		if err != nil {
			return err
		}

		data, err := json.Marshal(numbered)
		if err != nil {
			return fmt.Errorf("marshal discussion: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, data)

			return nil
		})
		if err != nil {
			return err
		}

		out = numbered

		return nil
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key, s.docKey(slug))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return out, err
	}

	return highlight.Discussion{}, ErrConflict
}

// ListDiscussions returns a document's discussions in insertion order.
func (s *RedisStore) ListDiscussions(ctx context.Context, slug string) ([]highlight.Discussion, error) {
	exists, err := s.client.Exists(ctx, s.docKey(slug)).Result()
	if err != nil {
		return nil, fmt.Errorf("check document: %w", err)
	}

	if exists == 0 {
		return nil, ErrDocumentNotFound
	}

	return s.discussions(ctx, s.client, s.discussionsKey(slug))
}

func (s *RedisStore) discussions(ctx context.Context, c redis.Cmdable, key string) ([]highlight.Discussion, error) {
	raw, err := c.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}

	out := make([]highlight.Discussion, 0, len(raw))

	for _, item := range raw {
		var d highlight.Discussion
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			return nil, fmt.Errorf("unmarshal discussion: %w", err)
		}

		out = append(out, d)
	}

	return out, nil
}

// DeleteDocument removes a document and its discussions.
func (s *RedisStore) DeleteDocument(ctx context.Context, slug string) error {
	n, err := s.client.Del(ctx, s.docKey(slug), s.discussionsKey(slug)).Result()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if n == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
