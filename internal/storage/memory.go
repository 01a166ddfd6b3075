package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/highlight"
)

type documentData struct {
	doc         document.Document
	discussions []highlight.Discussion
}

// MemoryStore is an in-memory implementation of the Store interface.
// Useful for testing and development.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*documentData
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*documentData),
	}
}

// CreateDocument stores a new document.
func (m *MemoryStore) CreateDocument(_ context.Context, doc document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[doc.Slug]; exists {
		return ErrDocumentExists
	}

	doc.Versions = slices.Clone(doc.Versions)
	m.docs[doc.Slug] = &documentData{doc: doc}

	return nil
}

// LoadDocument returns the document with the given slug.
func (m *MemoryStore) LoadDocument(_ context.Context, slug string) (document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.docs[slug]
	if !exists {
		return document.Document{}, ErrDocumentNotFound
	}

	doc := data.doc
	doc.Versions = slices.Clone(doc.Versions)

	return doc, nil
}

// SaveDraft replaces the live draft of a document.
func (m *MemoryStore) SaveDraft(_ context.Context, slug string, draft document.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.docs[slug]
	if !exists {
		return ErrDocumentNotFound
	}

	next := data.doc
	next.Draft = draft

	if err := next.Validate(); err != nil {
		return err
	}

	data.doc = next

	return nil
}

// PublishVersion appends an immutable version.
func (m *MemoryStore) PublishVersion(_ context.Context, slug string, version document.Version) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.docs[slug]
	if !exists {
		return document.Document{}, ErrDocumentNotFound
	}

	next := data.doc
	next.Versions = slices.Clone(next.Versions)

	if err := publish(&next, version); err != nil {
		return document.Document{}, err
	}

	data.doc = next

	out := next
	out.Versions = slices.Clone(next.Versions)

	return out, nil
}

// AddDiscussion attaches a discussion to a document.
func (m *MemoryStore) AddDiscussion(_ context.Context, slug string, d highlight.Discussion) (highlight.Discussion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.docs[slug]
	if !exists {
		return highlight.Discussion{}, ErrDocumentNotFound
	}

	d, err := numberDiscussion(data.discussions, d)
	if err != nil {
		return highlight.Discussion{}, err
	}

	data.discussions = append(data.discussions, d)

	return d, nil
}

// ListDiscussions returns a document's discussions in insertion order.
func (m *MemoryStore) ListDiscussions(_ context.Context, slug string) ([]highlight.Discussion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.docs[slug]
	if !exists {
		return nil, ErrDocumentNotFound
	}

	out := slices.Clone(data.discussions)
	if out == nil {
		out = []highlight.Discussion{}
	}

	return out, nil
}

// DeleteDocument removes a document and its discussions.
func (m *MemoryStore) DeleteDocument(_ context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[slug]; !exists {
		return ErrDocumentNotFound
	}

	delete(m.docs, slug)

	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
