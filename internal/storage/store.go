// Package storage persists documents, their published versions, and the
// discussions attached to them.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/highlight"
)

// Common errors.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrVersionExists    = errors.New("version already exists")
	ErrParentNotFound   = errors.New("parent discussion not found")
)

// Store defines the interface for persisting documents and discussions.
type Store interface {
	// CreateDocument stores a new document.
	// Returns ErrDocumentExists if the slug is taken.
	CreateDocument(ctx context.Context, doc document.Document) error

	// LoadDocument returns the document with the given slug.
	// Returns ErrDocumentNotFound if it doesn't exist.
	LoadDocument(ctx context.Context, slug string) (document.Document, error)

	// SaveDraft replaces the live draft of a document.
	SaveDraft(ctx context.Context, slug string, draft document.Content) error

	// PublishVersion appends an immutable version. The first publication
	// also stamps FirstPublishedAt.
	PublishVersion(ctx context.Context, slug string, version document.Version) (document.Document, error)

	// AddDiscussion attaches a discussion to a document. A new top-level
	// discussion without a thread number opens the next thread; a reply
	// joins its parent's thread.
	AddDiscussion(ctx context.Context, slug string, d highlight.Discussion) (highlight.Discussion, error)

	// ListDiscussions returns a document's discussions in insertion order.
	ListDiscussions(ctx context.Context, slug string) ([]highlight.Discussion, error)

	// DeleteDocument removes a document and its discussions.
	DeleteDocument(ctx context.Context, slug string) error
}

// publish appends v to doc.
func publish(doc *document.Document, v document.Version) error {
	for _, existing := range doc.Versions {
		if existing.ID == v.ID {
			return fmt.Errorf("%w: %s", ErrVersionExists, v.ID)
		}
	}

	doc.Versions = append(doc.Versions, v)

	if doc.FirstPublishedAt == nil {
		at := v.CreatedAt
		doc.FirstPublishedAt = &at
	}

	return nil
}

// numberDiscussion fills in the id and thread number of d given the
// discussions already stored on the document.
func numberDiscussion(existing []highlight.Discussion, d highlight.Discussion) (highlight.Discussion, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	if d.ParentID != "" {
		for _, e := range existing {
			if e.ID == d.ParentID {
				d.ThreadNumber = e.ThreadNumber

				return d, nil
			}
		}

		return highlight.Discussion{}, fmt.Errorf("%w: %s", ErrParentNotFound, d.ParentID)
	}

	if d.ThreadNumber != 0 {
		return d, nil
	}

	last := 0
	for _, e := range existing {
		last = max(last, e.ThreadNumber)
	}

	d.ThreadNumber = last + 1

	return d, nil
}
