package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/serroba/annotated-docs/internal/anchor"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/highlight"
	"github.com/serroba/annotated-docs/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var published = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newDocument(slug string) document.Document {
	return document.Document{
		Slug:      slug,
		Title:     "A pub",
		Draft:     document.Flat(document.FromParagraphs("hello world")),
		CreatedAt: published.Add(-time.Hour),
	}
}

func newRedisStore(t *testing.T) storage.Store {
	t.Helper()

	s := miniredis.RunT(t)

	store, err := storage.NewRedisStore(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

var backends = map[string]func(t *testing.T) storage.Store{
	"memory": func(_ *testing.T) storage.Store { return storage.NewMemoryStore() },
	"redis":  newRedisStore,
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store storage.Store)) {
	t.Helper()

	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fn(t, newStore(t))
		})
	}
}

func TestStore_CreateAndLoad(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		doc := newDocument("pub")

		require.NoError(t, store.CreateDocument(ctx, doc))

		loaded, err := store.LoadDocument(ctx, "pub")
		require.NoError(t, err)
		assert.Equal(t, doc, loaded)

		err = store.CreateDocument(ctx, doc)
		if !errors.Is(err, storage.ErrDocumentExists) {
			t.Errorf("expected ErrDocumentExists, got %v", err)
		}
	})
}

func TestStore_CreateInvalid(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		err := store.CreateDocument(context.Background(), document.Document{})
		require.ErrorIs(t, err, document.ErrMissingSlug)
	})
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		_, err := store.LoadDocument(context.Background(), "missing")
		require.ErrorIs(t, err, storage.ErrDocumentNotFound)
	})
}

func TestStore_SaveDraft(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		require.NoError(t, store.CreateDocument(ctx, newDocument("pub")))

		draft := document.List(
			document.Section{ID: "", Order: 0, Title: "Intro", Content: document.FromParagraphs("intro")},
			document.Section{ID: "methods", Order: 1, Title: "Methods", Content: document.FromParagraphs("methods")},
		)
		require.NoError(t, store.SaveDraft(ctx, "pub", draft))

		loaded, err := store.LoadDocument(ctx, "pub")
		require.NoError(t, err)
		assert.True(t, loaded.Draft.Sectioned())
		assert.Equal(t, draft, loaded.Draft)

		bad := document.List(document.Section{ID: ""}, document.Section{ID: ""})
		require.ErrorIs(t, store.SaveDraft(ctx, "pub", bad), document.ErrDuplicateImplicitSection)

		require.ErrorIs(t, store.SaveDraft(ctx, "missing", draft), storage.ErrDocumentNotFound)
	})
}

func TestStore_PublishVersion(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		require.NoError(t, store.CreateDocument(ctx, newDocument("pub")))

		first := document.Version{ID: "v1", CreatedAt: published, Content: document.Flat(document.FromParagraphs("one"))}
		second := document.Version{ID: "v2", CreatedAt: published.Add(time.Hour), Content: document.Flat(document.FromParagraphs("two"))}

		doc, err := store.PublishVersion(ctx, "pub", first)
		require.NoError(t, err)
		require.NotNil(t, doc.FirstPublishedAt)
		assert.True(t, doc.FirstPublishedAt.Equal(published))

		doc, err = store.PublishVersion(ctx, "pub", second)
		require.NoError(t, err)
		assert.True(t, doc.FirstPublishedAt.Equal(published))
		require.Len(t, doc.Versions, 2)

		src, err := doc.VersionSource("")
		require.NoError(t, err)
		assert.Equal(t, "v2", src.VersionID)

		_, err = store.PublishVersion(ctx, "pub", first)
		require.ErrorIs(t, err, storage.ErrVersionExists)

		_, err = store.PublishVersion(ctx, "missing", first)
		require.ErrorIs(t, err, storage.ErrDocumentNotFound)
	})
}

func TestStore_AddDiscussion_ThreadNumbers(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		require.NoError(t, store.CreateDocument(ctx, newDocument("pub")))

		first, err := store.AddDiscussion(ctx, "pub", highlight.Discussion{Title: "first"})
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, 1, first.ThreadNumber)

		second, err := store.AddDiscussion(ctx, "pub", highlight.Discussion{ID: "d2", Title: "second"})
		require.NoError(t, err)
		assert.Equal(t, "d2", second.ID)
		assert.Equal(t, 2, second.ThreadNumber)

		reply, err := store.AddDiscussion(ctx, "pub", highlight.Discussion{ParentID: first.ID, Text: "reply"})
		require.NoError(t, err)
		assert.Equal(t, 1, reply.ThreadNumber)

		explicit, err := store.AddDiscussion(ctx, "pub", highlight.Discussion{ThreadNumber: 9})
		require.NoError(t, err)
		assert.Equal(t, 9, explicit.ThreadNumber)

		next, err := store.AddDiscussion(ctx, "pub", highlight.Discussion{})
		require.NoError(t, err)
		assert.Equal(t, 10, next.ThreadNumber)

		_, err = store.AddDiscussion(ctx, "pub", highlight.Discussion{ParentID: "nope"})
		require.ErrorIs(t, err, storage.ErrParentNotFound)

		_, err = store.AddDiscussion(ctx, "missing", highlight.Discussion{})
		require.ErrorIs(t, err, storage.ErrDocumentNotFound)
	})
}

func TestStore_ListDiscussions(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		require.NoError(t, store.CreateDocument(ctx, newDocument("pub")))

		empty, err := store.ListDiscussions(ctx, "pub")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		section := "methods"
		d := highlight.Discussion{
			ID:        "d1",
			Title:     "typo",
			CreatedAt: published,
			Highlights: []anchor.Anchor{{
				ID: "h0000abcd", Exact: "world", Prefix: "hello ", From: 7, To: 12,
				Version: "v1", Section: &section,
			}},
		}

		stored, err := store.AddDiscussion(ctx, "pub", d)
		require.NoError(t, err)

		list, err := store.ListDiscussions(ctx, "pub")
		require.NoError(t, err)
		require.Equal(t, []highlight.Discussion{stored}, list)

		_, err = store.ListDiscussions(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrDocumentNotFound)
	})
}

func TestStore_DeleteDocument(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		require.NoError(t, store.CreateDocument(ctx, newDocument("pub")))

		_, err := store.AddDiscussion(ctx, "pub", highlight.Discussion{Title: "gone"})
		require.NoError(t, err)

		require.NoError(t, store.DeleteDocument(ctx, "pub"))

		_, err = store.LoadDocument(ctx, "pub")
		require.ErrorIs(t, err, storage.ErrDocumentNotFound)

		require.ErrorIs(t, store.DeleteDocument(ctx, "pub"), storage.ErrDocumentNotFound)

		// The slug is free again and starts with no discussions.
		require.NoError(t, store.CreateDocument(ctx, newDocument("pub")))

		list, err := store.ListDiscussions(ctx, "pub")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestStore_ConcurrentDiscussions(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		require.NoError(t, store.CreateDocument(ctx, newDocument("pub")))

		var wg sync.WaitGroup

		for range 5 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, _ = store.AddDiscussion(ctx, "pub", highlight.Discussion{})
			}()
		}

		wg.Wait()

		list, err := store.ListDiscussions(ctx, "pub")
		require.NoError(t, err)

		seen := make(map[int]bool)
		for _, d := range list {
			if seen[d.ThreadNumber] {
				t.Errorf("duplicate thread number %d", d.ThreadNumber)
			}

			seen[d.ThreadNumber] = true
		}
	})
}

func TestNewRedisStore_BadURL(t *testing.T) {
	t.Parallel()

	_, err := storage.NewRedisStore(context.Background(), "not a url")
	require.Error(t, err)
}
