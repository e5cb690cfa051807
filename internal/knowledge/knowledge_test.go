package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/providers"
	"github.com/sporenet/sporenet/internal/storage"
)

type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return f.vectors[text], nil
}

func newTestStore(t *testing.T, embedder *fakeEmbedder) *Store {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var ec providers.EmbeddingClient
	if embedder != nil {
		ec = embedder
	}

	s, err := New(db, ec, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, "test-model")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestLearnCreatesSourceAndChunks(t *testing.T) {
	s := newTestStore(t, nil)

	result, err := s.Learn(context.Background(), "https://example.com/guide/", "Guide", "One short paragraph about Go testing.", []string{"go", "testing"}, false)
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if result.Skipped {
		t.Fatal("expected the first ingest not to be skipped")
	}
	if result.Chunks != 1 {
		t.Fatalf("expected one chunk, got %d", result.Chunks)
	}

	sources, err := s.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 1 || sources[0].URL != "https://example.com/guide" {
		t.Fatalf("expected one normalized source, got %+v", sources)
	}
}

func TestLearnSkipsExistingUnlessForced(t *testing.T) {
	s := newTestStore(t, nil)

	if _, err := s.Learn(context.Background(), "https://example.com/a", "A", "content one", nil, false); err != nil {
		t.Fatalf("Learn: %v", err)
	}

	skipped, err := s.Learn(context.Background(), "https://example.com/a", "A", "content one updated", nil, false)
	if err != nil {
		t.Fatalf("Learn (repeat): %v", err)
	}
	if !skipped.Skipped {
		t.Error("expected the second learn of the same url to be skipped")
	}

	forced, err := s.Learn(context.Background(), "https://example.com/a", "A", "content one updated", nil, true)
	if err != nil {
		t.Fatalf("Learn (forced): %v", err)
	}
	if forced.Skipped {
		t.Error("expected a forced re-learn not to be skipped")
	}
}

func TestSearchFTSFindsChunk(t *testing.T) {
	s := newTestStore(t, nil)
	if _, err := s.Learn(context.Background(), "https://example.com/coffee", "Coffee", "Dark roast coffee beans are grown at high altitude.", nil, false); err != nil {
		t.Fatalf("Learn: %v", err)
	}

	results, err := s.Search(context.Background(), "coffee beans", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one matching chunk, got %+v", results)
	}
}

func TestSearchByTitleMatch(t *testing.T) {
	s := newTestStore(t, nil)
	if _, err := s.Learn(context.Background(), "https://example.com/recipe", "Sourdough Baking", "A body with unrelated filler text that avoids the query term.", nil, false); err != nil {
		t.Fatalf("Learn: %v", err)
	}

	results, err := s.Search(context.Background(), "sourdough", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the title match to surface the chunk, got %+v", results)
	}
}

func TestForgetSourceDeletesChunks(t *testing.T) {
	s := newTestStore(t, nil)
	result, err := s.Learn(context.Background(), "https://example.com/x", "X", "some body content here", nil, false)
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}

	if err := s.ForgetSource(result.Source.ID); err != nil {
		t.Fatalf("ForgetSource: %v", err)
	}

	chunks, err := s.ChunksForSource(result.Source.ID)
	if err != nil {
		t.Fatalf("ChunksForSource: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks after forgetting the source, got %+v", chunks)
	}

	if _, err := s.GetSource(result.Source.ID); err == nil {
		t.Error("expected the source itself to be gone")
	}
}

func TestReindexSourceRebuildsChunks(t *testing.T) {
	s := newTestStore(t, nil)
	result, err := s.Learn(context.Background(), "https://example.com/reindex", "Reindex", "paragraph one\n\nparagraph two", nil, false)
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	originalCount := result.Chunks

	if err := s.ReindexSource(context.Background(), result.Source.ID); err != nil {
		t.Fatalf("ReindexSource: %v", err)
	}

	chunks, err := s.ChunksForSource(result.Source.ID)
	if err != nil {
		t.Fatalf("ChunksForSource: %v", err)
	}
	if len(chunks) != originalCount {
		t.Errorf("expected reindex to preserve chunk count %d, got %d", originalCount, len(chunks))
	}
}
