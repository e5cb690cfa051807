package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sporenet/sporenet/internal/beliefs"
	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/providers"
	"github.com/sporenet/sporenet/internal/storage"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func newTestStore(t *testing.T) *beliefs.Store {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := beliefs.New(db, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("beliefs.New: %v", err)
	}
	return store
}

func TestRecallFallsBackToTextSearch(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateBelief(beliefs.NewBelief{Statement: "prefers dark roast coffee", Subject: "user"}); err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	e := New(store, nil, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})

	matches, err := e.Recall(context.Background(), "coffee")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one match from text search, got %+v", matches)
	}
}

func TestRecallUsesEmbeddingsWhenAvailable(t *testing.T) {
	store := newTestStore(t)
	vec := []float64{1, 0, 0}
	b, err := store.CreateBelief(beliefs.NewBelief{
		Statement:      "lives in Lisbon",
		Subject:        "user",
		Vector:         vec,
		EmbeddingModel: "test-model",
	})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	embedder := &fakeEmbedder{vectors: map[string][]float64{"where do they live": vec}}
	e := New(store, embedder, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})

	matches, err := e.Recall(context.Background(), "where do they live")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(matches) != 1 || matches[0].Belief.ID != b.ID {
		t.Fatalf("expected to recall %s, got %+v", b.ID, matches)
	}
}

func TestRecallDegradesWhenEmbeddingFails(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateBelief(beliefs.NewBelief{Statement: "enjoys long hikes", Subject: "user"}); err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	embedder := &fakeEmbedder{err: context.DeadlineExceeded}
	e := New(store, embedder, nil)

	matches, err := e.Recall(context.Background(), "hikes")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected text-search fallback to still find a match, got %+v", matches)
	}
}

func TestRecallTouchesAccess(t *testing.T) {
	store := newTestStore(t)
	b, err := store.CreateBelief(beliefs.NewBelief{Statement: "keeps a reading list", Subject: "user"})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	e := New(store, nil, nil)
	if _, err := e.Recall(context.Background(), "reading"); err != nil {
		t.Fatalf("Recall: %v", err)
	}

	fetched, err := store.GetBelief(b.ID)
	if err != nil {
		t.Fatalf("GetBelief: %v", err)
	}
	if fetched.AccessCount != 1 {
		t.Errorf("expected access count 1 after recall, got %d", fetched.AccessCount)
	}
}

func TestContextBuildsStableFormat(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateBelief(beliefs.NewBelief{Statement: "drinks green tea", Subject: "user"}); err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	e := New(store, nil, nil)
	out, err := e.Context(context.Background(), "tea")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if !strings.Contains(out, "## Relevant beliefs") || !strings.Contains(out, "## Recent observations") {
		t.Errorf("expected both section headers in context output, got %q", out)
	}
	if !strings.Contains(out, "drinks green tea") {
		t.Errorf("expected the belief statement in context output, got %q", out)
	}
}

func TestContextWithNoMatches(t *testing.T) {
	store := newTestStore(t)
	e := New(store, nil, nil)

	out, err := e.Context(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if !strings.Contains(out, "No relevant beliefs") {
		t.Errorf("expected an empty-state message, got %q", out)
	}
}
