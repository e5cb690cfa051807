package reflection

import (
	"context"
	"testing"
	"time"

	"github.com/sporenet/sporenet/internal/beliefs"
	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/providers"
	"github.com/sporenet/sporenet/internal/storage"
)

type fakeChat struct {
	text string
	err  error
}

func (f *fakeChat) Chat(ctx context.Context, messages []providers.ChatMessage, opts *providers.ChatOptions) (*providers.ChatResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &providers.ChatResult{Text: f.text}, nil
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

func TestReflectMergesDuplicateCluster(t *testing.T) {
	store := newTestStore(t)

	vec := []float64{1, 0, 0}
	low, err := store.CreateBelief(beliefs.NewBelief{
		Statement: "likes tea", Subject: "user", Confidence: 0.5,
		Vector: vec, EmbeddingModel: "test-model",
	})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}
	high, err := store.CreateBelief(beliefs.NewBelief{
		Statement: "enjoys drinking tea", Subject: "user", Confidence: 0.9,
		Vector: vec, EmbeddingModel: "test-model",
	})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	e := New(store, nil, nil, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	report, err := e.Reflect(Options{SimilarityThreshold: 0.9})
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}

	if report.ClustersFound != 1 {
		t.Fatalf("expected one duplicate cluster, got %d", report.ClustersFound)
	}
	if len(report.Merged) != 1 || report.Merged[0].ID != high.ID {
		t.Fatalf("expected %s (higher confidence) to win the merge, got %+v", high.ID, report.Merged)
	}

	loser, err := store.GetBelief(low.ID)
	if err != nil {
		t.Fatalf("GetBelief: %v", err)
	}
	if loser.Status != beliefs.StatusInvalidated {
		t.Errorf("expected the losing duplicate invalidated, got status %s", loser.Status)
	}
}

func TestReflectFlagsStaleBeliefs(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateBelief(beliefs.NewBelief{
		Statement: "used to like jazz", Subject: "user", Confidence: 0.2, Stability: 0.1,
	}); err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	later := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	e := New(store, nil, nil, clock.Fixed{At: later})

	report, err := e.Reflect(Options{})
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if len(report.Stale) != 1 {
		t.Fatalf("expected one stale belief, got %+v", report.Stale)
	}
}

func TestReflectNoClustersWithoutEmbeddings(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateBelief(beliefs.NewBelief{Statement: "likes tea", Subject: "user"}); err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}
	if _, err := store.CreateBelief(beliefs.NewBelief{Statement: "enjoys tea", Subject: "user"}); err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	e := New(store, nil, nil, nil)
	report, err := e.Reflect(Options{})
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if report.ClustersFound != 0 {
		t.Errorf("expected no clusters without embeddings, got %d", report.ClustersFound)
	}
}

func TestSynthesizeRequiresChatProvider(t *testing.T) {
	store := newTestStore(t)
	e := New(store, nil, nil, nil)

	if _, err := e.Synthesize(context.Background(), "user"); err == nil {
		t.Fatal("expected an error when no chat provider is configured")
	}
}

func TestSynthesizeRequiresMultipleBeliefs(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateBelief(beliefs.NewBelief{Statement: "likes tea", Subject: "user"}); err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	e := New(store, nil, &fakeChat{text: "irrelevant"}, nil)
	if _, err := e.Synthesize(context.Background(), "user"); err == nil {
		t.Fatal("expected an error with fewer than two matching beliefs")
	}
}

func TestSynthesizeBuildsMetaBelief(t *testing.T) {
	store := newTestStore(t)
	a, err := store.CreateBelief(beliefs.NewBelief{Statement: "drinks tea every morning", Subject: "user"})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}
	b, err := store.CreateBelief(beliefs.NewBelief{Statement: "prefers herbal tea at night", Subject: "user"})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}

	chat := &fakeChat{text: "has a consistent tea-drinking habit"}
	e := New(store, nil, chat, nil)

	meta, err := e.Synthesize(context.Background(), "user")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if meta.FactType != "meta" {
		t.Errorf("expected fact_type meta, got %s", meta.FactType)
	}
	if meta.Statement != "has a consistent tea-drinking habit" {
		t.Errorf("unexpected meta statement: %q", meta.Statement)
	}

	history, err := store.History(a.ID)
	_ = b
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected the contributing belief's own history untouched, got %+v", history)
	}
}

func TestSynthesizeUsesLinkClusterOverWiderSubjectGroup(t *testing.T) {
	store := newTestStore(t)

	a, err := store.CreateBelief(beliefs.NewBelief{Statement: "drinks tea every morning", Subject: "user"})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}
	b, err := store.CreateBelief(beliefs.NewBelief{Statement: "prefers herbal tea at night", Subject: "user"})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}
	// A third same-subject belief with no link to a or b: it should be
	// excluded once a and b form their own linked cluster.
	if _, err := store.CreateBelief(beliefs.NewBelief{Statement: "unrelated user fact", Subject: "user"}); err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}
	if err := store.LinkBeliefs(a.ID, b.ID, "related", 0.5); err != nil {
		t.Fatalf("LinkBeliefs: %v", err)
	}

	chat := &fakeChat{text: "has a consistent tea-drinking habit"}
	e := New(store, nil, chat, nil)

	meta, err := e.Synthesize(context.Background(), "user")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	links, err := store.Links(meta.ID)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected the meta-belief synthesized from exactly the linked cluster of two, got %+v", links)
	}
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind()
	uf.add("a")
	uf.add("b")
	uf.add("c")
	uf.union("a", "b")

	if uf.find("a") != uf.find("b") {
		t.Error("expected a and b to share a root after union")
	}
	if uf.find("a") == uf.find("c") {
		t.Error("expected c to remain its own root")
	}
}
