package remember

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sporenet/sporenet/internal/beliefs"
	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/providers"
	"github.com/sporenet/sporenet/internal/storage"
)

// fakeEmbedder returns a fixed vector per text, keyed verbatim so
// tests can steer similarity by choosing inputs.
type fakeEmbedder struct {
	vectors map[string][]float64
	def     []float64
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.def, nil
}

// fakeChat returns canned JSON fact extractions or classification
// verdicts, in call order.
type fakeChat struct {
	responses []string
	calls     int
}

func (f *fakeChat) Chat(ctx context.Context, messages []providers.ChatMessage, opts *providers.ChatOptions) (*providers.ChatResult, error) {
	if f.calls >= len(f.responses) {
		return &providers.ChatResult{Text: "INDEPENDENT"}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return &providers.ChatResult{Text: resp}, nil
}

func newTestPipeline(t *testing.T, embedder providers.EmbeddingClient, chat providers.ChatClient) *Pipeline {
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
	return New(store, embedder, chat, "test-model")
}

func factsJSON(facts ...extractedFact) string {
	b, _ := json.Marshal(facts)
	return string(b)
}

func TestRememberCreatesBeliefWithoutProviders(t *testing.T) {
	p := newTestPipeline(t, nil, nil)

	result, err := p.Remember(context.Background(), "I love hiking on weekends", "chat")
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("expected one verbatim belief created without a chat provider, got %+v", result)
	}
	if result.Created[0].Statement != "I love hiking on weekends" {
		t.Errorf("expected the verbatim statement, got %q", result.Created[0].Statement)
	}
}

func TestRememberExtractsMultipleFacts(t *testing.T) {
	chat := &fakeChat{responses: []string{
		factsJSON(
			extractedFact{Statement: "likes tea", Subject: "user", FactType: "preference", Importance: 5, Confidence: 0.7},
			extractedFact{Statement: "works remotely", Subject: "user", FactType: "factual", Importance: 6, Confidence: 0.8},
		),
	}}
	p := newTestPipeline(t, nil, chat)

	result, err := p.Remember(context.Background(), "I drink tea and work remotely", "chat")
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if len(result.Created) != 2 {
		t.Fatalf("expected two beliefs created, got %+v", result.Created)
	}
}

func TestRememberReinforcesOnHighSimilarity(t *testing.T) {
	vec := []float64{1, 0, 0}
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"I like tea":       vec,
		"I really like tea": vec,
	}}
	chat := &fakeChat{responses: []string{
		factsJSON(extractedFact{Statement: "likes tea", Subject: "user", FactType: "preference", Confidence: 0.6}),
	}}
	p := newTestPipeline(t, embedder, chat)

	first, err := p.Remember(context.Background(), "I like tea", "chat")
	if err != nil {
		t.Fatalf("Remember (first): %v", err)
	}
	if len(first.Created) != 1 {
		t.Fatalf("expected one belief created, got %+v", first)
	}

	chat.responses = append(chat.responses, factsJSON(
		extractedFact{Statement: "likes tea", Subject: "user", FactType: "preference", Confidence: 0.6},
	))
	second, err := p.Remember(context.Background(), "I really like tea", "chat")
	if err != nil {
		t.Fatalf("Remember (second): %v", err)
	}
	if len(second.Reinforced) != 1 {
		t.Fatalf("expected the existing belief reinforced, got %+v", second)
	}
	if second.Reinforced[0].ID != first.Created[0].ID {
		t.Errorf("expected to reinforce the original belief")
	}
}

func TestRememberWeakensWithSupersessionOnStrongEvidence(t *testing.T) {
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := beliefs.New(db, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("beliefs.New: %v", err)
	}

	existing, err := store.CreateBelief(beliefs.NewBelief{
		Statement:      "prefers tabs over spaces",
		Subject:        "user",
		FactType:       "preference",
		Confidence:     0.8,
		Vector:         []float64{1, 0, 0},
		EmbeddingModel: "test-model",
	})
	if err != nil {
		t.Fatalf("CreateBelief: %v", err)
	}
	// Two reinforcements plus the initial creation gives three
	// supporting history entries, meeting the strong-evidence bar.
	if _, err := store.ReinforceBelief(existing.ID, ""); err != nil {
		t.Fatalf("ReinforceBelief: %v", err)
	}
	if _, err := store.ReinforceBelief(existing.ID, ""); err != nil {
		t.Fatalf("ReinforceBelief: %v", err)
	}
	existing, err = store.GetBelief(existing.ID)
	if err != nil {
		t.Fatalf("GetBelief: %v", err)
	}

	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"prefers spaces over tabs": {0.8, 0.6, 0},
	}}
	chat := &fakeChat{responses: []string{
		factsJSON(extractedFact{Statement: "prefers spaces over tabs", Subject: "user", FactType: "preference", Confidence: 0.6}),
		"CONTRADICTION",
	}}
	p := New(store, embedder, chat, "test-model")

	result, err := p.Remember(context.Background(), "actually I prefer spaces", "chat")
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if len(result.Weakened) != 1 {
		t.Fatalf("expected the existing belief weakened rather than invalidated, got %+v", result)
	}

	wantReduction := 0.2 // min(0.2, 1/(3+1))
	wantConfidence := existing.Confidence - wantReduction
	if got := result.Weakened[0].Confidence; got < wantConfidence-0.001 || got > wantConfidence+0.001 {
		t.Errorf("expected weakened confidence ~%v, got %v", wantConfidence, got)
	}

	links, err := store.Links(result.Created[0].ID)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	found := false
	for _, l := range links {
		if l.LinkType == "supersedes" && l.TargetBeliefID == existing.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a supersedes link from the new belief to the weakened one, got %+v", links)
	}
}

func TestClampHelpers(t *testing.T) {
	if clampConfidence(0) != 0.6 {
		t.Error("expected zero confidence to default to 0.6")
	}
	if clampConfidence(1.5) != 1 {
		t.Error("expected confidence to cap at 1")
	}
	if clampImportance(0) != 5 {
		t.Error("expected zero importance to default to 5")
	}
	if clampImportance(20) != 10 {
		t.Error("expected importance to cap at 10")
	}
	if normalizeFactType("BOGUS") != "factual" {
		t.Error("expected an unrecognized fact type to normalize to 'factual'")
	}
	if normalizeFactType("Preference") != "preference" {
		t.Error("expected fact type normalization to lowercase a valid type")
	}
}
