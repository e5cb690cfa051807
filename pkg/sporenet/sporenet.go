// Package sporenet is the top-level façade wiring storage, the belief
// store, the knowledge store, background jobs, and the remember/
// retrieval/reflection engines into the Memory, Knowledge, and Jobs
// surfaces every external caller (REST API, CLI) uses. Grounded on the
// teacher's top-level service composition in cmd/mycelicmemory, which
// wires internal/database + internal/ai + internal/memory together
// behind one struct passed to the API server.
package sporenet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sporenet/sporenet/internal/beliefs"
	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/jobs"
	"github.com/sporenet/sporenet/internal/knowledge"
	"github.com/sporenet/sporenet/internal/providers"
	"github.com/sporenet/sporenet/internal/providers/ollama"
	"github.com/sporenet/sporenet/internal/reflection"
	"github.com/sporenet/sporenet/internal/remember"
	"github.com/sporenet/sporenet/internal/retrieval"
	"github.com/sporenet/sporenet/internal/storage"
	"github.com/sporenet/sporenet/pkg/config"
)

// Engine is the fully wired application: Memory, Knowledge, and Jobs
// surfaces over one shared SQLite file.
type Engine struct {
	Memory    *Memory
	Knowledge *Knowledge
	Jobs      *Jobs

	db *storage.Store
}

// Open wires every component from cfg, defaulting the embedding/chat
// collaborators to the configured Ollama endpoint when enabled.
func Open(cfg *config.Config) (*Engine, error) {
	db, err := storage.Open(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	var embedder providers.EmbeddingClient
	var chat providers.ChatClient
	if cfg.Ollama.Enabled {
		client := ollama.New(ollama.Config{
			BaseURL:        cfg.Ollama.BaseURL,
			EmbeddingModel: cfg.Ollama.EmbeddingModel,
			ChatModel:      cfg.Ollama.ChatModel,
		})
		embedder = client
		chat = client
	}

	clk := clock.System{}

	beliefStore, err := beliefs.New(db, clk)
	if err != nil {
		db.Close()
		return nil, err
	}

	knowledgeStore, err := knowledge.New(db, embedder, clk, cfg.Ollama.EmbeddingModel)
	if err != nil {
		db.Close()
		return nil, err
	}

	jobStore, err := jobs.New(db, clk)
	if err != nil {
		db.Close()
		return nil, err
	}

	pipeline := remember.New(beliefStore, embedder, chat, cfg.Ollama.EmbeddingModel)
	retriever := retrieval.New(beliefStore, embedder, clk)
	reflector := reflection.New(beliefStore, embedder, chat, clk)

	return &Engine{
		db: db,
		Memory: &Memory{
			store:     beliefStore,
			pipeline:  pipeline,
			retriever: retriever,
			reflector: reflector,
			pruneDefault: cfg.Beliefs.PruneThreshold,
		},
		Knowledge: &Knowledge{store: knowledgeStore},
		Jobs:      &Jobs{store: jobStore},
	}, nil
}

// Close releases the underlying database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Memory exposes the belief lifecycle operations.
type Memory struct {
	store        *beliefs.Store
	pipeline     *remember.Pipeline
	retriever    *retrieval.Engine
	reflector    *reflection.Engine
	pruneDefault float64
}

// Remember ingests one episode of content.
func (m *Memory) Remember(ctx context.Context, content, source string) (*remember.Result, error) {
	return m.pipeline.Remember(ctx, content, source)
}

// Recall performs hybrid retrieval over active beliefs.
func (m *Memory) Recall(ctx context.Context, query string) ([]retrieval.Match, error) {
	return m.retriever.Recall(ctx, query)
}

// Context builds the stable-format context block for a query.
func (m *Memory) Context(ctx context.Context, query string) (string, error) {
	return m.retriever.Context(ctx, query)
}

// Beliefs lists beliefs with the given status.
func (m *Memory) Beliefs(status string) ([]*beliefs.Belief, error) {
	return m.store.ListByStatus(status)
}

// Forget resolves idOrPrefix and marks the belief forgotten.
func (m *Memory) Forget(idOrPrefix string) (*beliefs.Belief, error) {
	return m.store.ForgetBelief(idOrPrefix)
}

// Prune marks every active belief at or below threshold as pruned. A
// zero threshold uses the configured default.
func (m *Memory) Prune(threshold float64) ([]string, error) {
	if threshold == 0 {
		threshold = m.pruneDefault
	}
	return m.store.PruneBeliefs(threshold)
}

// Reflect runs a deduplication and staleness pass.
func (m *Memory) Reflect(opts reflection.Options) (*reflection.Report, error) {
	return m.reflector.Reflect(opts)
}

// Synthesize generates a meta-belief for subject.
func (m *Memory) Synthesize(ctx context.Context, subject string) (*beliefs.Belief, error) {
	return m.reflector.Synthesize(ctx, subject)
}

// History returns a belief's change log.
func (m *Memory) History(beliefID string) ([]beliefs.BeliefChange, error) {
	return m.store.History(beliefID)
}

// Stats summarizes the belief store's contents.
type Stats struct {
	Active      int
	Invalidated int
	Forgotten   int
	Pruned      int
}

// Stats counts beliefs by status.
func (m *Memory) Stats() (*Stats, error) {
	stats := &Stats{}
	for status, counter := range map[string]*int{
		beliefs.StatusActive:      &stats.Active,
		beliefs.StatusInvalidated: &stats.Invalidated,
		beliefs.StatusForgotten:   &stats.Forgotten,
		beliefs.StatusPruned:      &stats.Pruned,
	} {
		list, err := m.store.ListByStatus(status)
		if err != nil {
			return nil, err
		}
		*counter = len(list)
	}
	return stats, nil
}

// exportEnvelope is the JSON shape written by Export and read by Import.
type exportEnvelope struct {
	ExportedAt time.Time         `json:"exported_at"`
	Beliefs    []*beliefs.Belief `json:"beliefs"`
}

// Export serializes every belief (any status) to the envelope format.
func (m *Memory) Export() ([]byte, error) {
	var all []*beliefs.Belief
	for _, status := range []string{beliefs.StatusActive, beliefs.StatusInvalidated, beliefs.StatusForgotten, beliefs.StatusPruned} {
		list, err := m.store.ListByStatus(status)
		if err != nil {
			return nil, err
		}
		all = append(all, list...)
	}

	env := exportEnvelope{ExportedAt: time.Now().UTC(), Beliefs: all}
	return json.MarshalIndent(env, "", "  ")
}

// Import loads beliefs from the envelope format. Existing ids are
// left untouched (idempotent-by-id): only beliefs whose id isn't
// already present are created.
func (m *Memory) Import(data []byte) (int, error) {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("parse import envelope: %w", err)
	}

	imported := 0
	for _, b := range env.Beliefs {
		if _, err := m.store.GetBelief(b.ID); err == nil {
			continue
		}
		if _, err := m.store.CreateBelief(beliefs.NewBelief{
			Statement:  b.Statement,
			Subject:    b.Subject,
			FactType:   b.FactType,
			Confidence: b.Confidence,
			Stability:  b.Stability,
			Importance: b.Importance,
		}); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// Knowledge exposes the external-content ingestion and search surface.
type Knowledge struct {
	store *knowledge.Store
}

// Learn ingests content from a URL.
func (k *Knowledge) Learn(ctx context.Context, url, title, content string, tags []string, force bool) (*knowledge.LearnResult, error) {
	return k.store.Learn(ctx, url, title, content, tags, force)
}

// Search performs hybrid knowledge search.
func (k *Knowledge) Search(ctx context.Context, query string, limit int) ([]knowledge.Chunk, error) {
	scored, err := k.store.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]knowledge.Chunk, len(scored))
	for i, s := range scored {
		out[i] = s.Chunk
	}
	return out, nil
}

// Sources lists every known knowledge source.
func (k *Knowledge) Sources() ([]*knowledge.Source, error) {
	return k.store.ListSources()
}

// SourceChunks returns a source's chunks.
func (k *Knowledge) SourceChunks(sourceID string) ([]knowledge.Chunk, error) {
	return k.store.ChunksForSource(sourceID)
}

// ForgetSource deletes a source and its chunks.
func (k *Knowledge) ForgetSource(sourceID string) error {
	return k.store.ForgetSource(sourceID)
}

// ReindexSource re-chunks and re-embeds a source's content.
func (k *Knowledge) ReindexSource(ctx context.Context, sourceID string) error {
	return k.store.ReindexSource(ctx, sourceID)
}

// ReindexAll re-chunks and re-embeds every known source.
func (k *Knowledge) ReindexAll(ctx context.Context) error {
	sources, err := k.store.ListSources()
	if err != nil {
		return err
	}
	for _, src := range sources {
		if err := k.store.ReindexSource(ctx, src.ID); err != nil {
			return fmt.Errorf("reindex source %s: %w", src.ID, err)
		}
	}
	return nil
}

// Jobs exposes the background job tracker.
type Jobs struct {
	store *jobs.Store
}

// Upsert creates or updates a job by id.
func (j *Jobs) Upsert(id, kind, status, detail string) (*jobs.Job, error) {
	return j.store.Upsert(id, kind, status, detail)
}

// Get loads a job by id.
func (j *Jobs) Get(id string) (*jobs.Job, error) {
	return j.store.Get(id)
}

// List returns jobs, optionally filtered by status.
func (j *Jobs) List(status string) ([]*jobs.Job, error) {
	return j.store.List(status)
}

// UpdateStatus transitions a job's status.
func (j *Jobs) UpdateStatus(id, status, errMsg string) error {
	return j.store.UpdateStatus(id, status, errMsg)
}

// ClearCompleted deletes completed/failed jobs older than olderThan.
func (j *Jobs) ClearCompleted(olderThan time.Duration) (int64, error) {
	return j.store.ClearCompleted(olderThan)
}
