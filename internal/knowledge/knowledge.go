// Package knowledge is the knowledge store: ingesting external
// content (articles, docs, pages) as normalized sources, chunking them
// for retrieval, and answering hybrid knowledge-search queries.
// Grounded on internal/database/operations_source.go's DataSource CRUD
// shape and internal/memory/chunker.go's packing algorithm.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/corerr"
	"github.com/sporenet/sporenet/internal/ids"
	"github.com/sporenet/sporenet/internal/logging"
	"github.com/sporenet/sporenet/internal/providers"
	"github.com/sporenet/sporenet/internal/storage"
	"github.com/sporenet/sporenet/internal/vectormath"
)

var log = logging.GetLogger("knowledge")

const (
	titleTagBonus  = 0.15
	knowledgeCutoff = 0.5
	maxPerSource    = 2
	minSourcesForCap = 3
)

// Source is one ingested piece of external content.
type Source struct {
	ID            string
	URL           string
	Title         string
	Hostname      string
	Tags          []string
	LastFetchedAt *time.Time
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chunk is one packed segment of a source's content.
type Chunk struct {
	ID         string
	SourceID   string
	ChunkIndex int
	Content    string
	CreatedAt  time.Time
}

// Store is the knowledge persistence and search layer.
type Store struct {
	db       *storage.Store
	embedder providers.EmbeddingClient
	clock    clock.Clock
	embedModel string
}

// New wraps db, running knowledge-store migrations first.
func New(db *storage.Store, embedder providers.EmbeddingClient, clk clock.Clock, embedModel string) (*Store, error) {
	if err := db.Migrate(PluginName, Migrations()); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{db: db, embedder: embedder, clock: clk, embedModel: embedModel}, nil
}

// LearnResult reports what Learn did.
type LearnResult struct {
	Source    *Source
	Chunks    int
	Skipped   bool
}

// Learn ingests content from rawURL under title, chunking and
// embedding it. If the source already exists and force is false, the
// existing source is returned unchanged (Skipped=true); force
// re-chunks and re-embeds it in place.
func (s *Store) Learn(ctx context.Context, rawURL, title, content string, tags []string, force bool) (*LearnResult, error) {
	normalized, err := normalizeURL(rawURL)
	if err != nil {
		return nil, corerr.Wrap(corerr.InvalidArgument, "normalize source url", err)
	}

	existing, err := s.getSourceByURL(normalized)
	if err != nil && !corerr.Is(err, corerr.NotFound) {
		return nil, err
	}
	if existing != nil && !force {
		return &LearnResult{Source: existing, Skipped: true}, nil
	}

	hostname := ""
	if parsed, err := url.Parse(normalized); err == nil {
		hostname = parsed.Hostname()
	}

	now := s.clock.Now()
	var src *Source
	if existing != nil {
		src = existing
		src.Title = title
		src.Tags = tags
		src.UpdatedAt = now
		if err := s.updateSourceMeta(src); err != nil {
			return nil, err
		}
		if err := s.deleteChunksForSource(src.ID); err != nil {
			return nil, err
		}
	} else {
		src = &Source{
			ID: ids.New(), URL: normalized, Title: title, Hostname: hostname,
			Tags: tags, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.insertSource(src); err != nil {
			return nil, err
		}
	}

	n, err := s.chunkAndStore(ctx, src, content)
	if err != nil {
		return nil, err
	}

	if err := s.markFetched(src.ID, now); err != nil {
		log.Warn("failed to record fetch time", "source_id", src.ID, "error", err)
	}

	return &LearnResult{Source: src, Chunks: n}, nil
}

func (s *Store) chunkAndStore(ctx context.Context, src *Source, content string) (int, error) {
	chunks := chunkContent(src.Title, src.Hostname, content)
	for i, text := range chunks {
		c := &Chunk{ID: ids.New(), SourceID: src.ID, ChunkIndex: i, Content: text, CreatedAt: s.clock.Now()}

		var vector []float64
		if s.embedder != nil {
			if v, err := s.embedder.Embed(ctx, text); err != nil {
				log.Warn("chunk embedding failed, continuing without it", "source_id", src.ID, "error", err)
			} else {
				vector = v
			}
		}

		if err := s.insertChunk(c, vector); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

// ReindexSource strips the contextual header back off every chunk,
// re-chunks the combined body, and re-embeds it. Used when the
// chunking or embedding strategy changes underneath existing content.
func (s *Store) ReindexSource(ctx context.Context, sourceID string) error {
	src, err := s.GetSource(sourceID)
	if err != nil {
		return err
	}

	chunks, err := s.ChunksForSource(sourceID)
	if err != nil {
		return err
	}

	var body strings.Builder
	for i, c := range chunks {
		if i > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(stripHeader(c.Content))
	}

	if err := s.deleteChunksForSource(sourceID); err != nil {
		return err
	}

	_, err = s.chunkAndStore(ctx, src, body.String())
	return err
}

func stripHeader(content string) string {
	idx := strings.Index(content, "\n\n")
	if idx == -1 {
		return content
	}
	head := content[:idx]
	if strings.HasPrefix(head, "# ") && strings.Contains(head, "Source:") {
		return content[idx+2:]
	}
	return content
}

// ForgetSource deletes a source and its chunks, in that explicit
// order: chunk FTS mirror rows first via the cascading delete trigger,
// then the source row, so no chunk ever outlives its source.
func (s *Store) ForgetSource(sourceID string) error {
	if err := s.deleteChunksForSource(sourceID); err != nil {
		return err
	}
	_, err := s.db.DB().Exec(`DELETE FROM knowledge_sources WHERE id = ?`, sourceID)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "delete source", err)
	}
	return nil
}

// scoredChunk pairs a chunk with its relevance score.
type scoredChunk struct {
	Chunk  Chunk
	Source *Source
	Score  float64
}

// Search performs the three-phase hybrid knowledge search: FTS5 full
// text (phase 1), title/tag enrichment for sources matching the query
// even when chunk text doesn't (phase 1b), embedding similarity
// (phase 2, falling back to a flat 0.5 score when no embedder is
// configured), scored and capped at knowledgeCutoff with a title/tag
// bonus, and finally a source-diversity cap once three or more
// distinct sources are present in the result set.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	candidates := map[string]*scoredChunk{}

	ftsMatches, err := s.searchFTS(query, limit*3)
	if err != nil {
		return nil, err
	}
	for _, m := range ftsMatches {
		m.Score = 0.5
		candidates[m.Chunk.ID] = &m
	}

	titleMatches, err := s.searchByTitleOrTag(query, limit*2)
	if err != nil {
		return nil, err
	}
	titleMatched := map[string]bool{}
	for _, m := range titleMatches {
		titleMatched[m.Chunk.ID] = true
		if existing, ok := candidates[m.Chunk.ID]; ok {
			existing.Score += titleTagBonus
		} else {
			m.Score = 0.5 + titleTagBonus
			candidates[m.Chunk.ID] = &m
		}
	}

	if s.embedder != nil {
		if vector, err := s.embedder.Embed(ctx, query); err == nil {
			for _, c := range candidates {
				chunkVector, err := s.getChunkVector(c.Chunk.ID)
				if err != nil || chunkVector == nil {
					continue
				}
				c.Score = vectormath.Cosine(vector, chunkVector)
				if titleMatched[c.Chunk.ID] {
					c.Score += titleTagBonus
				}
			}
		} else {
			log.Warn("knowledge query embedding failed, using text-only scores", "error", err)
		}
	}

	var results []scoredChunk
	for _, c := range candidates {
		if c.Score >= knowledgeCutoff {
			results = append(results, *c)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	results = capBySourceDiversity(results, limit)
	return results, nil
}

// capBySourceDiversity caps each source at maxPerSource chunks once
// three or more distinct sources are represented, so one heavily
// chunked document can't crowd out everything else.
func capBySourceDiversity(results []scoredChunk, limit int) []scoredChunk {
	distinctSources := map[string]bool{}
	for _, r := range results {
		distinctSources[r.Chunk.SourceID] = true
	}

	var out []scoredChunk
	perSource := map[string]int{}
	for _, r := range results {
		if len(distinctSources) >= minSourcesForCap && perSource[r.Chunk.SourceID] >= maxPerSource {
			continue
		}
		out = append(out, r)
		perSource[r.Chunk.SourceID]++
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (s *Store) searchFTS(query string, limit int) ([]scoredChunk, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.DB().Query(`
		SELECT c.id, c.source_id, c.chunk_index, c.content, c.created_at, bm25(knowledge_chunks_fts) AS rank
		FROM knowledge_chunks_fts
		JOIN knowledge_chunks c ON c.id = knowledge_chunks_fts.id
		WHERE knowledge_chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "fts search chunks", err)
	}
	defer rows.Close()

	var out []scoredChunk
	for rows.Next() {
		var c Chunk
		var rank float64
		if err := rows.Scan(&c.ID, &c.SourceID, &c.ChunkIndex, &c.Content, &c.CreatedAt, &rank); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "scan chunk fts result", err)
		}
		src, err := s.GetSource(c.SourceID)
		if err != nil {
			continue
		}
		out = append(out, scoredChunk{Chunk: c, Source: src, Score: -rank})
	}
	return out, nil
}

func (s *Store) searchByTitleOrTag(query string, limit int) ([]scoredChunk, error) {
	lowerQuery := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.DB().Query(`
		SELECT id FROM knowledge_sources
		WHERE LOWER(title) LIKE ? OR LOWER(tags) LIKE ?
		LIMIT ?
	`, lowerQuery, lowerQuery, limit)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "search sources by title/tag", err)
	}
	defer rows.Close()

	var sourceIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "scan matching source id", err)
		}
		sourceIDs = append(sourceIDs, id)
	}

	var out []scoredChunk
	for _, id := range sourceIDs {
		src, err := s.GetSource(id)
		if err != nil {
			continue
		}
		chunks, err := s.ChunksForSource(id)
		if err != nil {
			continue
		}
		for _, c := range chunks {
			out = append(out, scoredChunk{Chunk: c, Source: src})
		}
	}
	return out, nil
}

func (s *Store) getChunkVector(chunkID string) ([]float64, error) {
	var vecStr sql.NullString
	err := s.db.DB().QueryRow(`SELECT vector FROM knowledge_chunks WHERE id = ?`, chunkID).Scan(&vecStr)
	if err != nil {
		return nil, err
	}
	if !vecStr.Valid {
		return nil, nil
	}
	return vectormath.Decode([]byte(vecStr.String))
}

// GetSource loads a source by exact id.
func (s *Store) GetSource(id string) (*Source, error) {
	return s.scanSourceRow(s.db.DB().QueryRow(`
		SELECT id, url, title, hostname, tags, last_fetched_at, error, created_at, updated_at
		FROM knowledge_sources WHERE id = ?
	`, id))
}

func (s *Store) getSourceByURL(normalizedURL string) (*Source, error) {
	return s.scanSourceRow(s.db.DB().QueryRow(`
		SELECT id, url, title, hostname, tags, last_fetched_at, error, created_at, updated_at
		FROM knowledge_sources WHERE url = ?
	`, normalizedURL))
}

func (s *Store) scanSourceRow(row *sql.Row) (*Source, error) {
	var src Source
	var tagsJSON string
	var lastFetched sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&src.ID, &src.URL, &src.Title, &src.Hostname, &tagsJSON, &lastFetched, &errMsg, &src.CreatedAt, &src.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, corerr.NotFoundf("knowledge source not found")
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "scan knowledge source", err)
	}
	src.Tags = splitTags(tagsJSON)
	if lastFetched.Valid {
		src.LastFetchedAt = &lastFetched.Time
	}
	src.Error = errMsg.String
	return &src, nil
}

// ListSources returns every known source, newest first.
func (s *Store) ListSources() ([]*Source, error) {
	rows, err := s.db.DB().Query(`
		SELECT id, url, title, hostname, tags, last_fetched_at, error, created_at, updated_at
		FROM knowledge_sources ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "list knowledge sources", err)
	}
	defer rows.Close()

	var out []*Source
	for rows.Next() {
		var src Source
		var tagsJSON string
		var lastFetched sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&src.ID, &src.URL, &src.Title, &src.Hostname, &tagsJSON, &lastFetched, &errMsg, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "scan knowledge source", err)
		}
		src.Tags = splitTags(tagsJSON)
		if lastFetched.Valid {
			src.LastFetchedAt = &lastFetched.Time
		}
		src.Error = errMsg.String
		out = append(out, &src)
	}
	return out, nil
}

// ChunksForSource returns a source's chunks in index order.
func (s *Store) ChunksForSource(sourceID string) ([]Chunk, error) {
	rows, err := s.db.DB().Query(`
		SELECT id, source_id, chunk_index, content, created_at
		FROM knowledge_chunks WHERE source_id = ? ORDER BY chunk_index ASC
	`, sourceID)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "list source chunks", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.ChunkIndex, &c.Content, &c.CreatedAt); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "scan source chunk", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) insertSource(src *Source) error {
	_, err := s.db.DB().Exec(`
		INSERT INTO knowledge_sources (id, url, title, hostname, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, src.ID, src.URL, src.Title, src.Hostname, joinTags(src.Tags), src.CreatedAt, src.UpdatedAt)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "insert knowledge source", err)
	}
	return nil
}

func (s *Store) updateSourceMeta(src *Source) error {
	_, err := s.db.DB().Exec(
		`UPDATE knowledge_sources SET title = ?, tags = ?, updated_at = ? WHERE id = ?`,
		src.Title, joinTags(src.Tags), src.UpdatedAt, src.ID,
	)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "update knowledge source", err)
	}
	return nil
}

func (s *Store) markFetched(sourceID string, at time.Time) error {
	_, err := s.db.DB().Exec(`UPDATE knowledge_sources SET last_fetched_at = ? WHERE id = ?`, at, sourceID)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "mark source fetched", err)
	}
	return nil
}

func (s *Store) insertChunk(c *Chunk, vector []float64) error {
	encoded, err := vectormath.Encode(vector)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "encode chunk embedding", err)
	}
	_, err = s.db.DB().Exec(`
		INSERT INTO knowledge_chunks (id, source_id, chunk_index, content, vector, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.SourceID, c.ChunkIndex, c.Content, nullableBytes(encoded), s.embedModel, c.CreatedAt)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "insert knowledge chunk", err)
	}
	return nil
}

func nullableBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

func (s *Store) deleteChunksForSource(sourceID string) error {
	_, err := s.db.DB().Exec(`DELETE FROM knowledge_chunks WHERE source_id = ?`, sourceID)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "delete source chunks", err)
	}
	return nil
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func splitTags(tagsJSON string) []string {
	trimmed := strings.Trim(tagsJSON, "[]")
	if trimmed == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(trimmed, ",") {
		out = append(out, strings.Trim(strings.TrimSpace(part), `"`))
	}
	return out
}

var ftsStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "to": true,
	"of": true, "in": true, "on": true, "at": true, "for": true, "with": true,
}

// buildFTSQuery mirrors the sanitization in internal/beliefs: strip
// FTS5 operator characters and stop words, OR-join the remainder.
func buildFTSQuery(query string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '"', '*', '^', ':', '(', ')', '-':
			return ' '
		}
		return r
	}, query)

	fields := strings.Fields(cleaned)
	var terms []string
	for _, f := range fields {
		if ftsStopWords[strings.ToLower(f)] {
			continue
		}
		terms = append(terms, fmt.Sprintf(`"%s"`, f))
	}
	if len(terms) == 0 {
		return ""
	}
	return strings.Join(terms, " OR ")
}
