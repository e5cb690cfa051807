// Package beliefs is the belief store: the lifecycle of individual
// beliefs and episodes, their embeddings, change history, and the
// similarity links between them. Grounded on the teacher's
// internal/database memories table and memories_fts mirror, reshaped
// around the belief/episode data model instead of flat memories.
package beliefs

import (
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/corerr"
	"github.com/sporenet/sporenet/internal/ids"
	"github.com/sporenet/sporenet/internal/logging"
	"github.com/sporenet/sporenet/internal/storage"
	"github.com/sporenet/sporenet/internal/vectormath"
)

// PluginName identifies this store's migrations in storage's
// _migrations table.
const PluginName = "beliefs"

var log = logging.GetLogger("beliefs")

// Status values a belief can hold across its lifecycle.
const (
	StatusActive      = "active"
	StatusInvalidated = "invalidated"
	StatusForgotten   = "forgotten"
	StatusPruned      = "pruned"
)

// Belief is a single piece of durable, decaying knowledge about the
// user or the world.
type Belief struct {
	ID              string
	Statement       string
	Subject         string
	FactType        string
	Confidence      float64
	Stability       float64
	Importance      int
	Status          string
	SupersededBy    *string
	SourceEpisodeID *string
	AccessCount     int
	LastAccessedAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectiveConfidence applies exponential decay against now:
// eff = confidence * 2^(-Δdays/(30*stability)), with Δdays measured
// from the belief's last update so reinforcement resets the clock.
func (b Belief) EffectiveConfidence(now time.Time) float64 {
	deltaDays := now.Sub(b.UpdatedAt).Hours() / 24
	if deltaDays <= 0 {
		return b.Confidence
	}
	halfLives := deltaDays / (30 * b.Stability)
	return b.Confidence * math.Pow(2, -halfLives)
}

// Episode is a single observation (typically one conversational turn)
// from which beliefs are extracted.
type Episode struct {
	ID        string
	Content   string
	Source    string
	CreatedAt time.Time
}

// Store is the belief and episode persistence layer.
type Store struct {
	db    *storage.Store
	clock clock.Clock
}

// New wraps db, running belief-store migrations first.
func New(db *storage.Store, clk clock.Clock) (*Store, error) {
	if err := db.Migrate(PluginName, Migrations()); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{db: db, clock: clk}, nil
}

// CreateEpisode inserts a new episode and returns it.
func (s *Store) CreateEpisode(content, source string) (*Episode, error) {
	ep := &Episode{
		ID:        ids.New(),
		Content:   content,
		Source:    source,
		CreatedAt: s.clock.Now(),
	}
	_, err := s.db.DB().Exec(
		`INSERT INTO episodes (id, content, source, created_at) VALUES (?, ?, ?, ?)`,
		ep.ID, ep.Content, ep.Source, ep.CreatedAt,
	)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "insert episode", err)
	}
	return ep, nil
}

// SaveEpisodeEmbedding stores the episode's embedding vector.
func (s *Store) SaveEpisodeEmbedding(episodeID string, vector []float64, model string) error {
	return s.saveEmbedding("episode_embeddings", "episode_id", episodeID, vector, model)
}

// SaveBeliefEmbedding stores the belief's embedding vector.
func (s *Store) SaveBeliefEmbedding(beliefID string, vector []float64, model string) error {
	return s.saveEmbedding("belief_embeddings", "belief_id", beliefID, vector, model)
}

func (s *Store) saveEmbedding(table, idCol, id string, vector []float64, model string) error {
	encoded, err := vectormath.Encode(vector)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "encode embedding", err)
	}
	_, err = s.db.DB().Exec(
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s, vector, model) VALUES (?, ?, ?)`, table, idCol),
		id, string(encoded), model,
	)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "save embedding", err)
	}
	return nil
}

// NewBelief describes a belief to create.
type NewBelief struct {
	Statement       string
	Subject         string
	FactType        string
	Confidence      float64
	Stability       float64
	Importance      int
	SourceEpisodeID string
	Vector          []float64
	EmbeddingModel  string
}

// CreateBelief inserts a new active belief, recording a "created"
// change-history row and the episode/belief link if a source episode
// is given.
func (s *Store) CreateBelief(nb NewBelief) (*Belief, error) {
	now := s.clock.Now()
	if nb.Stability == 0 {
		nb.Stability = 1.0
	}
	if nb.Confidence == 0 {
		nb.Confidence = 0.6
	}
	if nb.Importance == 0 {
		nb.Importance = 5
	}
	if nb.FactType == "" {
		nb.FactType = "insight"
	}

	b := &Belief{
		ID:         ids.New(),
		Statement:  nb.Statement,
		Subject:    strings.ToLower(strings.TrimSpace(nb.Subject)),
		FactType:   nb.FactType,
		Confidence: nb.Confidence,
		Stability:  nb.Stability,
		Importance: nb.Importance,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if nb.SourceEpisodeID != "" {
		id := nb.SourceEpisodeID
		b.SourceEpisodeID = &id
	}

	tx, err := s.db.DB().Begin()
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "begin create belief", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO beliefs (id, statement, subject, fact_type, confidence, stability, importance, status, source_episode_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Statement, b.Subject, b.FactType, b.Confidence, b.Stability, b.Importance, b.Status, b.SourceEpisodeID, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "insert belief", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO belief_changes (id, belief_id, change_type, previous_confidence, new_confidence, episode_id, created_at)
		 VALUES (?, ?, 'created', NULL, ?, ?, ?)`,
		ids.New(), b.ID, b.Confidence, nb.SourceEpisodeID, now,
	); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "record belief creation", err)
	}

	if nb.SourceEpisodeID != "" {
		if _, err := tx.Exec(
			`INSERT INTO episode_beliefs (episode_id, belief_id, role, created_at) VALUES (?, ?, 'created', ?)`,
			nb.SourceEpisodeID, b.ID, now,
		); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "link episode to belief", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "commit create belief", err)
	}

	if nb.Vector != nil {
		if err := s.SaveBeliefEmbedding(b.ID, nb.Vector, nb.EmbeddingModel); err != nil {
			log.Warn("failed to save belief embedding", "belief_id", b.ID, "error", err)
		}
	}

	return b, nil
}

// ReinforceBelief bumps confidence by 0.1 (capped at 1.0) and
// stability by 0.1 (capped at 5.0), recording the change and
// optionally an episode link.
func (s *Store) ReinforceBelief(beliefID, episodeID string) (*Belief, error) {
	b, err := s.GetBelief(beliefID)
	if err != nil {
		return nil, err
	}

	prevConfidence := b.Confidence
	newConfidence := math.Min(1.0, b.Confidence+0.1)
	newStability := math.Min(5.0, b.Stability+0.1)
	now := s.clock.Now()

	tx, err := s.db.DB().Begin()
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "begin reinforce", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE beliefs SET confidence = ?, stability = ?, updated_at = ? WHERE id = ?`,
		newConfidence, newStability, now, beliefID,
	); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "update belief", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO belief_changes (id, belief_id, change_type, previous_confidence, new_confidence, episode_id, created_at)
		 VALUES (?, ?, 'reinforced', ?, ?, ?, ?)`,
		ids.New(), beliefID, prevConfidence, newConfidence, episodeID, now,
	); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "record reinforcement", err)
	}

	if episodeID != "" {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO episode_beliefs (episode_id, belief_id, role, created_at) VALUES (?, ?, 'reinforced', ?)`,
			episodeID, beliefID, now,
		); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "link episode to reinforcement", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "commit reinforce", err)
	}

	return s.GetBelief(beliefID)
}

// WeakenBelief lowers confidence (used for contradiction with k>=3
// supporting beliefs) without changing status.
func (s *Store) WeakenBelief(beliefID, episodeID, reason string, newConfidence float64) (*Belief, error) {
	return s.changeConfidence(beliefID, episodeID, "weakened", reason, newConfidence)
}

func (s *Store) changeConfidence(beliefID, episodeID, changeType, reason string, newConfidence float64) (*Belief, error) {
	b, err := s.GetBelief(beliefID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	tx, err := s.db.DB().Begin()
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "begin change confidence", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE beliefs SET confidence = ?, updated_at = ? WHERE id = ?`, newConfidence, now, beliefID); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "update belief confidence", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO belief_changes (id, belief_id, change_type, previous_confidence, new_confidence, reason, episode_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ids.New(), beliefID, changeType, b.Confidence, newConfidence, reason, episodeID, now,
	); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "record confidence change", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "commit change confidence", err)
	}

	return s.GetBelief(beliefID)
}

// InvalidateBelief marks a belief invalidated, optionally recording
// which belief superseded it (contradiction with k<3 support).
func (s *Store) InvalidateBelief(beliefID, episodeID, reason string, supersededBy string) (*Belief, error) {
	now := s.clock.Now()

	tx, err := s.db.DB().Begin()
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "begin invalidate", err)
	}
	defer tx.Rollback()

	var supersededByArg interface{}
	if supersededBy != "" {
		supersededByArg = supersededBy
	}

	if _, err := tx.Exec(
		`UPDATE beliefs SET status = 'invalidated', superseded_by = ?, updated_at = ? WHERE id = ?`,
		supersededByArg, now, beliefID,
	); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "invalidate belief", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO belief_changes (id, belief_id, change_type, reason, episode_id, created_at)
		 VALUES (?, ?, 'invalidated', ?, ?, ?)`,
		ids.New(), beliefID, reason, episodeID, now,
	); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "record invalidation", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO episode_beliefs (episode_id, belief_id, role, created_at) VALUES (?, ?, 'contradicted', ?)`,
		episodeID, beliefID, now,
	); err != nil && episodeID != "" {
		return nil, corerr.Wrap(corerr.StorageFailure, "link episode to invalidation", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "commit invalidate", err)
	}

	return s.GetBelief(beliefID)
}

// ForgetBelief resolves idOrPrefix against active beliefs and marks
// the unique match forgotten. Returns corerr.NotFound / corerr.Ambiguous
// when resolution fails.
func (s *Store) ForgetBelief(idOrPrefix string) (*Belief, error) {
	id, err := s.db.ResolveIDPrefix("beliefs", idOrPrefix, "status = 'active'")
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if _, err := s.db.DB().Exec(
		`UPDATE beliefs SET status = 'forgotten', updated_at = ? WHERE id = ?`, now, id,
	); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "forget belief", err)
	}
	if _, err := s.db.DB().Exec(
		`INSERT INTO belief_changes (id, belief_id, change_type, created_at) VALUES (?, ?, 'forgotten', ?)`,
		ids.New(), id, now,
	); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "record forget", err)
	}

	return s.GetBelief(id)
}

// PruneBeliefs marks every active belief whose effective confidence is
// at or below threshold as pruned, returning the ids affected.
func (s *Store) PruneBeliefs(threshold float64) ([]string, error) {
	candidates, err := s.ListByStatus(StatusActive)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var pruned []string
	for _, b := range candidates {
		if b.EffectiveConfidence(now) > threshold {
			continue
		}
		if _, err := s.db.DB().Exec(`UPDATE beliefs SET status = 'pruned', updated_at = ? WHERE id = ?`, now, b.ID); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "prune belief", err)
		}
		if _, err := s.db.DB().Exec(
			`INSERT INTO belief_changes (id, belief_id, change_type, created_at) VALUES (?, ?, 'pruned', ?)`,
			ids.New(), b.ID, now,
		); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "record prune", err)
		}
		pruned = append(pruned, b.ID)
	}
	return pruned, nil
}

// GetBelief loads a single belief by exact id.
func (s *Store) GetBelief(id string) (*Belief, error) {
	row := s.db.DB().QueryRow(`
		SELECT id, statement, subject, fact_type, confidence, stability, importance, status,
		       superseded_by, source_episode_id, access_count, last_accessed_at, created_at, updated_at
		FROM beliefs WHERE id = ?
	`, id)
	b, err := scanBelief(row)
	if err == sql.ErrNoRows {
		return nil, corerr.NotFoundf("belief %q not found", id)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "get belief", err)
	}
	return b, nil
}

// ListByStatus returns every belief with the given status, newest first.
func (s *Store) ListByStatus(status string) ([]*Belief, error) {
	rows, err := s.db.DB().Query(`
		SELECT id, statement, subject, fact_type, confidence, stability, importance, status,
		       superseded_by, source_episode_id, access_count, last_accessed_at, created_at, updated_at
		FROM beliefs WHERE status = ? ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "list beliefs by status", err)
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

// TouchAccess increments a belief's access counter and last-access
// timestamp (called whenever a belief surfaces in retrieval).
func (s *Store) TouchAccess(id string) error {
	_, err := s.db.DB().Exec(
		`UPDATE beliefs SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		s.clock.Now(), id,
	)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "touch belief access", err)
	}
	return nil
}

// History returns the change log for a belief, oldest first.
func (s *Store) History(beliefID string) ([]BeliefChange, error) {
	rows, err := s.db.DB().Query(`
		SELECT id, belief_id, change_type, previous_confidence, new_confidence, reason, episode_id, created_at
		FROM belief_changes WHERE belief_id = ? ORDER BY created_at ASC
	`, beliefID)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "load belief history", err)
	}
	defer rows.Close()

	var out []BeliefChange
	for rows.Next() {
		var c BeliefChange
		var prevConf, newConf sql.NullFloat64
		var reason, episodeID sql.NullString
		if err := rows.Scan(&c.ID, &c.BeliefID, &c.ChangeType, &prevConf, &newConf, &reason, &episodeID, &c.CreatedAt); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "scan belief change", err)
		}
		if prevConf.Valid {
			c.PreviousConfidence = &prevConf.Float64
		}
		if newConf.Valid {
			c.NewConfidence = &newConf.Float64
		}
		c.Reason = reason.String
		c.EpisodeID = episodeID.String
		out = append(out, c)
	}
	return out, nil
}

// BeliefChange is one row of a belief's audit trail.
type BeliefChange struct {
	ID                 string
	BeliefID           string
	ChangeType         string
	PreviousConfidence *float64
	NewConfidence      *float64
	Reason             string
	EpisodeID          string
	CreatedAt          time.Time
}

// LinkBeliefs records an edge between two beliefs, used for the
// neighbor-linking step of the remember pipeline and for synthesized
// meta-belief edges.
func (s *Store) LinkBeliefs(sourceID, targetID, linkType string, strength float64) error {
	_, err := s.db.DB().Exec(
		`INSERT INTO belief_links (id, source_belief_id, target_belief_id, link_type, strength, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ids.New(), sourceID, targetID, linkType, strength, s.clock.Now(),
	)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "link beliefs", err)
	}
	return nil
}

// BeliefLink is one edge of the belief graph (related, supersedes, or
// synthesized-from).
type BeliefLink struct {
	ID             string
	SourceBeliefID string
	TargetBeliefID string
	LinkType       string
	Strength       float64
	CreatedAt      time.Time
}

// Links returns every edge touching beliefID, as either source or
// target, oldest first.
func (s *Store) Links(beliefID string) ([]BeliefLink, error) {
	rows, err := s.db.DB().Query(`
		SELECT id, source_belief_id, target_belief_id, link_type, strength, created_at
		FROM belief_links WHERE source_belief_id = ? OR target_belief_id = ? ORDER BY created_at ASC
	`, beliefID, beliefID)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "load belief links", err)
	}
	defer rows.Close()

	var out []BeliefLink
	for rows.Next() {
		var l BeliefLink
		if err := rows.Scan(&l.ID, &l.SourceBeliefID, &l.TargetBeliefID, &l.LinkType, &l.Strength, &l.CreatedAt); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "scan belief link", err)
		}
		out = append(out, l)
	}
	return out, nil
}

// scoredBelief pairs a belief with a similarity/relevance score.
type scoredBelief struct {
	Belief *Belief
	Score  float64
}

// GetEmbedding loads a belief's stored embedding vector, if any.
func (s *Store) GetEmbedding(beliefID string) ([]float64, error) {
	var vecStr string
	err := s.db.DB().QueryRow(`SELECT vector FROM belief_embeddings WHERE belief_id = ?`, beliefID).Scan(&vecStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "get belief embedding", err)
	}
	return vectormath.Decode([]byte(vecStr))
}

// FindSimilar returns active, non-superseded beliefs whose embedding
// is cosine-similar to vector, sorted descending by similarity.
func (s *Store) FindSimilar(vector []float64, limit int) ([]scoredBelief, error) {
	rows, err := s.db.DB().Query(`
		SELECT b.id, b.statement, b.subject, b.fact_type, b.confidence, b.stability, b.importance, b.status,
		       b.superseded_by, b.source_episode_id, b.access_count, b.last_accessed_at, b.created_at, b.updated_at,
		       e.vector
		FROM beliefs b
		JOIN belief_embeddings e ON e.belief_id = b.id
		WHERE b.status = 'active'
	`)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "query belief embeddings", err)
	}
	defer rows.Close()

	var scored []scoredBelief
	for rows.Next() {
		b, vecStr, err := scanBeliefWithVector(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "scan belief embedding row", err)
		}
		vec, err := vectormath.Decode([]byte(vecStr))
		if err != nil {
			continue
		}
		score := vectormath.Cosine(vector, vec)
		scored = append(scored, scoredBelief{Belief: b, Score: score})
	}

	sortScoredDesc(scored)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func sortScoredDesc(s []scoredBelief) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Score > s[j-1].Score; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

var ftsStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "to": true,
	"of": true, "in": true, "on": true, "at": true, "for": true, "with": true,
}

var ftsOperatorChars = regexp.MustCompile(`["*^:()-]`)

// buildFTSQuery strips FTS5 operator characters and stop words from a
// free-text query and OR-joins the remaining terms, each double-quoted
// so punctuation inside a term can't be reinterpreted as an operator.
func buildFTSQuery(query string) string {
	cleaned := ftsOperatorChars.ReplaceAllString(query, " ")
	fields := strings.Fields(cleaned)

	var terms []string
	for _, f := range fields {
		lower := strings.ToLower(f)
		if ftsStopWords[lower] {
			continue
		}
		terms = append(terms, fmt.Sprintf(`"%s"`, f))
	}
	if len(terms) == 0 {
		return ""
	}
	return strings.Join(terms, " OR ")
}

// SearchText performs an FTS5 search over beliefs.statement, returning
// active beliefs ranked by bm25. An empty or all-stop-word query
// yields an empty result rather than an error.
func (s *Store) SearchText(query string, limit int) ([]scoredBelief, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.DB().Query(`
		SELECT b.id, b.statement, b.subject, b.fact_type, b.confidence, b.stability, b.importance, b.status,
		       b.superseded_by, b.source_episode_id, b.access_count, b.last_accessed_at, b.created_at, b.updated_at,
		       bm25(beliefs_fts) AS rank
		FROM beliefs_fts
		JOIN beliefs b ON b.id = beliefs_fts.id
		WHERE beliefs_fts MATCH ? AND b.status = 'active'
		ORDER BY rank
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "fts search beliefs", err)
	}
	defer rows.Close()

	var out []scoredBelief
	for rows.Next() {
		var b Belief
		var rank float64
		var supersededBy, sourceEpisodeID sql.NullString
		var lastAccessed sql.NullTime
		if err := rows.Scan(&b.ID, &b.Statement, &b.Subject, &b.FactType, &b.Confidence, &b.Stability, &b.Importance,
			&b.Status, &supersededBy, &sourceEpisodeID, &b.AccessCount, &lastAccessed, &b.CreatedAt, &b.UpdatedAt, &rank); err != nil {
			return nil, corerr.Wrap(corerr.StorageFailure, "scan fts result", err)
		}
		if supersededBy.Valid {
			b.SupersededBy = &supersededBy.String
		}
		if sourceEpisodeID.Valid {
			b.SourceEpisodeID = &sourceEpisodeID.String
		}
		if lastAccessed.Valid {
			b.LastAccessedAt = &lastAccessed.Time
		}
		// bm25 is negative and more negative is better; normalize to a
		// positive descending score comparable with cosine similarity.
		out = append(out, scoredBelief{Belief: &b, Score: -rank})
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBelief(row rowScanner) (*Belief, error) {
	var b Belief
	var supersededBy, sourceEpisodeID sql.NullString
	var lastAccessed sql.NullTime
	err := row.Scan(&b.ID, &b.Statement, &b.Subject, &b.FactType, &b.Confidence, &b.Stability, &b.Importance,
		&b.Status, &supersededBy, &sourceEpisodeID, &b.AccessCount, &lastAccessed, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if supersededBy.Valid {
		b.SupersededBy = &supersededBy.String
	}
	if sourceEpisodeID.Valid {
		b.SourceEpisodeID = &sourceEpisodeID.String
	}
	if lastAccessed.Valid {
		b.LastAccessedAt = &lastAccessed.Time
	}
	return &b, nil
}

func scanBeliefs(rows *sql.Rows) ([]*Belief, error) {
	var out []*Belief
	for rows.Next() {
		b, err := scanBelief(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func scanBeliefWithVector(rows *sql.Rows) (*Belief, string, error) {
	var b Belief
	var supersededBy, sourceEpisodeID sql.NullString
	var lastAccessed sql.NullTime
	var vec string
	err := rows.Scan(&b.ID, &b.Statement, &b.Subject, &b.FactType, &b.Confidence, &b.Stability, &b.Importance,
		&b.Status, &supersededBy, &sourceEpisodeID, &b.AccessCount, &lastAccessed, &b.CreatedAt, &b.UpdatedAt, &vec)
	if err != nil {
		return nil, "", err
	}
	if supersededBy.Valid {
		b.SupersededBy = &supersededBy.String
	}
	if sourceEpisodeID.Valid {
		b.SourceEpisodeID = &sourceEpisodeID.String
	}
	if lastAccessed.Valid {
		b.LastAccessedAt = &lastAccessed.Time
	}
	return &b, vec, nil
}
