// Package remember implements the ingestion pipeline: turning one
// episode of content into new, reinforced, or contradicted beliefs.
// Grounded on the teacher's memory/service.go ingestion flow and
// ai/manager.go's Analyze dispatch idiom (call the configured provider,
// degrade to a fixed fallback when it's unavailable).
package remember

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sporenet/sporenet/internal/beliefs"
	"github.com/sporenet/sporenet/internal/corerr"
	"github.com/sporenet/sporenet/internal/logging"
	"github.com/sporenet/sporenet/internal/providers"
)

var log = logging.GetLogger("remember")

// Similarity bands from the decision design.
const (
	reinforceThreshold = 0.85
	greyZoneFloor       = 0.70
	neighborLinkFloor   = 0.40
	neighborLinkCeil    = 0.85
	maxNeighborLinks    = 3
	maxLinkCandidates   = 20
)

var allowedFactTypes = map[string]bool{
	"factual": true, "preference": true, "procedural": true, "architectural": true,
}

// Pipeline wires the belief store to the embedding/chat collaborators.
type Pipeline struct {
	store     *beliefs.Store
	embedder  providers.EmbeddingClient
	chat      providers.ChatClient
	embedModel string
}

// New builds a Pipeline. embedder and chat may be nil; the pipeline
// degrades to statement-only belief creation without them.
func New(store *beliefs.Store, embedder providers.EmbeddingClient, chat providers.ChatClient, embedModel string) *Pipeline {
	return &Pipeline{store: store, embedder: embedder, chat: chat, embedModel: embedModel}
}

// Result summarizes what happened to one episode.
type Result struct {
	EpisodeID  string
	Created    []*beliefs.Belief
	Reinforced []*beliefs.Belief
	Weakened   []*beliefs.Belief
	Invalidated []*beliefs.Belief
}

// extractedFact is the shape the chat provider is asked to return.
type extractedFact struct {
	Statement  string  `json:"statement"`
	Subject    string  `json:"subject"`
	FactType   string  `json:"fact_type"`
	Importance int     `json:"importance"`
	Confidence float64 `json:"confidence"`
}

// Remember ingests one piece of content: creates an episode, embeds
// it, extracts candidate facts, and resolves each fact against
// existing beliefs by similarity band.
func (p *Pipeline) Remember(ctx context.Context, content, source string) (*Result, error) {
	ep, err := p.store.CreateEpisode(content, source)
	if err != nil {
		return nil, err
	}

	var episodeVector []float64
	if p.embedder != nil {
		if v, err := p.embedder.Embed(ctx, content); err != nil {
			log.Warn("episode embedding failed, continuing without it", "episode_id", ep.ID, "error", err)
		} else {
			episodeVector = v
			if err := p.store.SaveEpisodeEmbedding(ep.ID, v, p.embedModel); err != nil {
				log.Warn("failed to persist episode embedding", "episode_id", ep.ID, "error", err)
			}
		}
	}

	facts, err := p.extractFacts(ctx, content)
	if err != nil {
		log.Warn("fact extraction failed, falling back to verbatim statement", "episode_id", ep.ID, "error", err)
		facts = []extractedFact{{Statement: content, Subject: "user", FactType: "factual", Importance: 5, Confidence: 0.5}}
	}

	result := &Result{EpisodeID: ep.ID}
	for _, f := range facts {
		if err := p.resolveFact(ctx, ep.ID, f, episodeVector, result); err != nil {
			log.Warn("failed to resolve extracted fact", "episode_id", ep.ID, "error", err)
		}
	}

	return result, nil
}

func (p *Pipeline) resolveFact(ctx context.Context, episodeID string, f extractedFact, episodeVector []float64, result *Result) error {
	var vector []float64
	if p.embedder != nil {
		v, err := p.embedder.Embed(ctx, f.Statement)
		if err != nil {
			log.Warn("statement embedding failed", "error", err)
		} else {
			vector = v
		}
	}
	if vector == nil {
		vector = episodeVector
	}

	var similar []scoredMatch
	if vector != nil {
		matches, err := p.store.FindSimilar(vector, maxLinkCandidates)
		if err != nil {
			return err
		}
		for _, m := range matches {
			similar = append(similar, scoredMatch{belief: m.Belief, score: m.Score})
		}
	}

	best := topMatch(similar)

	switch {
	case best != nil && best.score > reinforceThreshold:
		b, err := p.store.ReinforceBelief(best.belief.ID, episodeID)
		if err != nil {
			return err
		}
		result.Reinforced = append(result.Reinforced, b)
		return nil

	case best != nil && best.score >= greyZoneFloor:
		verdict := p.classify(ctx, best.belief.Statement, f.Statement)
		switch verdict {
		case "REINFORCEMENT":
			b, err := p.store.ReinforceBelief(best.belief.ID, episodeID)
			if err != nil {
				return err
			}
			result.Reinforced = append(result.Reinforced, b)
			return nil
		case "CONTRADICTION":
			return p.resolveContradiction(episodeID, f, best.belief, vector, result)
		default: // INDEPENDENT
			return p.createWithLinks(episodeID, f, vector, similar, result)
		}

	default:
		return p.createWithLinks(episodeID, f, vector, similar, result)
	}
}

// resolveContradiction applies the evidence-weighted rule: beliefs
// with at least 3 supporting reinforcements/episode links are weakened
// rather than invalidated outright.
func (p *Pipeline) resolveContradiction(episodeID string, f extractedFact, existing *beliefs.Belief, vector []float64, result *Result) error {
	history, err := p.store.History(existing.ID)
	if err != nil {
		return err
	}

	support := 0
	for _, h := range history {
		if h.ChangeType == "created" || h.ChangeType == "reinforced" {
			support++
		}
	}

	newBelief, createErr := p.store.CreateBelief(beliefs.NewBelief{
		Statement:       f.Statement,
		Subject:         f.Subject,
		FactType:        normalizeFactType(f.FactType),
		Confidence:      0.6,
		Importance:      clampImportance(f.Importance),
		SourceEpisodeID: episodeID,
		Vector:          vector,
	})
	if createErr != nil {
		return createErr
	}
	result.Created = append(result.Created, newBelief)

	if support >= 3 {
		reduction := math.Min(0.2, 1/float64(support+1))
		newConfidence := math.Max(0.1, existing.Confidence-reduction)
		weakened, err := p.store.WeakenBelief(existing.ID, episodeID, "contradicted with strong supporting evidence", newConfidence)
		if err != nil {
			return err
		}
		result.Weakened = append(result.Weakened, weakened)
		if err := p.store.LinkBeliefs(newBelief.ID, existing.ID, "supersedes", 1.0); err != nil {
			log.Warn("failed to record supersession link", "error", err)
		}
	} else {
		invalidated, err := p.store.InvalidateBelief(existing.ID, episodeID, "contradicted with insufficient supporting evidence", newBelief.ID)
		if err != nil {
			return err
		}
		result.Invalidated = append(result.Invalidated, invalidated)
	}
	return nil
}

// createWithLinks creates a new belief and links it to up to
// maxNeighborLinks existing beliefs whose similarity falls in the
// neighbor band, without being close enough to be a duplicate.
func (p *Pipeline) createWithLinks(episodeID string, f extractedFact, vector []float64, similar []scoredMatch, result *Result) error {
	b, err := p.store.CreateBelief(beliefs.NewBelief{
		Statement:       f.Statement,
		Subject:         f.Subject,
		FactType:        normalizeFactType(f.FactType),
		Confidence:      clampConfidence(f.Confidence),
		Importance:      clampImportance(f.Importance),
		SourceEpisodeID: episodeID,
		Vector:          vector,
		EmbeddingModel:  p.embedModel,
	})
	if err != nil {
		return err
	}
	result.Created = append(result.Created, b)

	linked := 0
	for _, m := range similar {
		if linked >= maxNeighborLinks {
			break
		}
		if m.score < neighborLinkFloor || m.score > neighborLinkCeil {
			continue
		}
		if err := p.store.LinkBeliefs(b.ID, m.belief.ID, "related", m.score); err != nil {
			log.Warn("failed to link neighbor belief", "error", err)
			continue
		}
		linked++
	}
	return nil
}

type scoredMatch struct {
	belief *beliefs.Belief
	score  float64
}

func topMatch(matches []scoredMatch) *scoredMatch {
	var best *scoredMatch
	for i := range matches {
		if best == nil || matches[i].score > best.score {
			best = &matches[i]
		}
	}
	return best
}

func clampConfidence(c float64) float64 {
	if c <= 0 {
		return 0.6
	}
	if c > 1 {
		return 1
	}
	return c
}

func clampImportance(i int) int {
	if i < 1 {
		return 5
	}
	if i > 10 {
		return 10
	}
	return i
}

func normalizeFactType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if allowedFactTypes[t] {
		return t
	}
	return "factual"
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractFacts asks the chat provider to extract candidate facts as a
// JSON array, tolerating markdown code fences around the payload the
// way the teacher's analysis responses are tolerant of free-form LLM
// output.
func (p *Pipeline) extractFacts(ctx context.Context, content string) ([]extractedFact, error) {
	if p.chat == nil {
		return nil, corerr.New(corerr.ProviderFailure, "no chat provider configured")
	}

	prompt := fmt.Sprintf(`Extract durable facts, preferences, procedures, or architectural
decisions from the following text as a JSON array of objects with fields:
statement, subject, fact_type (one of factual, preference, procedural,
architectural), importance (1-10), confidence (0-1). Return only the JSON
array.

Text:
%s`, content)

	resp, err := p.chat.Chat(ctx, []providers.ChatMessage{
		{Role: "user", Content: prompt},
	}, &providers.ChatOptions{Temperature: 0.1})
	if err != nil {
		return nil, corerr.Wrap(corerr.ProviderFailure, "extract facts", err)
	}

	raw := strings.TrimSpace(resp.Text)
	if m := codeFenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}

	var facts []extractedFact
	if err := json.Unmarshal([]byte(raw), &facts); err != nil {
		return nil, corerr.Wrap(corerr.ProviderFailure, "parse extracted facts", err)
	}

	var out []extractedFact
	for _, f := range facts {
		if strings.TrimSpace(f.Statement) == "" {
			continue
		}
		f.FactType = normalizeFactType(f.FactType)
		f.Subject = strings.ToLower(strings.TrimSpace(f.Subject))
		f.Importance = clampImportance(f.Importance)
		f.Confidence = clampConfidence(f.Confidence)
		out = append(out, f)
	}
	return out, nil
}

// classify asks the chat provider to pick one of REINFORCEMENT,
// CONTRADICTION, or INDEPENDENT for a grey-zone similarity pair.
// Any failure or unrecognized answer degrades to INDEPENDENT, the
// safest choice since it only risks a missed link rather than an
// incorrect mutation of an existing belief.
func (p *Pipeline) classify(ctx context.Context, existing, incoming string) string {
	if p.chat == nil {
		return "INDEPENDENT"
	}

	prompt := fmt.Sprintf(`Existing belief: %q
New statement: %q

Does the new statement reinforce, contradict, or have no clear relationship
to the existing belief? Answer with exactly one word: REINFORCEMENT,
CONTRADICTION, or INDEPENDENT.`, existing, incoming)

	resp, err := p.chat.Chat(ctx, []providers.ChatMessage{
		{Role: "user", Content: prompt},
	}, &providers.ChatOptions{Temperature: 0})
	if err != nil {
		log.Warn("grey-zone classification failed, treating as independent", "error", err)
		return "INDEPENDENT"
	}

	verdict := strings.ToUpper(strings.TrimSpace(resp.Text))
	switch {
	case strings.Contains(verdict, "REINFORCEMENT"):
		return "REINFORCEMENT"
	case strings.Contains(verdict, "CONTRADICTION"):
		return "CONTRADICTION"
	default:
		return "INDEPENDENT"
	}
}
