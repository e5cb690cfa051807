// Package retrieval answers "what do we know relevant to this query":
// the hybrid belief search used both standalone and to build the
// context block handed back to a conversational agent. Grounded on the
// teacher's search/engine.go hybrid-with-fallback idiom (embed when
// possible, degrade to text search and recency otherwise).
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sporenet/sporenet/internal/beliefs"
	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/logging"
	"github.com/sporenet/sporenet/internal/providers"
)

var log = logging.GetLogger("retrieval")

const (
	recallCutoff      = 0.2
	maxContextBeliefs = 10
	maxRecentEpisodes = 5
)

// Engine answers retrieval queries against the belief store.
type Engine struct {
	store    *beliefs.Store
	embedder providers.EmbeddingClient
	clock    clock.Clock
}

// New builds an Engine. embedder may be nil, in which case every
// query degrades to full-text search.
func New(store *beliefs.Store, embedder providers.EmbeddingClient, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{store: store, embedder: embedder, clock: clk}
}

// Match is a belief ranked by relevance to a query.
type Match struct {
	Belief               *beliefs.Belief
	Score                float64
	EffectiveConfidence float64
}

// Recall performs hybrid retrieval: semantic search when an embedder
// is available and succeeds, full-text search otherwise, ranked by
// effective confidence and capped at maxContextBeliefs.
func (e *Engine) Recall(ctx context.Context, query string) ([]Match, error) {
	var raw []rankable

	if e.embedder != nil {
		if vector, err := e.embedder.Embed(ctx, query); err != nil {
			log.Warn("query embedding failed, falling back to text search", "error", err)
		} else {
			matches, err := e.store.FindSimilar(vector, maxContextBeliefs*2)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if m.Score < recallCutoff {
					continue
				}
				raw = append(raw, rankable{belief: m.Belief, score: m.Score})
			}
		}
	}

	if len(raw) == 0 {
		textMatches, err := e.store.SearchText(query, maxContextBeliefs*2)
		if err != nil {
			return nil, err
		}
		for _, m := range textMatches {
			raw = append(raw, rankable{belief: m.Belief, score: m.Score})
		}
	}

	now := e.clock.Now()
	sort.SliceStable(raw, func(i, j int) bool {
		return raw[i].belief.EffectiveConfidence(now) > raw[j].belief.EffectiveConfidence(now)
	})

	if len(raw) > maxContextBeliefs {
		raw = raw[:maxContextBeliefs]
	}

	out := make([]Match, 0, len(raw))
	for _, r := range raw {
		if err := e.store.TouchAccess(r.belief.ID); err != nil {
			log.Warn("failed to record belief access", "belief_id", r.belief.ID, "error", err)
		}
		out = append(out, Match{Belief: r.belief, Score: r.score, EffectiveConfidence: r.belief.EffectiveConfidence(now)})
	}
	return out, nil
}

type rankable struct {
	belief *beliefs.Belief
	score  float64
}

// Context builds the stable-format text block handed to a
// conversational agent: relevant beliefs ranked by effective
// confidence, followed by the most recent observations.
func (e *Engine) Context(ctx context.Context, query string) (string, error) {
	matches, err := e.Recall(ctx, query)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("## Relevant beliefs\n")
	if len(matches) == 0 {
		b.WriteString("No relevant beliefs\n")
	} else {
		for _, m := range matches {
			fmt.Fprintf(&b, "- %s (confidence: %.2f)\n", m.Belief.Statement, m.EffectiveConfidence)
		}
	}

	b.WriteString("\n## Recent observations\n")
	recent, err := e.recentEpisodeStatements(maxRecentEpisodes)
	if err != nil {
		return "", err
	}
	if len(recent) == 0 {
		b.WriteString("No recent observations\n")
	} else {
		for _, r := range recent {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	return b.String(), nil
}

func (e *Engine) recentEpisodeStatements(limit int) ([]string, error) {
	active, err := e.store.ListByStatus("active")
	if err != nil {
		return nil, err
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })

	var out []string
	for i, b := range active {
		if i >= limit {
			break
		}
		out = append(out, b.Statement)
	}
	return out, nil
}
