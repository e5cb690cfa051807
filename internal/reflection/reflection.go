// Package reflection periodically reviews the belief store: merging
// near-duplicate beliefs that drifted apart during independent
// creation, flagging stale beliefs, and synthesizing meta-beliefs from
// clusters of related facts. Grounded on the shape of the teacher's
// relationships package (graph edges over stored content) generalized
// from memory_relationships into belief_links-driven clustering.
package reflection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sporenet/sporenet/internal/beliefs"
	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/logging"
	"github.com/sporenet/sporenet/internal/providers"
	"github.com/sporenet/sporenet/internal/vectormath"
)

var log = logging.GetLogger("reflection")

const (
	defaultSimilarityThreshold = 0.90
	staleConfidenceCutoff      = 0.1
)

// Engine runs reflection passes over the belief store.
type Engine struct {
	store    *beliefs.Store
	embedder providers.EmbeddingClient
	chat     providers.ChatClient
	clock    clock.Clock
}

// New builds an Engine.
func New(store *beliefs.Store, embedder providers.EmbeddingClient, chat providers.ChatClient, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{store: store, embedder: embedder, chat: chat, clock: clk}
}

// Options tunes a reflection pass.
type Options struct {
	// SimilarityThreshold is the cosine similarity above which two
	// beliefs are clustered as duplicates. Zero uses the default, 0.90.
	SimilarityThreshold float64
}

// Report summarizes a completed reflection pass.
type Report struct {
	ClustersFound int
	Merged        []*beliefs.Belief
	Stale         []*beliefs.Belief
}

// Reflect finds duplicate clusters via union-find over pairwise
// cosine similarity, merges each cluster down to its highest-
// confidence member, and flags beliefs whose effective confidence has
// decayed below staleConfidenceCutoff.
func (e *Engine) Reflect(opts Options) (*Report, error) {
	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = defaultSimilarityThreshold
	}

	active, err := e.store.ListByStatus(beliefs.StatusActive)
	if err != nil {
		return nil, err
	}

	clusters, err := e.clusterBySimilarity(active, threshold)
	if err != nil {
		return nil, err
	}

	report := &Report{ClustersFound: len(clusters)}
	merged, err := e.mergeDuplicates(clusters)
	if err != nil {
		return nil, err
	}
	report.Merged = merged

	now := e.clock.Now()
	for _, b := range active {
		if b.EffectiveConfidence(now) < staleConfidenceCutoff {
			report.Stale = append(report.Stale, b)
		}
	}

	return report, nil
}

// clusterBySimilarity groups beliefs whose embeddings are above
// threshold using union-find, the teacher-idiomatic way to group graph
// edges into connected components without an external graph library.
func (e *Engine) clusterBySimilarity(active []*beliefs.Belief, threshold float64) ([][]*beliefs.Belief, error) {
	idToVector := map[string][]float64{}
	for _, b := range active {
		v, err := e.store.GetEmbedding(b.ID)
		if err != nil || v == nil {
			continue
		}
		idToVector[b.ID] = v
	}

	uf := newUnionFind()
	for _, b := range active {
		uf.add(b.ID)
	}

	for i := 0; i < len(active); i++ {
		vi, ok := idToVector[active[i].ID]
		if !ok {
			continue
		}
		for j := i + 1; j < len(active); j++ {
			vj, ok := idToVector[active[j].ID]
			if !ok {
				continue
			}
			if vectormath.Cosine(vi, vj) >= threshold {
				uf.union(active[i].ID, active[j].ID)
			}
		}
	}

	groups := map[string][]*beliefs.Belief{}
	for _, b := range active {
		root := uf.find(b.ID)
		groups[root] = append(groups[root], b)
	}

	var clusters [][]*beliefs.Belief
	for _, g := range groups {
		if len(g) > 1 {
			clusters = append(clusters, g)
		}
	}
	return clusters, nil
}

// mergeDuplicates collapses each cluster to its highest-confidence
// member: the winner is reinforced once per additional member, and
// every other member is invalidated in its favor.
func (e *Engine) mergeDuplicates(clusters [][]*beliefs.Belief) ([]*beliefs.Belief, error) {
	var winners []*beliefs.Belief

	for _, cluster := range clusters {
		sort.Slice(cluster, func(i, j int) bool { return cluster[i].Confidence > cluster[j].Confidence })
		winner := cluster[0]

		for _, loser := range cluster[1:] {
			if _, err := e.store.ReinforceBelief(winner.ID, ""); err != nil {
				log.Warn("failed to reinforce merge winner", "belief_id", winner.ID, "error", err)
				continue
			}
			if _, err := e.store.InvalidateBelief(loser.ID, "", "merged as duplicate", winner.ID); err != nil {
				log.Warn("failed to invalidate merge loser", "belief_id", loser.ID, "error", err)
				continue
			}
		}
		refreshed, err := e.store.GetBelief(winner.ID)
		if err != nil {
			return nil, err
		}
		winners = append(winners, refreshed)
	}

	return winners, nil
}

// Synthesize asks the chat provider to produce a higher-order
// meta-belief from the active beliefs about subject, narrowed to one
// cluster of related beliefs by clusterForSynthesis, recording
// synthesized edges back to each contributing belief.
func (e *Engine) Synthesize(ctx context.Context, subject string) (*beliefs.Belief, error) {
	if e.chat == nil {
		return nil, fmt.Errorf("synthesis requires a chat provider")
	}

	active, err := e.store.ListByStatus(beliefs.StatusActive)
	if err != nil {
		return nil, err
	}

	var candidates []*beliefs.Belief
	for _, b := range active {
		if strings.EqualFold(b.Subject, subject) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) < 2 {
		return nil, fmt.Errorf("not enough beliefs about %q to synthesize", subject)
	}

	relevant, err := e.clusterForSynthesis(candidates)
	if err != nil {
		return nil, err
	}
	if len(relevant) < 2 {
		return nil, fmt.Errorf("not enough beliefs about %q to synthesize", subject)
	}

	var sb strings.Builder
	for _, b := range relevant {
		fmt.Fprintf(&sb, "- %s\n", b.Statement)
	}

	prompt := fmt.Sprintf(`Given the following related facts about %q, write one
concise higher-order belief that summarizes the pattern they share:

%s`, subject, sb.String())

	resp, err := e.chat.Chat(ctx, []providers.ChatMessage{
		{Role: "user", Content: prompt},
	}, &providers.ChatOptions{Temperature: 0.3})
	if err != nil {
		return nil, fmt.Errorf("synthesize meta-belief: %w", err)
	}

	meta, err := e.store.CreateBelief(beliefs.NewBelief{
		Statement:  strings.TrimSpace(resp.Text),
		Subject:    subject,
		FactType:   "meta",
		Confidence: 0.7,
		Importance: 7,
	})
	if err != nil {
		return nil, err
	}

	for _, b := range relevant {
		if err := e.store.LinkBeliefs(meta.ID, b.ID, "synthesized", 1.0); err != nil {
			log.Warn("failed to link synthesized belief", "error", err)
		}
	}

	return meta, nil
}

// clusterForSynthesis narrows candidates down to the single cluster
// Synthesize should draw from: first the largest embedding-similarity
// cluster among them (the same clustering Reflect uses for duplicate
// merging), falling back to beliefs connected by a shared belief_links
// edge when no two candidates embed close enough to cluster. If
// neither grouping finds a multi-member cluster, every same-subject
// candidate is used, matching the plain subject grouping this
// replaces.
func (e *Engine) clusterForSynthesis(candidates []*beliefs.Belief) ([]*beliefs.Belief, error) {
	if cluster, err := e.largestCluster(e.clusterBySimilarity(candidates, defaultSimilarityThreshold)); err != nil {
		return nil, err
	} else if len(cluster) >= 2 {
		return cluster, nil
	}

	linked, err := e.clusterByLinks(candidates)
	if err != nil {
		return nil, err
	}
	if cluster, _ := e.largestCluster(linked, nil); len(cluster) >= 2 {
		return cluster, nil
	}

	return candidates, nil
}

// largestCluster returns the biggest group from clusterBySimilarity's
// or clusterByLinks' output, or nil if there are none.
func (e *Engine) largestCluster(clusters [][]*beliefs.Belief, err error) ([]*beliefs.Belief, error) {
	if err != nil {
		return nil, err
	}
	var best []*beliefs.Belief
	for _, c := range clusters {
		if len(c) > len(best) {
			best = c
		}
	}
	return best, nil
}

// clusterByLinks groups candidates into connected components joined by
// any belief_links edge between two of them, the Zettelkasten-style
// fallback for beliefs whose embeddings didn't cluster but whose prior
// remember/reflection passes already linked them as related.
func (e *Engine) clusterByLinks(candidates []*beliefs.Belief) ([][]*beliefs.Belief, error) {
	uf := newUnionFind()
	for _, b := range candidates {
		uf.add(b.ID)
	}

	inSet := make(map[string]bool, len(candidates))
	for _, b := range candidates {
		inSet[b.ID] = true
	}

	for _, b := range candidates {
		links, err := e.store.Links(b.ID)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			other := l.TargetBeliefID
			if other == b.ID {
				other = l.SourceBeliefID
			}
			if inSet[other] {
				uf.union(b.ID, other)
			}
		}
	}

	groups := map[string][]*beliefs.Belief{}
	for _, b := range candidates {
		root := uf.find(b.ID)
		groups[root] = append(groups[root], b)
	}

	var clusters [][]*beliefs.Belief
	for _, g := range groups {
		if len(g) > 1 {
			clusters = append(clusters, g)
		}
	}
	return clusters, nil
}

// unionFind is a minimal disjoint-set over string keys.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[string]string{}}
}

func (u *unionFind) add(key string) {
	if _, ok := u.parent[key]; !ok {
		u.parent[key] = key
	}
}

func (u *unionFind) find(key string) string {
	for u.parent[key] != key {
		u.parent[key] = u.parent[u.parent[key]]
		key = u.parent[key]
	}
	return key
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}
