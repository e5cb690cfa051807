package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sporenet/sporenet/internal/reflection"
	"github.com/sporenet/sporenet/pkg/config"
	"github.com/sporenet/sporenet/pkg/sporenet"
)

var (
	rememberSource string

	forgetThreshold float64

	reflectSimilarity float64

	importPath string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Ingest an episode of content into memory",
	Long: `Extracts candidate beliefs from content, reconciles each against
existing beliefs by similarity, and records the source episode.

Examples:
  sporenet remember "The user prefers dark mode"
  sporenet remember "Deploys run every Friday at 4pm" --source deploy-notes`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRemember(strings.Join(args, " "))
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Retrieve active beliefs relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecall(strings.Join(args, " "))
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Render the stable prompt-context block for a query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runContext(strings.Join(args, " "))
	},
}

var beliefsCmd = &cobra.Command{
	Use:   "beliefs",
	Short: "List beliefs by status",
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		runListBeliefs(status)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id-or-prefix>",
	Short: "Mark a belief forgotten",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runForget(args[0])
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Mark low-confidence active beliefs as pruned",
	Run: func(cmd *cobra.Command, args []string) {
		runPrune(forgetThreshold)
	},
}

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Run a deduplication and staleness pass over active beliefs",
	Run: func(cmd *cobra.Command, args []string) {
		runReflect(reflectSimilarity)
	},
}

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize <subject>",
	Short: "Generate a meta-belief summarizing a subject's belief set",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSynthesize(strings.Join(args, " "))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <belief-id>",
	Short: "Show a belief's change log",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runHistory(args[0])
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize belief counts by status",
	Run: func(cmd *cobra.Command, args []string) {
		runStats()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every belief to a JSON envelope",
	Run: func(cmd *cobra.Command, args []string) {
		runExport()
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import beliefs from a JSON envelope, skipping existing ids",
	Run: func(cmd *cobra.Command, args []string) {
		runImport(importPath)
	},
}

func init() {
	rootCmd.AddCommand(rememberCmd, recallCmd, contextCmd, beliefsCmd, forgetCmd, pruneCmd, reflectCmd, synthesizeCmd, historyCmd, statsCmd, exportCmd, importCmd)

	rememberCmd.Flags().StringVarP(&rememberSource, "source", "s", "", "source label for the episode")

	beliefsCmd.Flags().String("status", "active", "status filter: active, invalidated, forgotten, pruned")

	pruneCmd.Flags().Float64VarP(&forgetThreshold, "threshold", "t", 0, "effective-confidence threshold (0 uses the configured default)")

	reflectCmd.Flags().Float64Var(&reflectSimilarity, "similarity", 0, "clustering similarity threshold (0 uses the built-in default of 0.90)")

	importCmd.Flags().StringVarP(&importPath, "file", "f", "", "path to a JSON export file (required)")
	_ = importCmd.MarkFlagRequired("file")
}

func openEngine() (*sporenet.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	return sporenet.Open(cfg)
}

func mustOpenEngine() *sporenet.Engine {
	eng, err := openEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return eng
}

func runRemember(content string) {
	eng := mustOpenEngine()
	defer eng.Close()

	result, err := eng.Memory.Remember(context.Background(), content, rememberSource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Episode %s processed\n", result.EpisodeID)
	fmt.Printf("  created:     %d\n", len(result.Created))
	fmt.Printf("  reinforced:  %d\n", len(result.Reinforced))
	fmt.Printf("  weakened:    %d\n", len(result.Weakened))
	fmt.Printf("  invalidated: %d\n", len(result.Invalidated))
}

func runRecall(query string) {
	eng := mustOpenEngine()
	defer eng.Close()

	matches, err := eng.Memory.Recall(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d matching belief(s)\n\n", len(matches))
	for i, m := range matches {
		fmt.Printf("%d. %s\n", i+1, m.Belief.Statement)
		fmt.Printf("   id: %s | score: %.3f | effective confidence: %.3f\n", m.Belief.ID, m.Score, m.EffectiveConfidence)
	}
}

func runContext(query string) {
	eng := mustOpenEngine()
	defer eng.Close()

	ctxStr, err := eng.Memory.Context(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(ctxStr)
}

func runListBeliefs(status string) {
	eng := mustOpenEngine()
	defer eng.Close()

	beliefs, err := eng.Memory.Beliefs(status)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d belief(s) with status %q\n\n", len(beliefs), status)
	for _, b := range beliefs {
		fmt.Printf("%s  [%s]  %s\n", b.ID, b.FactType, b.Statement)
	}
}

func runForget(idOrPrefix string) {
	eng := mustOpenEngine()
	defer eng.Close()

	belief, err := eng.Memory.Forget(idOrPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Forgot belief %s: %s\n", belief.ID, belief.Statement)
}

func runPrune(threshold float64) {
	eng := mustOpenEngine()
	defer eng.Close()

	ids, err := eng.Memory.Prune(threshold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Pruned %d belief(s)\n", len(ids))
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
}

func runReflect(similarity float64) {
	eng := mustOpenEngine()
	defer eng.Close()

	report, err := eng.Memory.Reflect(reflection.Options{SimilarityThreshold: similarity})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clusters found: %d | merged: %d | stale: %d\n", report.ClustersFound, report.Merged, report.Stale)
}

func runSynthesize(subject string) {
	eng := mustOpenEngine()
	defer eng.Close()

	belief, err := eng.Memory.Synthesize(context.Background(), subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Synthesized belief %s: %s\n", belief.ID, belief.Statement)
}

func runHistory(beliefID string) {
	eng := mustOpenEngine()
	defer eng.Close()

	changes, err := eng.Memory.History(beliefID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d change(s) for belief %s\n\n", len(changes), beliefID)
	for _, ch := range changes {
		fmt.Printf("%s  %-12s  %s\n", ch.CreatedAt.Format("2006-01-02 15:04"), ch.ChangeType, ch.Reason)
	}
}

func runStats() {
	eng := mustOpenEngine()
	defer eng.Close()

	stats, err := eng.Memory.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("active:      %d\n", stats.Active)
	fmt.Printf("invalidated: %d\n", stats.Invalidated)
	fmt.Printf("forgotten:   %d\n", stats.Forgotten)
	fmt.Printf("pruned:      %d\n", stats.Pruned)
}

func runExport() {
	eng := mustOpenEngine()
	defer eng.Close()

	data, err := eng.Memory.Export()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}

func runImport(path string) {
	eng := mustOpenEngine()
	defer eng.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	count, err := eng.Memory.Import(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d new belief(s)\n", count)
}
