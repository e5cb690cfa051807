package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	learnTitle   string
	learnContent string
	learnTags    []string
	learnForce   bool

	knowledgeSearchLimit int
)

var learnCmd = &cobra.Command{
	Use:   "learn <url>",
	Short: "Ingest and chunk content from a URL into the knowledge store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runLearn(args[0])
	},
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search-knowledge <query>",
	Short: "Search the knowledge chunk store",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runKnowledgeSearch(strings.Join(args, " "))
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List known knowledge sources",
	Run: func(cmd *cobra.Command, args []string) {
		runListSources()
	},
}

var sourceChunksCmd = &cobra.Command{
	Use:   "source-chunks <source-id>",
	Short: "List a source's chunks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSourceChunks(args[0])
	},
}

var forgetSourceCmd = &cobra.Command{
	Use:   "forget-source <source-id>",
	Short: "Delete a knowledge source and its chunks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runForgetSource(args[0])
	},
}

var reindexSourceCmd = &cobra.Command{
	Use:   "reindex-source <source-id>",
	Short: "Re-chunk and re-embed one knowledge source",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runReindexSource(args[0])
	},
}

var reindexAllCmd = &cobra.Command{
	Use:   "reindex-all",
	Short: "Re-chunk and re-embed every known knowledge source",
	Run: func(cmd *cobra.Command, args []string) {
		runReindexAll()
	},
}

func init() {
	rootCmd.AddCommand(learnCmd, knowledgeSearchCmd, sourcesCmd, sourceChunksCmd, forgetSourceCmd, reindexSourceCmd, reindexAllCmd)

	learnCmd.Flags().StringVar(&learnTitle, "title", "", "source title")
	learnCmd.Flags().StringVar(&learnContent, "content", "", "content to chunk (required)")
	learnCmd.Flags().StringSliceVar(&learnTags, "tags", nil, "tags (comma-separated)")
	learnCmd.Flags().BoolVar(&learnForce, "force", false, "re-learn even if the source already exists")
	_ = learnCmd.MarkFlagRequired("content")

	knowledgeSearchCmd.Flags().IntVarP(&knowledgeSearchLimit, "limit", "l", 10, "maximum results to return")
}

func runLearn(url string) {
	eng := mustOpenEngine()
	defer eng.Close()

	result, err := eng.Knowledge.Learn(context.Background(), url, learnTitle, learnContent, learnTags, learnForce)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Source %s learned: %d chunk(s)\n", result.Source.ID, result.Chunks)
}

func runKnowledgeSearch(query string) {
	eng := mustOpenEngine()
	defer eng.Close()

	chunks, err := eng.Knowledge.Search(context.Background(), query, knowledgeSearchLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d chunk(s)\n\n", len(chunks))
	for i, ch := range chunks {
		fmt.Printf("%d. [%s] %.80s\n", i+1, ch.SourceID, ch.Content)
	}
}

func runListSources() {
	eng := mustOpenEngine()
	defer eng.Close()

	sources, err := eng.Knowledge.Sources()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d source(s)\n\n", len(sources))
	for _, s := range sources {
		fmt.Printf("%s  %-40s  %s\n", s.ID, s.Title, s.URL)
	}
}

func runSourceChunks(sourceID string) {
	eng := mustOpenEngine()
	defer eng.Close()

	chunks, err := eng.Knowledge.SourceChunks(sourceID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d chunk(s) for source %s\n\n", len(chunks), sourceID)
	for i, ch := range chunks {
		fmt.Printf("%d. %.80s\n", i+1, ch.Content)
	}
}

func runForgetSource(sourceID string) {
	eng := mustOpenEngine()
	defer eng.Close()

	if err := eng.Knowledge.ForgetSource(sourceID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Forgot source %s\n", sourceID)
}

func runReindexSource(sourceID string) {
	eng := mustOpenEngine()
	defer eng.Close()

	if err := eng.Knowledge.ReindexSource(context.Background(), sourceID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Reindexed source %s\n", sourceID)
}

func runReindexAll() {
	eng := mustOpenEngine()
	defer eng.Close()

	if err := eng.Knowledge.ReindexAll(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Reindexed all sources")
}
