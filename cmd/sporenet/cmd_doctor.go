package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sporenet/sporenet/internal/providers/ollama"
	"github.com/sporenet/sporenet/pkg/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage, and the Ollama provider",
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor() {
	fmt.Println("sporenet system check")
	fmt.Println("=====================")
	fmt.Println()

	ok := true

	fmt.Print("configuration... ")
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		ok = false
	} else {
		fmt.Println("OK")
	}

	fmt.Print("data directory... ")
	if cfg != nil {
		if _, err := os.Stat(cfg.Data.Dir); os.IsNotExist(err) {
			fmt.Println("NOT INITIALIZED (will be created on first use)")
		} else if err != nil {
			fmt.Printf("ERROR: %v\n", err)
			ok = false
		} else {
			fmt.Println("OK")
		}
	}

	fmt.Print("ollama provider... ")
	if cfg != nil && cfg.Ollama.Enabled {
		client := ollama.New(ollama.Config{
			BaseURL:        cfg.Ollama.BaseURL,
			EmbeddingModel: cfg.Ollama.EmbeddingModel,
			ChatModel:      cfg.Ollama.ChatModel,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if client.IsAvailable(ctx) {
			fmt.Println("OK")
		} else {
			fmt.Println("UNAVAILABLE - beliefs will be created without grey-zone classification")
		}
	} else {
		fmt.Println("DISABLED - recall falls back to text search and content is stored verbatim without belief extraction")
	}

	fmt.Println()
	if ok {
		fmt.Println("All checks passed.")
	} else {
		fmt.Println("Some checks failed.")
		os.Exit(1)
	}
}
