package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set during build.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "sporenet",
	Short: "Persistent belief memory for conversational agents",
	Long: `sporenet stores and retrieves beliefs extracted from conversation,
reconciling new observations against existing beliefs (reinforcing,
weakening, or invalidating them) and serving hybrid retrieval over
what remains active.

Examples:
  sporenet remember "The user prefers dark mode"
  sporenet recall "what does the user prefer"
  sporenet beliefs --status active
  sporenet learn https://example.com/doc --title "Example doc" --content "Document text"
  sporenet serve`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (not read by any command)")
	rootCmd.PersistentFlags().String("log_level", "info", "log level (debug, info, warn, error); not read by any command")
}
