package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	jobKind   string
	jobStatus string
	jobDetail string

	listJobsStatus string

	clearOlderThan string
)

var jobsUpsertCmd = &cobra.Command{
	Use:   "job-upsert <id>",
	Short: "Create or update a background job record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runJobUpsert(args[0])
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "job-get <id>",
	Short: "Show a background job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runJobGet(args[0])
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List background jobs",
	Run: func(cmd *cobra.Command, args []string) {
		runJobsList(listJobsStatus)
	},
}

var jobsClearCmd = &cobra.Command{
	Use:   "jobs-clear",
	Short: "Delete completed and failed jobs older than a duration",
	Run: func(cmd *cobra.Command, args []string) {
		runJobsClear(clearOlderThan)
	},
}

func init() {
	rootCmd.AddCommand(jobsUpsertCmd, jobsGetCmd, jobsListCmd, jobsClearCmd)

	jobsUpsertCmd.Flags().StringVar(&jobKind, "kind", "", "job kind (required)")
	jobsUpsertCmd.Flags().StringVar(&jobStatus, "status", "pending", "job status")
	jobsUpsertCmd.Flags().StringVar(&jobDetail, "detail", "", "free-form detail string")
	_ = jobsUpsertCmd.MarkFlagRequired("kind")

	jobsListCmd.Flags().StringVar(&listJobsStatus, "status", "", "filter by status")

	jobsClearCmd.Flags().StringVar(&clearOlderThan, "older-than", "", "duration, e.g. 168h (empty clears all completed/failed jobs)")
}

func runJobUpsert(id string) {
	eng := mustOpenEngine()
	defer eng.Close()

	job, err := eng.Jobs.Upsert(id, jobKind, jobStatus, jobDetail)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Job %s: %s (%s)\n", job.ID, job.Kind, job.Status)
}

func runJobGet(id string) {
	eng := mustOpenEngine()
	defer eng.Close()

	job, err := eng.Jobs.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("id:      %s\n", job.ID)
	fmt.Printf("kind:    %s\n", job.Kind)
	fmt.Printf("status:  %s\n", job.Status)
	fmt.Printf("detail:  %s\n", job.Detail)
	if job.Error != "" {
		fmt.Printf("error:   %s\n", job.Error)
	}
}

func runJobsList(status string) {
	eng := mustOpenEngine()
	defer eng.Close()

	jobs, err := eng.Jobs.List(status)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d job(s)\n\n", len(jobs))
	for _, j := range jobs {
		fmt.Printf("%s  %-10s  %-12s  %s\n", j.ID, j.Kind, j.Status, j.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func runJobsClear(olderThanRaw string) {
	eng := mustOpenEngine()
	defer eng.Close()

	var olderThan time.Duration
	if olderThanRaw != "" {
		parsed, err := time.ParseDuration(olderThanRaw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid duration %q: %v\n", olderThanRaw, err)
			os.Exit(1)
		}
		olderThan = parsed
	}

	count, err := eng.Jobs.ClearCompleted(olderThan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Cleared %d job(s)\n", count)
}
