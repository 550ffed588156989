package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/localsearch/internal/server"
	"github.com/cwbudde/localsearch/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir  string
	resumeIters    int
	resumePatience int
	resumeProgress bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume an optimization from its checkpoint",
	Long: `Loads the checkpoint saved for a job and continues the search from its
best solution. The iteration budget can be overridden; everything else is
taken from the checkpointed configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data", "./data", "Data directory holding the checkpoint")
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Override iteration budget (0 = keep original)")
	resumeCmd.Flags().IntVar(&resumePatience, "patience", 0, "Override patience (0 = keep original)")
	resumeCmd.Flags().BoolVar(&resumeProgress, "progress", false, "Log progress while running")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint for %s: %w", jobID, err)
	}
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint for %s is unusable: %w", jobID, err)
	}

	config := checkpoint.Config
	if resumeIters > 0 {
		config.Iters = resumeIters
	}
	if resumePatience > 0 {
		config.Patience = resumePatience
	}
	if err := checkpoint.IsCompatible(config); err != nil {
		return fmt.Errorf("config overrides are incompatible with checkpoint: %w", err)
	}

	slog.Info("Resuming from checkpoint",
		"job_id", jobID,
		"iteration", checkpoint.Iteration,
		"best_score", checkpoint.BestScore,
	)

	var onProgress func(server.ProgressEvent)
	if resumeProgress {
		onProgress = func(event server.ProgressEvent) {
			slog.Info("Progress",
				"iterations", event.Iterations,
				"best_score", event.BestScore,
				"acceptance_ratio", event.AcceptanceRatio,
			)
		}
	}

	start := time.Now()
	job, err := server.ExecuteLocal(cmd.Context(), config, checkpointStore, resumeDataDir, checkpoint, onProgress)
	if err != nil {
		return fmt.Errorf("resumed optimization failed: %w", err)
	}

	printJobResult(job, time.Since(start))
	return nil
}
