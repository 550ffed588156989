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
	runProblem      string
	runAlgorithm    string
	runCities       int
	runIters        int
	runTrials       int
	runPatience     int
	runReturnIter   int
	runSeed         int64
	runEpsilon      float64
	runBeta         float64
	runCoolingRate  float64
	runUpdateFreq   int
	runPopulation   int
	runReplicas     int
	runTabuCapacity int
	runLevelFactor  float64
	runTimeLimit    time.Duration
	runDataDir      string
	runCheckpointIv int
	runProgress     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Runs one local-search optimization against a built-in problem and prints
the best solution found. With --data, the final state is checkpointed and a
trace log is written, so the run can be resumed later.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&runProblem, "problem", "quadratic", "Problem: quadratic, tsp")
	runCmd.Flags().StringVar(&runAlgorithm, "algorithm", "hill-climbing", "Search algorithm")
	runCmd.Flags().IntVar(&runCities, "cities", 30, "Number of cities (tsp only)")
	runCmd.Flags().IntVar(&runIters, "iters", 10000, "Max iterations")
	runCmd.Flags().IntVar(&runTrials, "trials", 8, "Trial solutions per iteration")
	runCmd.Flags().IntVar(&runPatience, "patience", 0, "Stop after N iterations without improvement (0 = unlimited)")
	runCmd.Flags().IntVar(&runReturnIter, "return-iter", 0, "Return to best every N stagnant iterations (0 = never)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Random seed (0 = time-based)")
	runCmd.Flags().Float64Var(&runEpsilon, "epsilon", 0, "Uphill acceptance probability (epsilon-greedy)")
	runCmd.Flags().Float64Var(&runBeta, "beta", 0, "Inverse temperature")
	runCmd.Flags().Float64Var(&runCoolingRate, "cooling", 0, "Cooling rate per segment")
	runCmd.Flags().IntVar(&runUpdateFreq, "update-freq", 0, "Iterations per annealing segment")
	runCmd.Flags().IntVar(&runPopulation, "population", 0, "Population size (population-annealing)")
	runCmd.Flags().IntVar(&runReplicas, "replicas", 0, "Replica count (parallel-tempering)")
	runCmd.Flags().IntVar(&runTabuCapacity, "tabu", 0, "Tabu list capacity (tabu-search)")
	runCmd.Flags().Float64Var(&runLevelFactor, "level-factor", 0, "Initial water level factor (great-deluge)")
	runCmd.Flags().DurationVar(&runTimeLimit, "time-limit", 0, "Wall-clock limit, e.g. 30s or 5m (0 = none)")
	runCmd.Flags().StringVar(&runDataDir, "data", "", "Data directory for checkpoints and traces (empty = disabled)")
	runCmd.Flags().IntVar(&runCheckpointIv, "checkpoint-interval", 0, "Seconds between periodic checkpoints (0 = final only)")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "Log progress while running")

	rootCmd.AddCommand(runCmd)
}

func runConfigFromFlags() server.RunConfig {
	return server.RunConfig{
		Problem:            runProblem,
		Algorithm:          runAlgorithm,
		Cities:             runCities,
		Iters:              runIters,
		NTrials:            runTrials,
		Patience:           runPatience,
		ReturnIter:         runReturnIter,
		Seed:               runSeed,
		TimeLimitSec:       runTimeLimit.Seconds(),
		Epsilon:            runEpsilon,
		Beta:               runBeta,
		CoolingRate:        runCoolingRate,
		UpdateFrequency:    runUpdateFreq,
		PopulationSize:     runPopulation,
		Replicas:           runReplicas,
		TabuCapacity:       runTabuCapacity,
		LevelFactor:        runLevelFactor,
		CheckpointInterval: runCheckpointIv,
	}
}

func openStore(dataDir string) (store.Store, error) {
	if dataDir == "" {
		return nil, nil
	}
	return store.NewFSStore(dataDir)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	config := runConfigFromFlags()
	slog.Info("Starting optimization", "problem", config.Problem, "algorithm", config.Algorithm, "iters", config.Iters)

	checkpointStore, err := openStore(runDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	var onProgress func(server.ProgressEvent)
	if runProgress {
		onProgress = func(event server.ProgressEvent) {
			slog.Info("Progress",
				"iterations", event.Iterations,
				"best_score", event.BestScore,
				"acceptance_ratio", event.AcceptanceRatio,
			)
		}
	}

	start := time.Now()
	job, err := server.ExecuteLocal(cmd.Context(), config, checkpointStore, runDataDir, nil, onProgress)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	printJobResult(job, elapsed)
	return nil
}

func printJobResult(job *server.Job, elapsed time.Duration) {
	fmt.Printf("Job %s: %s\n", job.ID, job.State)
	fmt.Printf("  Score: %.6g -> %.6g\n", job.InitialScore, job.BestScore)
	fmt.Printf("  Iterations: %d\n", job.Iterations)
	fmt.Printf("  Acceptance ratio: %.3f\n", job.AcceptanceRatio)
	fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if len(job.BestSolution) <= 16 {
		fmt.Printf("  Best solution: %v\n", job.BestSolution)
	}
}
