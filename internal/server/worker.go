package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cwbudde/localsearch/internal/bench"
	"github.com/cwbudde/localsearch/internal/search"
	"github.com/cwbudde/localsearch/internal/store"
)

// defaultTSPSide is the edge length of the square that random TSP
// instances are drawn from.
const defaultTSPSide = 100.0

// runJob executes an optimization job in the background.
// If checkpointStore is not nil and the job has checkpointInterval > 0,
// periodic checkpoints are saved. When resume is not nil, the search starts
// from the checkpointed best solution instead of a random one. dataDir is
// the root for trace logs; an empty dataDir disables tracing.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, dataDir, jobID string, resume *store.Checkpoint) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	cfg := job.Config
	slog.Info("Starting job", "job_id", jobID, "problem", cfg.Problem, "algorithm", cfg.Algorithm, "resume", resume != nil)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	switch cfg.Problem {
	case "quadratic":
		model := bench.DefaultQuadratic()
		var initial *search.Initial[[]float64]
		if resume != nil {
			initial = &search.Initial[[]float64]{
				Solution: append([]float64(nil), resume.BestSolution...),
				Score:    resume.BestScore,
			}
		}
		// Moves to a recently touched coordinate are tabu.
		tabu := search.NewRingTabuList[[]float64, bench.CoordMove](tabuCapacity(cfg),
			func(a, b bench.CoordMove) bool { return a.Index == b.Index })
		return executeJob(ctx, jm, checkpointStore, dataDir, jobID, model, initial, tabu, rng, floatVector)

	case "tsp":
		n := cfg.Cities
		if n < 3 {
			n = 30
		}
		// The instance is rebuilt from the seed, so a resumed tour stays
		// valid for the same config.
		cities := bench.RandomCities(n, defaultTSPSide, rand.New(rand.NewSource(seed)))
		model, err := bench.NewTSP(cities)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		var initial *search.Initial[[]int]
		if resume != nil {
			tour := make([]int, len(resume.BestSolution))
			for i, v := range resume.BestSolution {
				tour[i] = int(v)
			}
			initial = &search.Initial[[]int]{Solution: tour, Score: resume.BestScore}
		}
		tabu := bench.NewEdgeTabuList(tabuCapacity(cfg))
		return executeJob(ctx, jm, checkpointStore, dataDir, jobID, model, initial, tabu, rng, tourVector)

	default:
		err := fmt.Errorf("unknown problem: %s", cfg.Problem)
		markJobFailed(jm, jobID, err)
		return err
	}
}

// floatVector snapshots a continuous solution for job state and checkpoints.
func floatVector(solution []float64) []float64 {
	return append([]float64(nil), solution...)
}

// tourVector widens a TSP tour to the float64 vector stored in checkpoints.
func tourVector(tour []int) []float64 {
	out := make([]float64, len(tour))
	for i, id := range tour {
		out[i] = float64(id)
	}
	return out
}

func tabuCapacity(cfg RunConfig) int {
	if cfg.TabuCapacity > 0 {
		return cfg.TabuCapacity
	}
	return 16
}

// executeJob drives one optimization run and keeps the job record, the SSE
// broadcaster, the trace log and the checkpoint store in sync with it.
func executeJob[S, Tr any](ctx context.Context, jm *JobManager, checkpointStore store.Store,
	dataDir, jobID string, model search.Model[S, Tr], initial *search.Initial[S],
	tabu search.TabuList[S, Tr], rng *rand.Rand, encode func(S) []float64) error {

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	cfg := job.Config

	optimizer, err := buildOptimizer(cfg, tabu)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// Generate the initial solution up front so the initial score is known
	// before the run starts.
	resumed := initial != nil
	if initial == nil {
		solution, score, genErr := model.GenerateRandomSolution(rng)
		if genErr != nil {
			markJobFailed(jm, jobID, fmt.Errorf("failed to generate initial solution: %w", genErr))
			return genErr
		}
		initial = &search.Initial[S]{Solution: solution, Score: score}
	}
	initialScore := initial.Score
	if resumed && job.InitialScore != 0 {
		// Keep the improvement baseline of the original run.
		initialScore = job.InitialScore
	}

	jm.UpdateJob(jobID, func(j *Job) {
		j.InitialScore = initialScore
		j.BestScore = initial.Score
		j.BestSolution = encode(initial.Solution)
	})

	var trace *store.TraceWriter
	if dataDir != "" {
		trace, err = store.NewTraceWriter(dataDir, jobID, resumed)
		if err != nil {
			slog.Warn("Trace disabled", "job_id", jobID, "error", err)
			trace = nil
		} else {
			defer trace.Close()
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	jm.setCancel(jobID, cancel)
	defer jm.clearCancel(jobID)

	// The callback runs on the optimizer's control goroutine; the best
	// solution is only copied when it improves.
	best := initial.Score
	callback := func(p search.Progress[S]) {
		improved := p.BestScore < best
		if improved {
			best = p.BestScore
		}
		jm.UpdateJob(jobID, func(j *Job) {
			j.Iterations = p.Iter + 1
			j.AcceptanceRatio = p.AcceptanceRatio
			if improved {
				j.BestScore = p.BestScore
				j.BestSolution = encode(p.BestSolution)
			}
		})
	}

	start := time.Now()

	// Check for cancellation before starting the run.
	select {
	case <-runCtx.Done():
		markJobCancelled(jm, jobID)
		return runCtx.Err()
	default:
	}

	// Start progress monitoring goroutine
	progressDone := make(chan struct{})
	go monitorProgress(runCtx, jm, trace, jobID, progressDone)

	// Start checkpoint monitoring goroutine if enabled
	checkpointDone := make(chan struct{})
	checkpointing := checkpointStore != nil && cfg.CheckpointInterval > 0
	if checkpointing {
		go monitorCheckpoints(runCtx, jm, checkpointStore, jobID, checkpointDone)
	} else {
		close(checkpointDone) // No checkpointing, close immediately
	}

	timeLimit := time.Duration(cfg.TimeLimitSec * float64(time.Second))
	result, err := search.Run(runCtx, optimizer, model, initial, cfg.Iters, timeLimit, rng, callback)

	close(progressDone)
	if checkpointing {
		close(checkpointDone)
	}
	elapsed := time.Since(start)

	if err != nil {
		// A cancelled run still carries the best result found so far.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			jm.UpdateJob(jobID, func(j *Job) {
				j.BestScore = result.BestScore
				j.BestSolution = encode(result.BestSolution)
				j.Iterations = result.Iterations
				j.AcceptanceRatio = result.AcceptanceRatio
			})
			if checkpointStore != nil {
				if saveErr := saveCheckpoint(jm, checkpointStore, jobID); saveErr != nil {
					slog.Error("Failed to save checkpoint", "job_id", jobID, "error", saveErr)
				}
			}
			markJobCancelled(jm, jobID)
			return err
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	// Update job with results
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestScore = result.BestScore
		j.BestSolution = encode(result.BestSolution)
		j.Iterations = result.Iterations
		j.AcceptanceRatio = result.AcceptanceRatio
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	// A final checkpoint makes every finished job resumable.
	if checkpointStore != nil {
		if saveErr := saveCheckpoint(jm, checkpointStore, jobID); saveErr != nil {
			slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", saveErr)
		}
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"initial_score", initialScore,
		"best_score", result.BestScore,
		"iterations", result.Iterations,
		"acceptance_ratio", result.AcceptanceRatio,
	)

	// Broadcast final completion event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:           jobID,
		State:           StateCompleted,
		Iterations:      result.Iterations,
		BestScore:       result.BestScore,
		AcceptanceRatio: result.AcceptanceRatio,
		Timestamp:       time.Now(),
	})

	return nil
}

// buildOptimizer maps an algorithm name and its config knobs to a concrete
// optimizer. Zero-valued knobs fall back to defaults.
func buildOptimizer[S, Tr any](cfg RunConfig, tabu search.TabuList[S, Tr]) (search.Optimizer[S, Tr], error) {
	patience := cfg.Patience
	if patience <= 0 {
		patience = search.Unlimited
	}
	returnIter := cfg.ReturnIter
	if returnIter <= 0 {
		returnIter = search.Unlimited
	}
	nTrials := cfg.NTrials
	if nTrials <= 0 {
		nTrials = 8
	}
	beta := cfg.Beta
	if beta == 0 {
		beta = 1.0
	}
	cooling := cfg.CoolingRate
	if cooling == 0 {
		cooling = 1.05
	}
	updateFreq := cfg.UpdateFrequency
	if updateFreq <= 0 {
		updateFreq = 100
	}

	switch cfg.Algorithm {
	case "random":
		return search.NewRandomSearch[S, Tr](patience), nil
	case "hill-climbing":
		return search.NewHillClimbing[S, Tr](patience, nTrials), nil
	case "epsilon-greedy":
		epsilon := cfg.Epsilon
		if epsilon == 0 {
			epsilon = 0.05
		}
		return search.NewEpsilonGreedy[S, Tr](patience, nTrials, returnIter, epsilon), nil
	case "metropolis":
		return search.NewMetropolis[S, Tr](patience, nTrials, returnIter, beta), nil
	case "simulated-annealing":
		return search.NewSimulatedAnnealing[S, Tr](patience, nTrials, returnIter, beta, cooling, updateFreq), nil
	case "adaptive-annealing":
		scheduler := search.NewAdaptiveScheduler(0.5, 0.01, search.ScheduleExponential, 0.05)
		return search.NewAdaptiveAnnealing[S, Tr](patience, nTrials, returnIter, updateFreq, scheduler), nil
	case "reannealing":
		return search.NewReannealing[S, Tr](patience, nTrials, returnIter, beta, cooling, 10*updateFreq), nil
	case "logistic-annealing":
		return search.NewLogisticAnnealing[S, Tr](patience, nTrials, returnIter, beta), nil
	case "relative-annealing":
		return search.NewRelativeAnnealing[S, Tr](patience, nTrials, returnIter, search.RelativeExp(beta)), nil
	case "tsallis-annealing":
		return search.NewTsallisAnnealing[S, Tr](patience, nTrials, returnIter, beta, 2.5, 1.0, updateFreq), nil
	case "great-deluge":
		levelFactor := cfg.LevelFactor
		if levelFactor == 0 {
			levelFactor = 2.0
		}
		return search.NewGreatDeluge[S, Tr](patience, nTrials, returnIter, levelFactor), nil
	case "tabu-search":
		return search.NewTabuSearch[S, Tr](patience, nTrials, returnIter, tabu), nil
	case "population-annealing":
		population := cfg.PopulationSize
		if population <= 0 {
			population = 20
		}
		return search.NewPopulationAnnealing[S, Tr](patience, returnIter, population, beta, cooling, updateFreq), nil
	case "parallel-tempering":
		replicas := cfg.Replicas
		if replicas < 2 {
			replicas = 8
		}
		betaMin := cfg.Beta
		if betaMin == 0 {
			betaMin = 0.01
		}
		ladder := search.NewGeometricLadder(replicas, betaMin, 100.0)
		return search.NewParallelTempering[S, Tr](patience, returnIter, ladder, updateFreq), nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %s", cfg.Algorithm)
	}
}

// monitorProgress periodically broadcasts progress events and appends trace
// entries while the run is active.
func monitorProgress(ctx context.Context, jm *JobManager, trace *store.TraceWriter, jobID string, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	lastIteration := -1
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Get current job state
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:           jobID,
				State:           job.State,
				Iterations:      job.Iterations,
				BestScore:       job.BestScore,
				AcceptanceRatio: job.AcceptanceRatio,
				Timestamp:       time.Now(),
			})

			// One trace entry per tick, but only when the run moved.
			if trace != nil && job.Iterations > lastIteration {
				lastIteration = job.Iterations
				entry := store.TraceEntry{
					Iteration:       job.Iterations,
					BestScore:       job.BestScore,
					AcceptanceRatio: job.AcceptanceRatio,
					Timestamp:       time.Now(),
				}
				if err := trace.Write(entry); err != nil {
					slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
				}
			}
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during optimization
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Skip if no best solution yet
	if len(job.BestSolution) == 0 {
		slog.Debug("Skipping checkpoint, no best solution yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		append([]float64(nil), job.BestSolution...),
		job.BestScore,
		job.InitialScore,
		job.Iterations,
		job.Config,
	)

	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"best_score", job.BestScore,
	)
	return nil
}
