package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/cwbudde/localsearch/internal/bench"
	"github.com/cwbudde/localsearch/internal/search"
	"github.com/spf13/cobra"
)

var (
	benchProblem string
	benchCities  int
	benchIters   int
	benchTrials  int
	benchRuns    int
	benchSeed    int64
	benchMayfly  bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare search algorithms on a benchmark problem",
	Long: `Runs every search algorithm against a benchmark problem across several
seeds and prints a summary table. On the quadratic problem a mayfly swarm
baseline can be included for comparison.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchProblem, "problem", "quadratic", "Problem: quadratic, tsp")
	benchCmd.Flags().IntVar(&benchCities, "cities", 30, "Number of cities (tsp only)")
	benchCmd.Flags().IntVar(&benchIters, "iters", 10000, "Max iterations per run")
	benchCmd.Flags().IntVar(&benchTrials, "trials", 8, "Trial solutions per iteration")
	benchCmd.Flags().IntVar(&benchRuns, "runs", 5, "Runs per algorithm")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 1, "Base seed for run seeds")
	benchCmd.Flags().BoolVar(&benchMayfly, "mayfly", false, "Include mayfly swarm baseline (quadratic only)")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	seeds := bench.Seeds(benchSeed, benchRuns)

	switch benchProblem {
	case "quadratic":
		return benchQuadratic(cmd, seeds)
	case "tsp":
		return benchTSP(cmd, seeds)
	default:
		return fmt.Errorf("unknown problem: %s", benchProblem)
	}
}

// quadraticCandidates builds one candidate per algorithm with moderate
// default parameters.
func quadraticCandidates() []bench.Candidate[[]float64, bench.CoordMove] {
	type S = []float64
	type Tr = bench.CoordMove
	n := benchTrials
	u := search.Unlimited

	return []bench.Candidate[S, Tr]{
		{Name: "Random", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewRandomSearch[S, Tr](u), nil
		}},
		{Name: "Hill climbing", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewHillClimbing[S, Tr](u, n), nil
		}},
		{Name: "Epsilon greedy", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewEpsilonGreedy[S, Tr](u, n, u, 0.05), nil
		}},
		{Name: "Metropolis", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewMetropolis[S, Tr](u, n, u, 1.0), nil
		}},
		{Name: "Simulated annealing", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewSimulatedAnnealing[S, Tr](u, n, u, 1.0, 1.05, 100), nil
		}},
		{Name: "Adaptive annealing", Build: func() (search.Optimizer[S, Tr], error) {
			scheduler := search.NewAdaptiveScheduler(0.5, 0.01, search.ScheduleExponential, 0.05)
			return search.NewAdaptiveAnnealing[S, Tr](u, n, u, 100, scheduler), nil
		}},
		{Name: "Great deluge", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewGreatDeluge[S, Tr](u, n, u, 2.0), nil
		}},
		{Name: "Tabu search", Build: func() (search.Optimizer[S, Tr], error) {
			tabu := search.NewRingTabuList[S, Tr](16, func(a, b Tr) bool { return a.Index == b.Index })
			return search.NewTabuSearch[S, Tr](u, n, u, tabu), nil
		}},
		{Name: "Population annealing", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewPopulationAnnealing[S, Tr](u, u, 20, 1.0, 1.05, 100), nil
		}},
		{Name: "Parallel tempering", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewParallelTempering[S, Tr](u, u, search.NewGeometricLadder(8, 0.01, 100.0), 100), nil
		}},
	}
}

func benchQuadratic(cmd *cobra.Command, seeds []int64) error {
	model := bench.DefaultQuadratic()
	summaries, err := bench.Compare(cmd.Context(), model, quadraticCandidates(), benchIters, 0, seeds)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	if benchMayfly {
		baseline := bench.NewMayflyBaseline(200, 20)
		summaries = append(summaries, baseline.Summarize(model, seeds))
	}

	bench.RenderTable(os.Stdout, summaries)
	return nil
}

func benchTSP(cmd *cobra.Command, seeds []int64) error {
	type S = []int
	type Tr = bench.TwoOptMove
	n := benchTrials
	u := search.Unlimited

	cities := bench.RandomCities(benchCities, 100.0, rand.New(rand.NewSource(benchSeed)))
	model, err := bench.NewTSP(cities)
	if err != nil {
		return fmt.Errorf("building tsp instance: %w", err)
	}

	candidates := []bench.Candidate[S, Tr]{
		{Name: "Hill climbing", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewHillClimbing[S, Tr](u, n), nil
		}},
		{Name: "Metropolis", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewMetropolis[S, Tr](u, n, u, 1.0), nil
		}},
		{Name: "Simulated annealing", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewSimulatedAnnealing[S, Tr](u, n, u, 0.1, 1.05, 100), nil
		}},
		{Name: "Tabu search", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewTabuSearch[S, Tr](u, n, u, bench.NewEdgeTabuList(16)), nil
		}},
		{Name: "Parallel tempering", Build: func() (search.Optimizer[S, Tr], error) {
			return search.NewParallelTempering[S, Tr](u, u, search.NewGeometricLadder(8, 0.01, 100.0), 100), nil
		}},
	}

	start := time.Now()
	summaries, err := bench.Compare(cmd.Context(), model, candidates, benchIters, 0, seeds)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	bench.RenderTable(os.Stdout, summaries)
	fmt.Printf("\nTotal: %s over %d seed(s)\n", time.Since(start).Round(time.Millisecond), len(seeds))
	return nil
}
