package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or a specific job",
	Long: `Queries the server for job status information.
Without a job-id, lists all jobs. With a job-id, shows detailed status.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs()
	}
	return getJobStatus(args[0])
}

// fetchJSON issues a GET and decodes the JSON body into out. A 404 is
// reported as notFound so callers can phrase the error.
func fetchJSON(url string, out interface{}) (notFound bool, err error) {
	resp, err := http.Get(url)
	if err != nil {
		return false, fmt.Errorf("connect to server: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return true, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("server returned error: %s", string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func listJobs() error {
	var jobs []map[string]interface{}
	notFound, err := fetchJSON(serverURL+"/api/v1/jobs", &jobs)
	if err != nil {
		return err
	}
	if notFound || len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		if config, ok := job["config"].(map[string]interface{}); ok {
			fmt.Printf("  Problem: %s\n", config["problem"])
			fmt.Printf("  Algorithm: %s\n", config["algorithm"])
		}
		best, haveBest := job["bestScore"].(float64)
		initial, haveInitial := job["initialScore"].(float64)
		if haveBest && haveInitial && initial != 0 {
			fmt.Printf("  Score: %.6g -> %.6g\n", initial, best)
		}
		fmt.Println()
	}
	return nil
}

func getJobStatus(jobID string) error {
	var status map[string]interface{}
	url := fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID)
	notFound, err := fetchJSON(url, &status)
	if err != nil {
		return err
	}
	if notFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if config, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println("Configuration:")
		fmt.Printf("  Problem: %s\n", config["problem"])
		fmt.Printf("  Algorithm: %s\n", config["algorithm"])
		fmt.Printf("  Iterations: %v\n", config["iters"])
		fmt.Printf("  Trials: %v\n", config["nTrials"])
		fmt.Printf("  Seed: %v\n", config["seed"])
		fmt.Println()
	}

	fmt.Println("Progress:")
	initial, _ := status["initialScore"].(float64)
	if initial != 0 {
		fmt.Printf("  Initial Score: %.6g\n", initial)
	}
	if best, ok := status["bestScore"].(float64); ok {
		fmt.Printf("  Best Score: %.6g\n", best)
		if initial != 0 {
			improvement := initial - best
			fmt.Printf("  Improvement: %.6g (%.1f%%)\n", improvement, improvement/initial*100)
		}
	}
	if iters, ok := status["iterations"].(float64); ok && iters > 0 {
		fmt.Printf("  Iterations: %.0f\n", iters)
	}
	if ratio, ok := status["acceptanceRatio"].(float64); ok {
		fmt.Printf("  Acceptance Ratio: %.3f\n", ratio)
	}
	if secs, ok := status["elapsed"].(float64); ok {
		elapsed := time.Duration(secs * float64(time.Second))
		fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	}
	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		fmt.Printf("\nError: %s\n", errMsg)
	}
	return nil
}
