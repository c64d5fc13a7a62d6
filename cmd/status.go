package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gonlopt/internal/server"
)

var (
	serverURL string
	submitCfg string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return listJobs(cmd.OutOrStdout(), serverURL)
		}
		return getJobStatus(cmd.OutOrStdout(), serverURL, args[0])
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a YAML run configuration to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(submitCfg)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return submitJob(cmd.OutOrStdout(), serverURL, data)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cancelJob(cmd.OutOrStdout(), serverURL, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, submitCmd, cancelCmd} {
		c.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
		rootCmd.AddCommand(c)
	}
	submitCmd.Flags().StringVar(&submitCfg, "config", "", "YAML run configuration (required)")
	_ = submitCmd.MarkFlagRequired("config")
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// serverError turns a non-2xx response into an error
func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(body))
}

func listJobs(w io.Writer, baseURL string) error {
	resp, err := httpClient.Get(baseURL + "/api/v1/jobs")
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var jobs []server.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintf(w, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Job ID: %s\n", job.ID)
		fmt.Fprintf(w, "  State: %s\n", job.State)
		fmt.Fprintf(w, "  Problem: %s (%s)\n", job.Config.Problem, job.Config.Optimizer)
		if job.Evaluations > 0 {
			fmt.Fprintf(w, "  Best: %.6g after %d evaluations\n", job.Best, job.Evaluations)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func getJobStatus(w io.Writer, baseURL, jobID string) error {
	resp, err := httpClient.Get(fmt.Sprintf("%s/api/v1/jobs/%s/status", baseURL, jobID))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var status server.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(w, "Job: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s\n", status.State)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Problem: %s\n", status.Config.Problem)
	fmt.Fprintf(w, "  Optimizer: %s\n", status.Config.Optimizer)
	if status.Config.Algorithm != "" {
		fmt.Fprintf(w, "  Algorithm: %s\n", status.Config.Algorithm)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Evaluations: %d\n", status.Evaluations)
	if status.Evaluations > 0 {
		fmt.Fprintf(w, "  Best: %.10g\n", status.Best)
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.EvalsPerSec > 0 {
		fmt.Fprintf(w, "  Throughput: %.0f evals/sec\n", status.EvalsPerSec)
	}

	if status.State == server.StateCompleted {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Result:")
		fmt.Fprintf(w, "  Status: %s\n", status.Status)
		fmt.Fprintf(w, "  Value: %.10g\n", status.Value)
		fmt.Fprintf(w, "  X: %v\n", status.X)
	}
	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}
	return nil
}

func submitJob(w io.Writer, baseURL string, yamlConfig []byte) error {
	resp, err := httpClient.Post(baseURL+"/api/v1/jobs", "application/yaml", bytes.NewReader(yamlConfig))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return serverError(resp)
	}

	var job server.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	fmt.Fprintf(w, "Submitted job %s (%s)\n", job.ID, job.Config.Problem)
	return nil
}

func cancelJob(w io.Writer, baseURL, jobID string) error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/jobs/%s", baseURL, jobID), nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Fprintf(w, "Cancellation requested for job %s\n", jobID)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job not found: %s", jobID)
	default:
		return serverError(resp)
	}
}
