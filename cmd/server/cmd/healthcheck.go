package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckTimeout int
	healthcheckURL     string
)

func newHealthcheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server is healthy, non-zero otherwise.

Exit codes:
  0 - Server is healthy
  1 - Server is unhealthy or unreachable
  2 - Invalid response from server`,
		RunE: runHealthcheck,
	}
	cmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	cmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	return cmd
}

// HealthResponse matches the report served by /health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResult is the outcome of one probe.
type HealthCheckResult struct {
	IsHealthy bool
	Status    string
	Error     string
	LatencyMs int64
	// Invalid is set when the server answered with an unreadable body.
	Invalid bool
}

func defaultHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

func performHealthCheck(url string) HealthCheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	result := HealthCheckResult{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		result.Error = fmt.Sprintf("parse response: %v", err)
		result.Invalid = true
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}
	result.Status = health.Status
	result.IsHealthy = resp.StatusCode == http.StatusOK && health.Status == "healthy"
	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		url = defaultHealthURL()
	}

	result := performHealthCheck(url)
	switch {
	case result.Invalid:
		fmt.Fprintf(os.Stderr, "Invalid health check response: %s\n", result.Error)
		os.Exit(2)
	case result.Error != "":
		fmt.Fprintf(os.Stderr, "Health check failed: %s\n", result.Error)
		os.Exit(1)
	case !result.IsHealthy:
		fmt.Fprintf(os.Stderr, "Server status: %s\n", result.Status)
		os.Exit(1)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "healthy (%dms)\n", result.LatencyMs)
	return nil
}
