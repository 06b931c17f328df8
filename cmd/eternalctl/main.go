// Package main implements the eternalctl CLI for manual operations against the eternal HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/eternal/internal/archive"
)

var (
	// serverURL is the base URL for the eternal HTTP server
	serverURL string
	// version information
	version = "dev"

	askMode   string
	askSource string
	askAPIKey string
	askRaw    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eternalctl",
	Short: "CLI for eternal HTTP server operations",
	Long: `eternalctl is a command-line interface for interacting with the eternal HTTP server.
It asks questions and inspects the archive.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:5000", "eternal server URL")

	askCmd.Flags().StringVar(&askMode, "mode", "powerful", "answer mode: powerful or own_system")
	askCmd.Flags().StringVar(&askSource, "source", "", "swarm source preference (simulated or web)")
	askCmd.Flags().StringVar(&askAPIKey, "api-key", "", "synthesis API key for this request only")
	askCmd.Flags().BoolVar(&askRaw, "json", false, "print the raw JSON response")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(healthCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask the server a question",
	Long: `Send a prompt to the eternal server and print the answer.

Examples:
  # Ask using the live synthesis path
  eternalctl ask "What is OpenAI?"

  # Use the specialist agent swarm
  eternalctl ask --mode own_system "History of the printing press"

  # Print the full response
  eternalctl ask --json "What is Go?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the archive integrity digest",
	Long: `Recompute the archive digest on the server and compare it with the stored one.
Exits non-zero when the archive fails the check.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check eternal server health",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

// GenerateRequest matches internal/http GenerateRequest.
type GenerateRequest struct {
	Prompt       string            `json:"prompt"`
	Mode         string            `json:"mode,omitempty"`
	Preferences  map[string]string `json:"preferences,omitempty"`
	CustomAPIKey string            `json:"custom_api_key,omitempty"`
}

// GenerateResponse matches internal/http GenerateResponse. Response is
// either a string or an object with text and image_url.
type GenerateResponse struct {
	Status           string          `json:"status"`
	Response         json.RawMessage `json:"response"`
	ModelUsed        string          `json:"model_used"`
	DiagnosticReport string          `json:"diagnostic_report"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
}

// HealthResponse matches internal/http HealthResponse.
type HealthResponse struct {
	Status string `json:"status"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	reqBody := GenerateRequest{
		Prompt:       strings.Join(args, " "),
		Mode:         askMode,
		CustomAPIKey: askAPIKey,
	}
	if askSource != "" {
		reqBody.Preferences = map[string]string{"source": askSource}
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/generate", serverURL)
	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Live synthesis can take a while.
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	out := cmd.OutOrStdout()
	if askRaw {
		_, err := out.Write(append(body, '\n'))
		return err
	}

	var gen GenerateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		msg := gen.Message
		if gen.Error != "" {
			msg += " " + gen.Error
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(msg))
	}

	text, image, err := decodeAnswer(gen.Response)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)
	if image != "" {
		fmt.Fprintf(out, "\nImage: %s\n", image)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s] %s\n", gen.ModelUsed, gen.DiagnosticReport)
	return nil
}

// decodeAnswer accepts both answer shapes.
func decodeAnswer(raw json.RawMessage) (text, image string, err error) {
	if len(raw) == 0 {
		return "", "", nil
	}
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, "", nil
	}
	var structured struct {
		Text     string  `json:"text"`
		ImageURL *string `json:"image_url"`
	}
	if err := json.Unmarshal(raw, &structured); err != nil {
		return "", "", fmt.Errorf("failed to decode answer: %w", err)
	}
	if structured.ImageURL != nil {
		image = *structured.ImageURL
	}
	return structured.Text, image, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	var stats archive.Stats
	if err := getJSON(cmd, "/api/v1/archive/stats", &stats); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:        %s\n", stats.Backend)
	fmt.Fprintf(out, "Entries:        %d\n", stats.Entries)
	fmt.Fprintf(out, "Total accesses: %d\n", stats.TotalAccesses)
	if !stats.LastUpdated.IsZero() {
		fmt.Fprintf(out, "Last updated:   %s\n", stats.LastUpdated.Format(time.RFC3339))
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	var report archive.VerifyReport
	if err := getJSON(cmd, "/api/v1/archive/verify", &report); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Entries:     %d\n", report.Entries)
	if report.HasDigest {
		fmt.Fprintf(out, "Stored hash: %s\n", report.StoredHash)
	} else {
		fmt.Fprintln(out, "Stored hash: (none)")
	}
	fmt.Fprintf(out, "Actual hash: %s\n", report.ActualHash)
	if !report.Valid {
		return fmt.Errorf("archive failed integrity check")
	}
	fmt.Fprintln(out, "Integrity:   OK")
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	var health HealthResponse
	if err := getJSON(cmd, "/health", &health); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", health.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", serverURL)
	return nil
}

func getJSON(cmd *cobra.Command, path string, v any) error {
	url := serverURL + path
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
