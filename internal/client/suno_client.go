package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/config"
)

// TaskState is the normalized category of an external audio task. The
// provider's own vocabulary never leaves this package.
type TaskState string

const (
	TaskStateRunning   TaskState = "running"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
)

// NormalizeTaskStatus maps the provider's status vocabulary onto the three
// states the poller understands. Unknown strings are treated as running so a
// new provider status never terminates a record by accident.
func NormalizeTaskStatus(providerStatus string) TaskState {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "completed", "complete", "success", "succeeded":
		return TaskStateSucceeded
	case "failed", "error", "errored", "cancelled", "canceled", "timeout":
		return TaskStateFailed
	default:
		// "pending", "queued", "running", "processing", "streaming", ...
		return TaskStateRunning
	}
}

// MusicTaskClient defines the interface to the asynchronous audio provider:
// submit a job, learn its fate only by querying the returned task id.
type MusicTaskClient interface {
	SubmitAudio(ctx context.Context, req *SubmitAudioRequest) (*SubmitAudioResponse, error)
	GetAudioTask(ctx context.Context, taskID string) (*AudioTaskResult, error)
	IsConfigured() bool
}

// SunoClient implements MusicTaskClient for the Suno API
type SunoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retry      RetryPolicy
}

// SubmitAudioRequest represents an audio generation submission
type SubmitAudioRequest struct {
	Lyrics string `json:"prompt"`
	Style  string `json:"style,omitempty"`
	Title  string `json:"title,omitempty"`
}

// SubmitAudioResponse represents the acknowledgement of a submission
type SubmitAudioResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// AudioTaskResult represents a task status query result
type AudioTaskResult struct {
	TaskID       string  `json:"task_id"`
	Status       string  `json:"status"`
	AudioURL     string  `json:"audio_url,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// State returns the normalized category of the result's provider status
func (r *AudioTaskResult) State() TaskState {
	return NormalizeTaskStatus(r.Status)
}

// NewSunoClient creates a new Suno API client. The HTTP timeout is the
// per-call bound; a timed-out status query is a "try again next cycle"
// outcome for the poller, never a record failure.
func NewSunoClient(cfg *config.SunoConfig, retry RetryPolicy) *SunoClient {
	return &SunoClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		retry:   retry,
	}
}

// SubmitAudio initiates audio generation from lyrics and a style prompt
func (c *SunoClient) SubmitAudio(ctx context.Context, req *SubmitAudioRequest) (*SubmitAudioResponse, error) {
	var result SubmitAudioResponse
	err := c.retry.Do(ctx, func() error {
		return c.post(ctx, "/v1/music/generate", req, &result)
	})
	if err != nil {
		return nil, err
	}
	if result.TaskID == "" {
		return nil, fmt.Errorf("submission accepted without a task id")
	}
	return &result, nil
}

// GetAudioTask retrieves the status of an audio generation task. Queries go
// through NoRetry; the poll cycle is the retry loop.
func (c *SunoClient) GetAudioTask(ctx context.Context, taskID string) (*AudioTaskResult, error) {
	endpoint := fmt.Sprintf("/v1/music/status/%s", taskID)
	var result AudioTaskResult
	err := NoRetry.Do(ctx, func() error {
		return c.get(ctx, endpoint, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends a POST request with JSON body
func (c *SunoClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *SunoClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *SunoClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[Suno API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Suno API] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Suno API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("suno API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *SunoClient) IsConfigured() bool {
	return c.apiKey != ""
}
