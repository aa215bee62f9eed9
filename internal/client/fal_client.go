package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/config"
)

// ImageGenerator defines the interface for image generation. A nil or
// unconfigured generator is a valid "feature disabled" state: artwork
// stages then produce empty URLs instead of failing.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspect string) (string, error)
	IsConfigured() bool
}

// FalClient implements ImageGenerator against the fal.ai inference API
type FalClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	retry      RetryPolicy
}

type falImageRequest struct {
	Prompt      string `json:"prompt"`
	ImageSize   string `json:"image_size,omitempty"`
	NumImages   int    `json:"num_images"`
	EnableSafe  bool   `json:"enable_safety_checker"`
	OutputForm  string `json:"output_format,omitempty"`
}

type falImageResponse struct {
	Images []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
}

// NewFalClient creates a new fal.ai API client
func NewFalClient(cfg *config.FalConfig, retry RetryPolicy) *FalClient {
	return &FalClient{
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		retry:   retry,
	}
}

// GenerateImage produces one image for the prompt and returns its URL.
// aspect maps to the provider's image_size vocabulary ("square",
// "landscape_4_3", "portrait_4_3", ...).
func (c *FalClient) GenerateImage(ctx context.Context, prompt, aspect string) (string, error) {
	reqBody := falImageRequest{
		Prompt:     prompt,
		ImageSize:  aspect,
		NumImages:  1,
		OutputForm: "jpeg",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, c.model)

	var url string
	err = c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Key "+c.apiKey)

		log.Printf("[Fal API] → POST %s", endpoint)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("fal API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var imgResp falImageResponse
		if err := json.Unmarshal(respBody, &imgResp); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if len(imgResp.Images) == 0 || imgResp.Images[0].URL == "" {
			return fmt.Errorf("no image in response")
		}

		url = imgResp.Images[0].URL
		return nil
	})
	if err != nil {
		return "", err
	}

	return url, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *FalClient) IsConfigured() bool {
	return c.apiKey != ""
}
