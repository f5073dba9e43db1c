package aiprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snapdeckhq/snapdeck-api/internal/pkg/env"
)

const defaultReplicateAPIBaseURL = "https://api.replicate.com"

// ReplicateClient talks to a Replicate-style asynchronous predictions API:
// submissions return immediately with an external id, and results arrive via
// the registered webhook or polling.
type ReplicateClient struct {
	APIToken   string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewReplicateClientFromEnv() *ReplicateClient {
	return &ReplicateClient{
		APIToken:   strings.TrimSpace(env.GetEnv("REPLICATE_API_TOKEN", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("REPLICATE_API_BASE_URL", defaultReplicateAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *ReplicateClient) Name() string {
	return "replicate"
}

type replicatePredictionRequest struct {
	Version             string                 `json:"version"`
	Input               map[string]interface{} `json:"input"`
	Webhook             string                 `json:"webhook,omitempty"`
	WebhookEventsFilter []string               `json:"webhook_events_filter,omitempty"`
}

type replicatePrediction struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Output  json.RawMessage `json:"output"`
	Error   string          `json:"error"`
	Metrics struct {
		PredictTime float64 `json:"predict_time"`
	} `json:"metrics"`
}

func (c *ReplicateClient) Submit(ctx context.Context, req Request) (*Submission, error) {
	if strings.TrimSpace(c.APIToken) == "" {
		return nil, errors.New("REPLICATE_API_TOKEN is not configured")
	}
	if strings.TrimSpace(req.ModelID) == "" {
		return nil, errors.New("model id is required")
	}

	body, err := json.Marshal(replicatePredictionRequest{
		Version:             req.ModelID,
		Input:               req.Input,
		Webhook:             req.CallbackURL,
		WebhookEventsFilter: []string{"completed"},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Token "+c.APIToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider rejected submission: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, fmt.Errorf("invalid provider response: %w", err)
	}
	if prediction.ID == "" {
		return nil, errors.New("provider response missing prediction id")
	}

	return &Submission{
		ExternalID:       prediction.ID,
		EstimatedSeconds: 30,
	}, nil
}

// ParseResult decodes a completion webhook payload or a poll response body.
func (c *ReplicateClient) ParseResult(payload []byte) (*Result, error) {
	var prediction replicatePrediction
	if err := json.Unmarshal(payload, &prediction); err != nil {
		return nil, fmt.Errorf("invalid provider payload: %w", err)
	}
	return predictionToResult(&prediction)
}

func (c *ReplicateClient) Poll(ctx context.Context, externalID string) (*Result, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, errors.New("external id is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/v1/predictions/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Token "+c.APIToken)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider poll failed: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return c.ParseResult(raw)
}

func predictionToResult(p *replicatePrediction) (*Result, error) {
	result := &Result{ExternalID: p.ID}

	switch p.Status {
	case "succeeded":
		result.Terminal = true
		result.Succeeded = true
		output, err := firstOutputURL(p.Output)
		if err != nil {
			return nil, err
		}
		result.OutputURL = output
	case "failed", "canceled":
		result.Terminal = true
		result.ErrorMessage = p.Error
		if result.ErrorMessage == "" {
			result.ErrorMessage = "provider reported " + p.Status
		}
	case "starting", "processing":
		// Still in flight.
	default:
		return nil, fmt.Errorf("unknown prediction status %q", p.Status)
	}
	return result, nil
}

// firstOutputURL handles both output shapes the API uses: a single URL string
// or an array of URLs.
func firstOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("succeeded prediction carries no output")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return "", errors.New("succeeded prediction carries empty output")
		}
		return single, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 || list[0] == "" {
			return "", errors.New("succeeded prediction carries empty output list")
		}
		return list[0], nil
	}
	return "", errors.New("unrecognized prediction output shape")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
