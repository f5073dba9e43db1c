package aiprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult_Succeeded(t *testing.T) {
	c := &ReplicateClient{}

	result, err := c.ParseResult([]byte(`{
		"id": "pred_abc",
		"status": "succeeded",
		"output": "https://cdn.example.com/out.png"
	}`))
	require.NoError(t, err)
	assert.True(t, result.Terminal)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "pred_abc", result.ExternalID)
	assert.Equal(t, "https://cdn.example.com/out.png", result.OutputURL)
}

func TestParseResult_SucceededWithOutputList(t *testing.T) {
	c := &ReplicateClient{}

	result, err := c.ParseResult([]byte(`{
		"id": "pred_abc",
		"status": "succeeded",
		"output": ["https://cdn.example.com/a.png", "https://cdn.example.com/b.png"]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", result.OutputURL)
}

func TestParseResult_Failed(t *testing.T) {
	c := &ReplicateClient{}

	result, err := c.ParseResult([]byte(`{
		"id": "pred_abc",
		"status": "failed",
		"error": "CUDA out of memory"
	}`))
	require.NoError(t, err)
	assert.True(t, result.Terminal)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "CUDA out of memory", result.ErrorMessage)
}

func TestParseResult_InFlight(t *testing.T) {
	c := &ReplicateClient{}

	result, err := c.ParseResult([]byte(`{"id": "pred_abc", "status": "processing"}`))
	require.NoError(t, err)
	assert.False(t, result.Terminal)
}

func TestParseResult_SucceededWithoutOutput(t *testing.T) {
	c := &ReplicateClient{}

	_, err := c.ParseResult([]byte(`{"id": "pred_abc", "status": "succeeded"}`))
	assert.Error(t, err)
}

func TestParseResult_UnknownStatus(t *testing.T) {
	c := &ReplicateClient{}

	_, err := c.ParseResult([]byte(`{"id": "pred_abc", "status": "paused"}`))
	assert.Error(t, err)
}

func TestSubmit(t *testing.T) {
	var captured replicatePredictionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/predictions", r.URL.Path)
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "pred_new", "status": "starting"}`))
	}))
	defer server.Close()

	c := &ReplicateClient{
		APIToken:   "test-token",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}

	sub, err := c.Submit(context.Background(), Request{
		ModelID:     "snapdeck/real-esrgan-4x",
		Input:       map[string]interface{}{"image": "https://cdn.example.com/in.jpg", "scale": 4},
		CallbackURL: "https://api.snapdeck.app/api/internal/generations/callback/uuid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pred_new", sub.ExternalID)
	assert.Equal(t, "snapdeck/real-esrgan-4x", captured.Version)
	assert.Equal(t, "https://api.snapdeck.app/api/internal/generations/callback/uuid-1", captured.Webhook)
}

func TestSubmit_ProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": "invalid version"}`))
	}))
	defer server.Close()

	c := &ReplicateClient{
		APIToken:   "test-token",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}

	_, err := c.Submit(context.Background(), Request{ModelID: "bogus", Input: map[string]interface{}{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestPoll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/predictions/pred_abc", r.URL.Path)
		w.Write([]byte(`{"id": "pred_abc", "status": "succeeded", "output": "https://cdn.example.com/out.png"}`))
	}))
	defer server.Close()

	c := &ReplicateClient{
		APIToken:   "test-token",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}

	result, err := c.Poll(context.Background(), "pred_abc")
	require.NoError(t, err)
	assert.True(t, result.Terminal)
	assert.Equal(t, "https://cdn.example.com/out.png", result.OutputURL)
}

func TestRegistry(t *testing.T) {
	c := &ReplicateClient{}
	r := NewRegistry(c)

	got, err := r.Get("replicate")
	require.NoError(t, err)
	assert.Same(t, Provider(c), got)

	_, err = r.Get("unknown")
	assert.Error(t, err)
}
