package realtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyJobUpdate(t *testing.T) {
	var gotChannel, gotMessage string
	n := NewRedisNotifier(func(channel, message string) error {
		gotChannel, gotMessage = channel, message
		return nil
	})

	n.NotifyJobUpdate(42, JobUpdate{
		JobID:     "job-1",
		Status:    "completed",
		OutputURL: "https://cdn.example.com/out.png",
	})

	assert.Equal(t, "realtime:user:42", gotChannel)

	var decoded JobUpdate
	require.NoError(t, json.Unmarshal([]byte(gotMessage), &decoded))
	assert.Equal(t, "job-1", decoded.JobID)
	assert.Equal(t, "completed", decoded.Status)
	assert.Equal(t, "https://cdn.example.com/out.png", decoded.OutputURL)
}

func TestNotifyJobUpdate_PublishFailureIsSwallowed(t *testing.T) {
	n := NewRedisNotifier(func(string, string) error {
		return errors.New("redis down")
	})

	// Delivery is best-effort; a failed publish must not panic or propagate.
	n.NotifyJobUpdate(1, JobUpdate{JobID: "job-1", Status: "failed", ErrorCode: "PROVIDER_ERROR"})
}
