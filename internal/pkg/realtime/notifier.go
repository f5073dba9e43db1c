// Package realtime pushes job state changes to connected clients through
// Redis pub/sub. Each user has a private channel; API frontends subscribe and
// forward messages over their own transport.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
)

// Notifier delivers job updates to a user's realtime channel. Delivery is
// best-effort: a failed publish is logged, never propagated, because the
// client can always fall back to polling the job status endpoint.
type Notifier interface {
	NotifyJobUpdate(userID uint, update JobUpdate)
}

// JobUpdate is the wire shape published to a user channel.
type JobUpdate struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	OutputURL string `json:"output_url,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Publisher is the pub/sub primitive the notifier rides on.
type Publisher func(channel string, message string) error

type redisNotifier struct {
	publish Publisher
}

func NewRedisNotifier(publish Publisher) Notifier {
	return &redisNotifier{publish: publish}
}

func UserChannel(userID uint) string {
	return fmt.Sprintf("realtime:user:%d", userID)
}

func (n *redisNotifier) NotifyJobUpdate(userID uint, update JobUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		log.Errorf("[Realtime] failed to encode update for user %d: %v", userID, err)
		return
	}
	if err := n.publish(UserChannel(userID), string(payload)); err != nil {
		log.Warnf("[Realtime] publish failed for user %d: %v", userID, err)
	}
}

// NopNotifier discards updates. Used when Redis is not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyJobUpdate(uint, JobUpdate) {}
