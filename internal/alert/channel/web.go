package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/common"
	redisPkg "tradeedge-alerts/pkg/redis"
)

// WebAdapter pushes in-app notifications onto a Redis stream that the web
// frontend tails per user.
type WebAdapter struct {
	redisClient  *redisPkg.Client
	streamMaxLen int64
}

// NewWebAdapter creates the in-app notification adapter.
func NewWebAdapter(redisClient *redisPkg.Client, streamMaxLen int64) *WebAdapter {
	return &WebAdapter{
		redisClient:  redisClient,
		streamMaxLen: streamMaxLen,
	}
}

// Channel returns the channel this adapter serves.
func (a *WebAdapter) Channel() entity.Channel {
	return entity.ChannelWeb
}

// Send publishes the notification to the web feed stream. Redis being down is
// transient; a payload that cannot be serialized is permanent.
func (a *WebAdapter) Send(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(map[string]interface{}{
		"user_id":    d.UserID,
		"subject":    d.Subject,
		"message":    d.Message,
		"payload":    d.Payload,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Permanent(fmt.Errorf("failed to marshal web notification: %w", err))
	}

	err = a.redisClient.XAdd(ctx, &goRedis.XAddArgs{
		Stream: common.RedisStreamWebNotifications,
		MaxLen: a.streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": string(body)},
	}).Err()
	if err != nil {
		return Transient(fmt.Errorf("failed to publish web notification: %w", err))
	}
	return nil
}
