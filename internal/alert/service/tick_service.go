package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"tradeedge-alerts/internal/alert/config"
	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/pkg/common"
	"tradeedge-alerts/pkg/logger"
	redisPkg "tradeedge-alerts/pkg/redis"
)

// TickService moves price ticks through the Redis stream: the API side
// publishes, the alert side consumes and feeds the orchestrator.
type TickService interface {
	Publish(ctx context.Context, tick dto.PriceTick) error
	ProcessTicks(ctx context.Context)
}

// NewTickService creates a new TickService. orchestrator may be nil on the
// publish-only API side.
func NewTickService(cfg *config.Config, redisClient *redisPkg.Client, orchestrator AlertOrchestrator, log *logger.Logger) TickService {
	return &tickService{
		cfg:          cfg,
		redisClient:  redisClient,
		orchestrator: orchestrator,
		logger:       log,
	}
}

type tickService struct {
	cfg          *config.Config
	redisClient  *redisPkg.Client
	orchestrator AlertOrchestrator
	logger       *logger.Logger
}

// Publish appends the tick to the price stream.
func (s *tickService) Publish(ctx context.Context, tick dto.PriceTick) error {
	if tick.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if tick.ObservedAt.IsZero() {
		tick.ObservedAt = time.Now().UTC()
	}

	body, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}

	return s.redisClient.XAdd(ctx, &goRedis.XAddArgs{
		Stream: common.RedisStreamPriceTicks,
		MaxLen: s.cfg.Redis.StreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": string(body)},
	}).Err()
}

// ProcessTicks reads a batch from the price stream and routes each tick to its
// symbol lane. The stream is at-least-once; duplicates are harmless because
// the evaluator and ledger are idempotent.
func (s *tickService) ProcessTicks(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &goRedis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamPriceTicks, ">"},
		Count:    32,
		Block:    2 * time.Second, // allow graceful shutdown
	}).Result()

	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded || err == goRedis.Nil {
			return
		}
		s.logger.Error("Failed to read from tick stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 {
		return
	}

	for _, message := range streams[0].Messages {
		payload, ok := message.Values["payload"].(string)
		if !ok {
			s.logger.Error("field 'payload' not found or not a string in stream message", logger.Field("message_id", message.ID))
			s.ack(ctx, message.ID)
			continue
		}

		var tick dto.PriceTick
		if err := json.Unmarshal([]byte(payload), &tick); err != nil {
			s.logger.Error("Failed to unmarshal tick", logger.ErrorField(err), logger.Field("message_id", message.ID))
			s.ack(ctx, message.ID)
			continue
		}

		s.orchestrator.HandleTick(ctx, tick)
		s.ack(ctx, message.ID)
	}
}

func (s *tickService) ack(ctx context.Context, messageID string) {
	if err := s.redisClient.XAck(ctx, common.RedisStreamPriceTicks, common.RedisStreamGroup, messageID).Err(); err != nil {
		s.logger.Error("Failed to acknowledge tick message", logger.ErrorField(err), logger.Field("message_id", messageID))
	}
}
