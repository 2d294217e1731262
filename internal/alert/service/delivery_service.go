package service

import (
	"context"
	"fmt"
	"time"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
	"tradeedge-alerts/pkg/utils"
)

// DeliveryService exposes delivery attempts and the manual dead-letter resend
// to the operations API.
type DeliveryService interface {
	Get(ctx context.Context, param dto.GetDeliveryAttemptsParam) ([]entity.DeliveryAttempt, error)
	GetDeadLetters(ctx context.Context) ([]entity.DeliveryAttempt, error)
	Resend(ctx context.Context, attemptID uint) (*entity.DeliveryAttempt, error)
}

// NewDeliveryService creates a new DeliveryService.
func NewDeliveryService(attempts repository.DeliveryAttemptsRepository, log *logger.Logger) DeliveryService {
	return &deliveryService{
		attempts: attempts,
		logger:   log,
	}
}

type deliveryService struct {
	attempts repository.DeliveryAttemptsRepository
	logger   *logger.Logger
}

func (s *deliveryService) Get(ctx context.Context, param dto.GetDeliveryAttemptsParam) ([]entity.DeliveryAttempt, error) {
	return s.attempts.Get(ctx, param)
}

func (s *deliveryService) GetDeadLetters(ctx context.Context) ([]entity.DeliveryAttempt, error) {
	return s.attempts.Get(ctx, dto.GetDeliveryAttemptsParam{
		Statuses: []entity.DeliveryStatus{entity.DeliveryDeadlettered},
	})
}

// Resend gives a dead-lettered attempt a fresh retry budget. The retry sweeper
// picks it up on its next run.
func (s *deliveryService) Resend(ctx context.Context, attemptID uint) (*entity.DeliveryAttempt, error) {
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != entity.DeliveryDeadlettered {
		return nil, fmt.Errorf("attempt %d is %s, only deadlettered attempts can be resent", attemptID, attempt.Status)
	}

	now := time.Now().UTC()
	attempt.Status = entity.DeliveryFailed
	attempt.Attempts = 0
	attempt.NextRetryAt = utils.ToPointer(now)
	if err := s.attempts.Update(ctx, attempt); err != nil {
		return nil, err
	}

	s.logger.Info("Dead-lettered attempt queued for resend", logger.Field("attempt_id", attemptID))
	return attempt, nil
}
