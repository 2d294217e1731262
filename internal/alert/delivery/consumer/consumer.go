package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tradeedge-alerts/internal/alert/config"
	"tradeedge-alerts/internal/alert/service"
	"tradeedge-alerts/pkg/logger"
	"tradeedge-alerts/pkg/utils"
)

// AlertConsumer drives the alert service's background work: the price tick
// stream loop plus the cron-scheduled retry and recovery sweeps.
type AlertConsumer struct {
	cfg          *config.Config
	tickService  service.TickService
	dispatcher   service.DeliveryDispatcher
	orchestrator service.AlertOrchestrator
	logger       *logger.Logger
	cron         *cron.Cron
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// NewAlertConsumer creates a new AlertConsumer.
func NewAlertConsumer(
	cfg *config.Config,
	tickService service.TickService,
	dispatcher service.DeliveryDispatcher,
	orchestrator service.AlertOrchestrator,
	log *logger.Logger,
) *AlertConsumer {
	return &AlertConsumer{
		cfg:          cfg,
		tickService:  tickService,
		dispatcher:   dispatcher,
		orchestrator: orchestrator,
		logger:       log,
		cron:         cron.New(),
		stopChan:     make(chan struct{}),
	}
}

// Start begins the tick loop and schedules the sweepers.
func (c *AlertConsumer) Start(ctx context.Context) error {
	c.logger.Info("Alert consumer started")

	c.registerStreamHandler(ctx, c.tickService.ProcessTicks, "price-ticks", c.cfg.Engine.TickReadTimeout)

	if _, err := c.cron.AddFunc(c.cfg.Engine.RetrySweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, c.cfg.Engine.TickReadTimeout)
		defer cancel()
		c.dispatcher.ProcessRetries(sweepCtx)
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.cfg.Engine.RecoverySweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, c.cfg.Engine.TickReadTimeout)
		defer cancel()
		c.orchestrator.ResumePending(sweepCtx)
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

func (c *AlertConsumer) registerStreamHandler(ctx context.Context, fn func(ctx context.Context), name string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.StringField("handler", name))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stream handler stopping due to context cancellation", logger.StringField("handler", name))
				return
			case <-c.stopChan:
				c.logger.Info("Stream handler stopping", logger.StringField("handler", name))
				return
			default:
				handlerCtx, cancel := context.WithTimeout(ctx, timeout)
				fn(handlerCtx)
				cancel()
			}
		}
	})
}

// Stop gracefully shuts down the consumer.
func (c *AlertConsumer) Stop() {
	close(c.stopChan)
	cronCtx := c.cron.Stop()
	<-cronCtx.Done()
	c.wg.Wait()
	c.logger.Info("Alert consumer stopped")
}
