// Package scheduler runs the enabled strategies on market-hour cron
// schedules. Scheduled runs always execute live; previewing is an
// interactive concern.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"stockpilot/config"
	"stockpilot/internal/app"
	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// Cron specs are in the account's local market time (5-field, minute first).
const (
	specDCADaily      = "35 9 * * 1-5" // shortly after the opening auction settles
	specDCAWeekly     = "35 9 * * 1"
	specDCAMonthly    = "35 9 1 * *"
	specDRIP          = "0 10 * * 1-5"
	specRebalance     = "0 15 * * 5" // Friday, one hour before close
	specOpportunistic = "0 10,12,14 * * 1-5"
)

// Scheduler owns the cron runner and dispatches strategy runs.
type Scheduler struct {
	cron    *cron.Cron
	service *app.Service
	cfg     *config.Config
	logger  ports.Logger
}

// New builds a scheduler with one cron entry per enabled strategy.
func New(cfg *config.Config, service *app.Service, logger ports.Logger) (*Scheduler, error) {
	if cfg == nil || service == nil || logger == nil {
		return nil, fmt.Errorf("config, service and logger are required for scheduler")
	}

	s := &Scheduler{
		cron:    cron.New(),
		service: service,
		cfg:     cfg,
		logger:  logger,
	}

	if cfg.DCAEnabled {
		spec := specDCAWeekly
		switch cfg.DCAFrequency {
		case "daily":
			spec = specDCADaily
		case "monthly":
			spec = specDCAMonthly
		}
		if err := s.register(spec, "dca", true, app.StrategyParams{
			Symbols:     cfg.DCASymbols,
			TotalAmount: cfg.DCAAmount,
		}); err != nil {
			return nil, err
		}
	}
	if cfg.DRIPEnabled {
		if err := s.register(specDRIP, "drip", true, app.StrategyParams{}); err != nil {
			return nil, err
		}
	}
	if cfg.RebalanceEnabled {
		if err := s.register(specRebalance, "rebalance", true, app.StrategyParams{
			TargetAllocation: cfg.TargetAllocation,
			Threshold:        cfg.RebalanceThreshold,
		}); err != nil {
			return nil, err
		}
	}
	if cfg.OpportunisticEnabled {
		// Fires several times a day on purpose; no once-a-day guard.
		if err := s.register(specOpportunistic, "opportunistic", false, app.StrategyParams{
			Symbols:         cfg.DCASymbols,
			DipThreshold:    cfg.OpportunisticDipThreshold,
			BuyAmountPerHit: cfg.OpportunisticBuyAmount,
		}); err != nil {
			return nil, err
		}
	}
	if cfg.OptionsEnabled {
		params := app.StrategyParams{DaysToExpiry: cfg.OptionsDTE, OTMPercentage: cfg.OptionsOTM}
		if err := s.register(specRebalance, "covered_calls", true, params); err != nil {
			return nil, err
		}
	}

	if len(s.cron.Entries()) == 0 {
		return nil, fmt.Errorf("%w: no strategies enabled for scheduling", ports.ErrConfigurationError)
	}
	return s, nil
}

func (s *Scheduler) register(spec, name string, oncePerDay bool, params app.StrategyParams) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if oncePerDay {
			ran, err := s.service.RanToday(ctx, name)
			if err != nil {
				s.logger.Warn(ctx, "Could not check today's run history, proceeding", map[string]interface{}{
					"strategy": name,
					"error":    err.Error(),
				})
			} else if ran {
				s.logger.Info(ctx, "Strategy already ran today, skipping", map[string]interface{}{"strategy": name})
				return
			}
		}
		s.logger.Info(ctx, "Scheduled strategy run starting", map[string]interface{}{
			"strategy": name,
			"schedule": spec,
		})
		batch, err := s.service.Run(ctx, name, params, domain.ModeLive)
		if err != nil {
			s.logger.Error(ctx, err, "Scheduled strategy run failed", map[string]interface{}{"strategy": name})
			return
		}
		s.logger.Info(ctx, "Scheduled strategy run finished", map[string]interface{}{
			"strategy":  name,
			"total":     batch.Summary.Total,
			"submitted": batch.Summary.Submitted,
			"failed":    batch.Summary.Failed,
		})
	})
	if err != nil {
		return fmt.Errorf("registering schedule %q for %s: %w", spec, name, err)
	}
	s.logger.Info(context.Background(), "Strategy scheduled", map[string]interface{}{
		"strategy": name,
		"schedule": spec,
	})
	return nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
