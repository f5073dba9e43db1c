package generation

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/snapdeckhq/snapdeck-api/internal/pkg/env"
)

const (
	defaultSweepMaxAgeMinutes = 30
	sweepBatchLimit           = 100
)

// Sweeper periodically fails and refunds jobs that never received a terminal
// update. It covers the gap left when a provider callback is lost and the
// client never polls.
type Sweeper struct {
	service *Service
	cron    *cron.Cron
	maxAge  time.Duration
}

func NewSweeper(service *Service) *Sweeper {
	maxAge := time.Duration(defaultSweepMaxAgeMinutes) * time.Minute
	if raw := env.GetEnv("GENERATION_SWEEP_MAX_AGE_MINUTES", ""); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			maxAge = time.Duration(minutes) * time.Minute
		}
	}
	return &Sweeper{
		service: service,
		cron:    cron.New(),
		maxAge:  maxAge,
	}
}

// Start schedules the sweep every five minutes and runs until Stop.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("*/5 * * * *", s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Infof("[Sweeper] Started, failing jobs stuck longer than %s", s.maxAge)
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) runOnce() {
	if _, err := s.service.SweepStale(s.maxAge, sweepBatchLimit); err != nil {
		log.Errorf("[Sweeper] Sweep run failed: %v", err)
	}
}
