package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/repository"
)

// Sweeper expires overdue stock reservations on a fixed schedule.  The
// whole pass is one idempotent UPDATE, so running multiple replicas is
// safe; at worst they race to flip the same rows and the losers touch
// zero of them.
type Sweeper struct {
	reservations *repository.StockReservationRepository
	scheduler    *gocron.Scheduler
	log          *zap.Logger
}

func NewSweeper(r *repository.StockReservationRepository, log *zap.Logger) *Sweeper {
	return &Sweeper{
		reservations: r,
		scheduler:    gocron.NewScheduler(time.UTC),
		log:          log,
	}
}

// Run executes one sweep pass and returns the number of holds expired.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	n, err := s.reservations.ExpireOverdue(ctx, time.Now())
	if err != nil {
		s.log.Error("reservation sweep failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired stale reservations", zap.Int64("count", n))
	}
	return n, nil
}

// Start schedules the sweep every intervalMin minutes and launches the
// scheduler in the background.
func (s *Sweeper) Start(intervalMin int) error {
	_, err := s.scheduler.Every(intervalMin).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = s.Run(ctx)
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop halts the scheduler, waiting for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}
