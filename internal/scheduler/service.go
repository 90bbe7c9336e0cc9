// Package scheduler runs the periodic overdue digest: a cron-driven sweep that
// logs per-property overdue and upcoming-deadline counts. It never mutates
// tasks; recurrence successors are created at task creation time, not here.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"stayops/internal/aggregate"
	"stayops/internal/taskstore"
)

type Service struct {
	store      *taskstore.Adapter
	schedule   cron.Schedule
	properties []string
	stop       chan struct{}
}

// NewService builds the digest service. cronExpr uses standard five-field cron
// syntax; properties is the set of property ids to sweep.
func NewService(store *taskstore.Adapter, cronExpr string, properties []string) (*Service, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:      store,
		schedule:   schedule,
		properties: properties,
		stop:       make(chan struct{}),
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	next := s.schedule.Next(time.Now())
	log.Info().Time("next_run", next).Msg("digest service started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-time.After(time.Until(next)):
			s.sweep(ctx, now)
			next = s.schedule.Next(now)
		}
	}
}

func (s *Service) Stop() {
	close(s.stop)
}

func (s *Service) sweep(ctx context.Context, now time.Time) {
	for _, propertyID := range s.properties {
		tasks, err := s.store.ListForProperty(ctx, propertyID)
		if err != nil {
			log.Error().Err(err).Str("property_id", propertyID).Msg("digest: list tasks failed")
			continue
		}

		overdue := aggregate.OverdueCount(tasks, now)
		upcoming := aggregate.UpcomingDeadlines(tasks, now, 7, 0)

		log.Info().
			Str("property_id", propertyID).
			Int("tasks", len(tasks)).
			Int("overdue", overdue).
			Int("due_this_week", len(upcoming)).
			Msg("overdue digest")
	}
}

// ValidateCronExpression validates a digest cron expression.
func ValidateCronExpression(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}
