// Package recurrence materializes the next occurrence of a recurring task.
package recurrence

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"stayops/internal/domain"
	"stayops/internal/taskstore"
)

var (
	ErrNoDueDate         = errors.New("recurring task has no due date")
	ErrInvalidRecurrence = errors.New("invalid recurrence pattern")
	// ErrSeriesEnded marks a computed occurrence past the pattern's end date.
	ErrSeriesEnded = errors.New("recurrence series ended")
)

type Engine struct {
	store *taskstore.Adapter
}

func New(store *taskstore.Adapter) *Engine {
	return &Engine{store: store}
}

// NextDue computes the successor due date for a pattern anchored at due.
func NextDue(p domain.RecurrencePattern, due time.Time) (time.Time, error) {
	interval := p.Interval
	if interval < 1 {
		interval = 1
	}
	switch p.Type {
	case domain.RecurDaily:
		return due.AddDate(0, 0, interval), nil
	case domain.RecurWeekly:
		return due.AddDate(0, 0, interval*7), nil
	case domain.RecurMonthly:
		// AddDate normalizes overflow: Jan 31 + 1 month lands in early March.
		return due.AddDate(0, interval, 0), nil
	case domain.RecurCustom:
		if len(p.DaysOfWeek) == 0 {
			return time.Time{}, ErrInvalidRecurrence
		}
		return nextCustomDay(p.DaysOfWeek, due), nil
	}
	return time.Time{}, ErrInvalidRecurrence
}

// nextCustomDay picks the smallest listed weekday strictly after due's weekday,
// wrapping to the following week when none remains.
func nextCustomDay(daysOfWeek []int, due time.Time) time.Time {
	current := int(due.Weekday())

	nextDay := -1
	for _, d := range daysOfWeek {
		if d > current && (nextDay == -1 || d < nextDay) {
			nextDay = d
		}
	}
	if nextDay == -1 {
		smallest := daysOfWeek[0]
		for _, d := range daysOfWeek[1:] {
			if d < smallest {
				smallest = d
			}
		}
		return due.AddDate(0, 0, 7-current+smallest)
	}
	return due.AddDate(0, 0, nextDay-current)
}

// rotate reproduces the observed assignee rotation: index 1 moves to the
// front and index 0 to the back, so [a b c] becomes [b c a].
func rotate(assignees []string) []string {
	out := make([]string, 0, len(assignees))
	out = append(out, assignees[1:]...)
	out = append(out, assignees[0])
	return out
}

// Successor builds (without persisting) the next occurrence of t.
func Successor(t domain.Task) (domain.Task, error) {
	if t.Recurrence == nil {
		return domain.Task{}, ErrInvalidRecurrence
	}
	if t.DueDate == nil {
		return domain.Task{}, ErrNoDueDate
	}

	nextDue, err := NextDue(*t.Recurrence, *t.DueDate)
	if err != nil {
		return domain.Task{}, err
	}
	if end := t.Recurrence.EndDate; end != nil && nextDue.After(*end) {
		return domain.Task{}, ErrSeriesEnded
	}

	assigned := make([]string, len(t.AssignedTo))
	copy(assigned, t.AssignedTo)
	if t.Recurrence.AssignmentRotation && len(assigned) > 1 {
		assigned = rotate(assigned)
	}

	next := domain.Task{
		PropertyID:        t.PropertyID,
		Title:             t.Title,
		Description:       t.Description,
		Instructions:      t.Instructions,
		Category:          t.Category,
		Priority:          t.Priority,
		Status:            domain.StatusPending,
		AssignedTo:        assigned,
		DueDate:           &nextDue,
		EstimatedDuration: t.EstimatedDuration,
		CompletionPhotos:  []string{},
		Recurrence:        t.Recurrence,
	}
	return next, nil
}

// Spawn computes and persists the successor of t. Failures are logged and
// swallowed: the primary task write has already succeeded and must not be
// rolled back because the next occurrence could not be scheduled.
func (e *Engine) Spawn(ctx context.Context, t domain.Task) {
	next, err := Successor(t)
	if err != nil {
		switch {
		case errors.Is(err, ErrSeriesEnded):
			// Series terminated by end date, nothing to schedule.
		case errors.Is(err, ErrNoDueDate), errors.Is(err, ErrInvalidRecurrence):
			log.Warn().Str("task_id", t.ID).Err(err).Msg("recurrence skipped")
		default:
			log.Warn().Str("task_id", t.ID).Err(err).Msg("recurrence failed")
		}
		return
	}
	if _, err := e.store.Create(ctx, next); err != nil {
		log.Warn().Str("task_id", t.ID).Err(err).Msg("failed to persist recurring successor")
	}
}
