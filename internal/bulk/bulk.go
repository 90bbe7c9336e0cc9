// Package bulk applies one mutation across a set of tasks, scoped to what the
// caller can access. Mutations are atomic per task, not across the batch.
package bulk

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"stayops/internal/domain"
	"stayops/internal/taskstore"
)

var (
	ErrEmptyOperation    = errors.New("bulk operation has no task ids")
	ErrNoAccessibleTasks = errors.New("no accessible tasks in bulk operation")
)

type Kind string

const (
	KindAssign   Kind = "assign"
	KindPriority Kind = "priority"
	KindCategory Kind = "category"
	KindDeadline Kind = "deadline"
	KindComplete Kind = "complete"
	KindCancel   Kind = "cancel"
)

// Operation is a tagged union: Kind selects which payload field applies.
type Operation struct {
	Kind      Kind
	Assignees []string        // assign
	Priority  domain.Priority // priority
	Category  domain.Category // category
	Deadline  time.Time       // deadline
}

// Result reports how many tasks were actually updated and their new records.
// Requested ids that were inaccessible or deleted are silently absent.
type Result struct {
	UpdatedCount int           `json:"updated_count"`
	Tasks        []domain.Task `json:"tasks"`
}

type Engine struct {
	store *taskstore.Adapter
	now   func() time.Time
}

func New(store *taskstore.Adapter) *Engine {
	return &Engine{store: store, now: time.Now}
}

func NewWithClock(store *taskstore.Adapter, now func() time.Time) *Engine {
	return &Engine{store: store, now: now}
}

// Apply runs op against the tasks in taskIDs that appear in accessible.
// Per-task load or save failures reduce the updated count rather than
// aborting the batch.
func (e *Engine) Apply(ctx context.Context, propertyID string, taskIDs []string, op Operation, accessible map[string]bool, actor string) (Result, error) {
	if len(taskIDs) == 0 {
		return Result{}, ErrEmptyOperation
	}

	var targets []string
	for _, id := range taskIDs {
		if accessible[id] {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return Result{}, ErrNoAccessibleTasks
	}

	result := Result{Tasks: []domain.Task{}}
	for _, id := range targets {
		t, err := e.store.Load(ctx, propertyID, id)
		if err != nil {
			if !errors.Is(err, taskstore.ErrNotFound) {
				log.Warn().Str("task_id", id).Err(err).Msg("bulk: load failed")
			}
			continue
		}

		applied := e.mutate(&t, op, actor)
		if !applied {
			continue
		}

		saved, err := e.store.Save(ctx, t)
		if err != nil {
			log.Warn().Str("task_id", id).Err(err).Msg("bulk: save failed")
			continue
		}
		result.UpdatedCount++
		result.Tasks = append(result.Tasks, saved)
	}
	return result, nil
}

// mutate applies op to t in place, reporting whether anything was applied.
// Unknown kinds are skipped, not errors.
func (e *Engine) mutate(t *domain.Task, op Operation, actor string) bool {
	switch op.Kind {
	case KindAssign:
		assigned := make([]string, len(op.Assignees))
		copy(assigned, op.Assignees)
		t.AssignedTo = assigned
	case KindPriority:
		t.Priority = op.Priority
	case KindCategory:
		t.Category = op.Category
	case KindDeadline:
		deadline := op.Deadline
		t.DueDate = &deadline
	case KindComplete:
		now := e.now()
		t.Status = domain.StatusCompleted
		t.CompletedAt = &now
		t.CompletedBy = actor
	case KindCancel:
		t.Status = domain.StatusCancelled
	default:
		return false
	}
	return true
}
