package domain_test

import (
	"errors"
	"testing"
	"time"

	"stayops/internal/domain"
)

func tp(t time.Time) *time.Time { return &t }

func TestIsOverdue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	cases := []struct {
		name string
		task domain.Task
		want bool
	}{
		{"no due date", domain.Task{Status: domain.StatusPending}, false},
		{"future due date", domain.Task{Status: domain.StatusPending, DueDate: tp(future)}, false},
		{"past due pending", domain.Task{Status: domain.StatusPending, DueDate: tp(past)}, true},
		{"past due in progress", domain.Task{Status: domain.StatusInProgress, DueDate: tp(past)}, true},
		{"past due completed", domain.Task{Status: domain.StatusCompleted, DueDate: tp(past)}, false},
		{"past due cancelled", domain.Task{Status: domain.StatusCancelled, DueDate: tp(past)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.task.IsOverdue(now); got != tc.want {
				t.Errorf("IsOverdue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task := domain.Task{Status: domain.StatusPending, DueDate: tp(now.AddDate(0, 0, -2))}
	if got := task.EffectiveStatus(now); got != domain.StatusOverdue {
		t.Errorf("EffectiveStatus = %v, want Overdue", got)
	}
	if task.Status != domain.StatusPending {
		t.Errorf("stored status mutated to %v", task.Status)
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to domain.Status
		want     bool
	}{
		{domain.StatusPending, domain.StatusInProgress, true},
		{domain.StatusPending, domain.StatusCompleted, true},
		{domain.StatusPending, domain.StatusCancelled, true},
		{domain.StatusInProgress, domain.StatusCompleted, true},
		{domain.StatusInProgress, domain.StatusCancelled, true},
		{domain.StatusInProgress, domain.StatusPending, false},
		{domain.StatusCompleted, domain.StatusPending, false},
		{domain.StatusCompleted, domain.StatusInProgress, false},
		{domain.StatusCancelled, domain.StatusPending, false},
		{domain.StatusCancelled, domain.StatusCompleted, false},
		{domain.StatusPending, domain.StatusOverdue, false},
		{domain.StatusInProgress, domain.StatusOverdue, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := domain.Task{
		PropertyID: "prop_1",
		Title:      "Clean Kitchen",
		Category:   domain.CategoryCleaning,
		Priority:   domain.PriorityMedium,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*domain.Task)
	}{
		{"missing title", func(t *domain.Task) { t.Title = "  " }},
		{"missing property", func(t *domain.Task) { t.PropertyID = "" }},
		{"bad category", func(t *domain.Task) { t.Category = "Gardening" }},
		{"bad priority", func(t *domain.Task) { t.Priority = "Urgent" }},
		{"bad rating", func(t *domain.Task) { t.QualityRating = 6 }},
		{"zero interval", func(t *domain.Task) {
			t.Recurrence = &domain.RecurrencePattern{Type: domain.RecurDaily, Interval: 0}
		}},
		{"bad recurrence type", func(t *domain.Task) {
			t.Recurrence = &domain.RecurrencePattern{Type: "yearly", Interval: 1}
		}},
		{"bad weekday", func(t *domain.Task) {
			t.Recurrence = &domain.RecurrencePattern{Type: domain.RecurCustom, Interval: 1, DaysOfWeek: []int{7}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := valid
			tc.mutate(&task)
			err := task.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestSortTasks(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{ID: "low", Priority: domain.PriorityLow, CreatedAt: base},
		{ID: "critical-late", Priority: domain.PriorityCritical, DueDate: tp(base.AddDate(0, 0, 5)), CreatedAt: base},
		{ID: "critical-soon", Priority: domain.PriorityCritical, DueDate: tp(base.AddDate(0, 0, 1)), CreatedAt: base},
		{ID: "critical-undated", Priority: domain.PriorityCritical, CreatedAt: base},
		{ID: "high-newer", Priority: domain.PriorityHigh, CreatedAt: base.Add(time.Hour)},
		{ID: "high-older", Priority: domain.PriorityHigh, CreatedAt: base},
	}
	domain.SortTasks(tasks)

	want := []string{"critical-soon", "critical-late", "critical-undated", "high-newer", "high-older", "low"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (order %v)", i, tasks[i].ID, id, ids(tasks))
		}
	}
}

func ids(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
