package bulk_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stayops/internal/bulk"
	"stayops/internal/domain"
	"stayops/internal/kvstore"
	"stayops/internal/taskstore"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *taskstore.Adapter
	engine *bulk.Engine
	ids    map[string]string // label -> task id
}

func setup(t *testing.T, labels ...string) fixture {
	t.Helper()
	store := taskstore.New(kvstore.NewMemory())
	engine := bulk.NewWithClock(store, func() time.Time { return now })

	ids := make(map[string]string)
	for _, label := range labels {
		created, err := store.Create(context.Background(), domain.Task{
			PropertyID: "prop_1",
			Title:      "task " + label,
			Category:   domain.CategoryCleaning,
			Priority:   domain.PriorityLow,
			AssignedTo: []string{"alice"},
		})
		if err != nil {
			t.Fatalf("create %s: %v", label, err)
		}
		ids[label] = created.ID
	}
	return fixture{store: store, engine: engine, ids: ids}
}

func all(ids map[string]string) map[string]bool {
	acc := make(map[string]bool, len(ids))
	for _, id := range ids {
		acc[id] = true
	}
	return acc
}

func TestApplyEmptyOperation(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Apply(context.Background(), "prop_1", nil,
		bulk.Operation{Kind: bulk.KindCancel}, map[string]bool{}, "mgr")
	if !errors.Is(err, bulk.ErrEmptyOperation) {
		t.Fatalf("err = %v, want ErrEmptyOperation", err)
	}
}

func TestApplyNoAccessibleTasks(t *testing.T) {
	f := setup(t, "t1")
	_, err := f.engine.Apply(context.Background(), "prop_1", []string{f.ids["t1"]},
		bulk.Operation{Kind: bulk.KindCancel}, map[string]bool{}, "mgr")
	if !errors.Is(err, bulk.ErrNoAccessibleTasks) {
		t.Fatalf("err = %v, want ErrNoAccessibleTasks", err)
	}
}

func TestApplyAccessFiltering(t *testing.T) {
	f := setup(t, "t1", "t2")
	accessible := map[string]bool{f.ids["t1"]: true}

	result, err := f.engine.Apply(context.Background(), "prop_1",
		[]string{f.ids["t1"], f.ids["t2"]},
		bulk.Operation{Kind: bulk.KindPriority, Priority: domain.PriorityCritical},
		accessible, "mgr")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Errorf("updated count = %d, want 1", result.UpdatedCount)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].ID != f.ids["t1"] {
		t.Fatalf("result tasks = %v, want only t1", result.Tasks)
	}
	if result.Tasks[0].Priority != domain.PriorityCritical {
		t.Errorf("priority = %v, want Critical", result.Tasks[0].Priority)
	}

	// t2 untouched.
	t2, err := f.store.Load(context.Background(), "prop_1", f.ids["t2"])
	if err != nil {
		t.Fatal(err)
	}
	if t2.Priority != domain.PriorityLow {
		t.Errorf("t2 priority = %v, want Low", t2.Priority)
	}
}

func TestApplyOperations(t *testing.T) {
	deadline := now.AddDate(0, 0, 3)

	cases := []struct {
		name  string
		op    bulk.Operation
		check func(t *testing.T, task domain.Task)
	}{
		{
			name: "assign replaces wholesale",
			op:   bulk.Operation{Kind: bulk.KindAssign, Assignees: []string{"carol"}},
			check: func(t *testing.T, task domain.Task) {
				if len(task.AssignedTo) != 1 || task.AssignedTo[0] != "carol" {
					t.Errorf("assignees = %v, want [carol]", task.AssignedTo)
				}
			},
		},
		{
			name: "category",
			op:   bulk.Operation{Kind: bulk.KindCategory, Category: domain.CategoryEmergency},
			check: func(t *testing.T, task domain.Task) {
				if task.Category != domain.CategoryEmergency {
					t.Errorf("category = %v", task.Category)
				}
			},
		},
		{
			name: "deadline",
			op:   bulk.Operation{Kind: bulk.KindDeadline, Deadline: deadline},
			check: func(t *testing.T, task domain.Task) {
				if task.DueDate == nil || !task.DueDate.Equal(deadline) {
					t.Errorf("due date = %v, want %v", task.DueDate, deadline)
				}
			},
		},
		{
			name: "complete",
			op:   bulk.Operation{Kind: bulk.KindComplete},
			check: func(t *testing.T, task domain.Task) {
				if task.Status != domain.StatusCompleted {
					t.Errorf("status = %v", task.Status)
				}
				if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
					t.Errorf("completedAt = %v, want %v", task.CompletedAt, now)
				}
				if task.CompletedBy != "mgr" {
					t.Errorf("completedBy = %q, want mgr", task.CompletedBy)
				}
			},
		},
		{
			name: "cancel",
			op:   bulk.Operation{Kind: bulk.KindCancel},
			check: func(t *testing.T, task domain.Task) {
				if task.Status != domain.StatusCancelled {
					t.Errorf("status = %v", task.Status)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, "t1")
			result, err := f.engine.Apply(context.Background(), "prop_1",
				[]string{f.ids["t1"]}, tc.op, all(f.ids), "mgr")
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if result.UpdatedCount != 1 {
				t.Fatalf("updated count = %d, want 1", result.UpdatedCount)
			}
			tc.check(t, result.Tasks[0])
		})
	}
}

func TestApplyUnknownKindSkipped(t *testing.T) {
	f := setup(t, "t1")
	result, err := f.engine.Apply(context.Background(), "prop_1",
		[]string{f.ids["t1"]}, bulk.Operation{Kind: "archive"}, all(f.ids), "mgr")
	if err != nil {
		t.Fatalf("unknown kind should not error: %v", err)
	}
	if result.UpdatedCount != 0 {
		t.Errorf("updated count = %d, want 0", result.UpdatedCount)
	}
}

func TestApplySkipsDeletedTasks(t *testing.T) {
	f := setup(t, "t1", "t2")
	if err := f.store.Delete(context.Background(), "prop_1", f.ids["t2"]); err != nil {
		t.Fatal(err)
	}

	result, err := f.engine.Apply(context.Background(), "prop_1",
		[]string{f.ids["t1"], f.ids["t2"]},
		bulk.Operation{Kind: bulk.KindCancel}, all(f.ids), "mgr")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Errorf("updated count = %d, want 1 (deleted excluded)", result.UpdatedCount)
	}
}
