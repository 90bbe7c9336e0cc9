package scheduler_test

import (
	"testing"

	"stayops/internal/kvstore"
	"stayops/internal/scheduler"
	"stayops/internal/taskstore"
)

func TestValidateCronExpression(t *testing.T) {
	cases := []struct {
		expr string
		ok   bool
	}{
		{"0 8 * * *", true},
		{"*/15 * * * *", true},
		{"@daily", true},
		{"not a cron", false},
		{"61 8 * * *", false},
		{"", false},
	}
	for _, tc := range cases {
		err := scheduler.ValidateCronExpression(tc.expr)
		if tc.ok && err != nil {
			t.Errorf("%q: unexpected error %v", tc.expr, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%q: expected error", tc.expr)
		}
	}
}

func TestNewServiceRejectsBadExpression(t *testing.T) {
	store := taskstore.New(kvstore.NewMemory())
	if _, err := scheduler.NewService(store, "bad", []string{"prop_1"}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if _, err := scheduler.NewService(store, "0 8 * * *", []string{"prop_1"}); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
}
