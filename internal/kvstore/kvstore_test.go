package kvstore_test

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"stayops/internal/kvstore"
)

// backends under test share one contract; postgres is exercised the same way
// in integration environments.
func backends(t *testing.T) map[string]kvstore.Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if err := kvstore.EnsureSchema(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]kvstore.Store{
		"memory": kvstore.NewMemory(),
		"sqlite": kvstore.NewSQLite(db),
	}
}

func TestHashOperations(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := store.GetHash(ctx, "task:p1:missing")
			if err != nil {
				t.Fatal(err)
			}
			if got != nil {
				t.Errorf("missing key: got %v, want nil", got)
			}

			fields := map[string]string{"title": "Clean Kitchen", "status": "Pending"}
			if err := store.SetHash(ctx, "task:p1:t1", fields); err != nil {
				t.Fatal(err)
			}
			got, err = store.GetHash(ctx, "task:p1:t1")
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, fields) {
				t.Errorf("got %v, want %v", got, fields)
			}

			// SetHash replaces, it does not merge.
			if err := store.SetHash(ctx, "task:p1:t1", map[string]string{"title": "x"}); err != nil {
				t.Fatal(err)
			}
			got, _ = store.GetHash(ctx, "task:p1:t1")
			if _, ok := got["status"]; ok {
				t.Error("stale field survived replace")
			}

			if err := store.DeleteHash(ctx, "task:p1:t1"); err != nil {
				t.Fatal(err)
			}
			got, _ = store.GetHash(ctx, "task:p1:t1")
			if got != nil {
				t.Errorf("deleted key: got %v, want nil", got)
			}
		})
	}
}

func TestKeysPrefix(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"task:p1:a", "task:p1:b", "task:p2:c"} {
				if err := store.SetHash(ctx, k, map[string]string{"x": "1"}); err != nil {
					t.Fatal(err)
				}
			}
			keys, err := store.Keys(ctx, "task:p1:")
			if err != nil {
				t.Fatal(err)
			}
			want := []string{"task:p1:a", "task:p1:b"}
			if !reflect.DeepEqual(keys, want) {
				t.Errorf("keys = %v, want %v", keys, want)
			}
		})
	}
}

func TestSetMembership(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			setKey := "property:p1:tasks"

			for _, m := range []string{"t2", "t1", "t1"} { // duplicate add is a no-op
				if err := store.AddMember(ctx, setKey, m); err != nil {
					t.Fatal(err)
				}
			}
			members, err := store.Members(ctx, setKey)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(members, []string{"t1", "t2"}) {
				t.Errorf("members = %v, want [t1 t2]", members)
			}

			if err := store.RemoveMember(ctx, setKey, "t1"); err != nil {
				t.Fatal(err)
			}
			members, _ = store.Members(ctx, setKey)
			if !reflect.DeepEqual(members, []string{"t2"}) {
				t.Errorf("after remove: %v, want [t2]", members)
			}
		})
	}
}
