// Package taskstore adapts the flat hash encoding in the key-value store to
// structured task records. The engines above it never see encoded strings.
package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stayops/internal/domain"
	"stayops/internal/kvstore"
)

var ErrNotFound = errors.New("task not found")

// CorruptRecordError reports a stored record whose embedded JSON could not be
// parsed. Listings skip these records instead of failing.
type CorruptRecordError struct {
	Key   string
	Field string
	Err   error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record %s field %s: %v", e.Key, e.Field, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

func taskKey(propertyID, id string) string {
	return "task:" + propertyID + ":" + id
}

func propertyTasksKey(propertyID string) string {
	return "property:" + propertyID + ":tasks"
}

type Adapter struct {
	store kvstore.Store
	now   func() time.Time
}

func New(store kvstore.Store) *Adapter {
	return &Adapter{store: store, now: time.Now}
}

// NewWithClock injects the time source, for deterministic tests.
func NewWithClock(store kvstore.Store, now func() time.Time) *Adapter {
	return &Adapter{store: store, now: now}
}

// Create assigns an id and timestamps, validates, and persists a new task.
func (a *Adapter) Create(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = "tsk_" + uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	now := a.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := a.write(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// Load returns a task, or ErrNotFound if the key is missing or soft-deleted.
func (a *Adapter) Load(ctx context.Context, propertyID, id string) (domain.Task, error) {
	fields, err := a.store.GetHash(ctx, taskKey(propertyID, id))
	if err != nil {
		return domain.Task{}, err
	}
	if fields == nil {
		return domain.Task{}, ErrNotFound
	}
	t, err := decode(taskKey(propertyID, id), fields)
	if err != nil {
		return domain.Task{}, err
	}
	if t.DeletedAt != nil {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

// Save persists a task, bumping updatedAt as a side effect.
func (a *Adapter) Save(ctx context.Context, t domain.Task) (domain.Task, error) {
	t.UpdatedAt = a.now()
	if err := a.write(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// Delete soft-deletes: the record stays in the store but drops out of loads,
// listings and aggregations.
func (a *Adapter) Delete(ctx context.Context, propertyID, id string) error {
	t, err := a.Load(ctx, propertyID, id)
	if err != nil {
		return err
	}
	now := a.now()
	t.DeletedAt = &now
	t.UpdatedAt = now
	return a.write(ctx, t)
}

// ListForProperty loads every live task of a property. Corrupt records are
// skipped with a warning so one bad record cannot take down a dashboard read.
func (a *Adapter) ListForProperty(ctx context.Context, propertyID string) ([]domain.Task, error) {
	ids, err := a.store.Members(ctx, propertyTasksKey(propertyID))
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		t, err := a.Load(ctx, propertyID, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			var corrupt *CorruptRecordError
			if errors.As(err, &corrupt) {
				log.Warn().Str("key", corrupt.Key).Str("field", corrupt.Field).
					Err(corrupt.Err).Msg("skipping corrupt task record")
				continue
			}
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (a *Adapter) write(ctx context.Context, t domain.Task) error {
	key := taskKey(t.PropertyID, t.ID)
	fields, err := encode(t)
	if err != nil {
		return err
	}
	if err := a.store.SetHash(ctx, key, fields); err != nil {
		return err
	}
	return a.store.AddMember(ctx, propertyTasksKey(t.PropertyID), t.ID)
}

func encode(t domain.Task) (map[string]string, error) {
	assigned, err := json.Marshal(t.AssignedTo)
	if err != nil {
		return nil, err
	}
	photos, err := json.Marshal(t.CompletionPhotos)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{
		"id":                t.ID,
		"property_id":       t.PropertyID,
		"title":             t.Title,
		"description":       t.Description,
		"category":          string(t.Category),
		"priority":          string(t.Priority),
		"status":            string(t.Status),
		"assigned_to":       string(assigned),
		"completion_photos": string(photos),
		"created_at":        t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":        t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.Instructions != "" {
		fields["instructions"] = t.Instructions
	}
	if t.DueDate != nil {
		fields["due_date"] = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if t.CompletedAt != nil {
		fields["completed_at"] = t.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if t.EstimatedDuration != 0 {
		fields["estimated_duration"] = strconv.Itoa(t.EstimatedDuration)
	}
	if t.CompletedBy != "" {
		fields["completed_by"] = t.CompletedBy
	}
	if t.CompletionNotes != "" {
		fields["completion_notes"] = t.CompletionNotes
	}
	if t.QualityRating != 0 {
		fields["quality_rating"] = strconv.Itoa(t.QualityRating)
	}
	if t.Recurrence != nil {
		rec, err := json.Marshal(t.Recurrence)
		if err != nil {
			return nil, err
		}
		fields["recurrence"] = string(rec)
	}
	if t.DeletedAt != nil {
		fields["deleted_at"] = t.DeletedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields, nil
}

func decode(key string, fields map[string]string) (domain.Task, error) {
	t := domain.Task{
		ID:              fields["id"],
		PropertyID:      fields["property_id"],
		Title:           fields["title"],
		Description:     fields["description"],
		Instructions:    fields["instructions"],
		Category:        domain.Category(fields["category"]),
		Priority:        domain.Priority(fields["priority"]),
		Status:          domain.Status(fields["status"]),
		CompletedBy:     fields["completed_by"],
		CompletionNotes: fields["completion_notes"],
	}

	if raw := fields["assigned_to"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.AssignedTo); err != nil {
			return domain.Task{}, &CorruptRecordError{Key: key, Field: "assigned_to", Err: err}
		}
	}
	if raw := fields["completion_photos"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.CompletionPhotos); err != nil {
			return domain.Task{}, &CorruptRecordError{Key: key, Field: "completion_photos", Err: err}
		}
	}
	if t.CompletionPhotos == nil {
		t.CompletionPhotos = []string{}
	}
	if raw := fields["recurrence"]; raw != "" {
		var rec domain.RecurrencePattern
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return domain.Task{}, &CorruptRecordError{Key: key, Field: "recurrence", Err: err}
		}
		t.Recurrence = &rec
	}

	var err error
	if t.CreatedAt, err = parseTime(fields["created_at"]); err != nil {
		return domain.Task{}, &CorruptRecordError{Key: key, Field: "created_at", Err: err}
	}
	if t.UpdatedAt, err = parseTime(fields["updated_at"]); err != nil {
		return domain.Task{}, &CorruptRecordError{Key: key, Field: "updated_at", Err: err}
	}
	for _, f := range []struct {
		name string
		dst  **time.Time
	}{
		{"due_date", &t.DueDate},
		{"completed_at", &t.CompletedAt},
		{"deleted_at", &t.DeletedAt},
	} {
		raw, ok := fields[f.name]
		if !ok || raw == "" {
			continue
		}
		ts, err := parseTime(raw)
		if err != nil {
			return domain.Task{}, &CorruptRecordError{Key: key, Field: f.name, Err: err}
		}
		*f.dst = &ts
	}

	if raw := fields["estimated_duration"]; raw != "" {
		if t.EstimatedDuration, err = strconv.Atoi(raw); err != nil {
			return domain.Task{}, &CorruptRecordError{Key: key, Field: "estimated_duration", Err: err}
		}
	}
	if raw := fields["quality_rating"]; raw != "" {
		if t.QualityRating, err = strconv.Atoi(raw); err != nil {
			return domain.Task{}, &CorruptRecordError{Key: key, Field: "quality_rating", Err: err}
		}
	}
	return t, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
