package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Category string

const (
	CategoryCleaning       Category = "Cleaning"
	CategoryMaintenance    Category = "Maintenance"
	CategoryAdministrative Category = "Administrative"
	CategoryInspection     Category = "Inspection"
	CategoryEmergency      Category = "Emergency"
	CategoryOther          Category = "Other"
)

// Categories lists every category in display order. Aggregations iterate this
// so every category gets an entry even at zero count.
var Categories = []Category{
	CategoryCleaning,
	CategoryMaintenance,
	CategoryAdministrative,
	CategoryInspection,
	CategoryEmergency,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Weight orders priorities for sorting. Unknown values sort below Low.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool {
	return p.Weight() > 0
}

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusOverdue    Status = "Overdue"
	StatusCancelled  Status = "Cancelled"
)

// CanTransitionTo reports whether an explicit transition to next is allowed.
// Completed and Cancelled are terminal. Overdue is never an explicit target;
// it is derived at read time from the due date.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCompleted || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type RecurrenceType string

const (
	RecurDaily   RecurrenceType = "daily"
	RecurWeekly  RecurrenceType = "weekly"
	RecurMonthly RecurrenceType = "monthly"
	RecurCustom  RecurrenceType = "custom"
)

type RecurrencePattern struct {
	Type               RecurrenceType `json:"type"`
	Interval           int            `json:"interval"`
	DaysOfWeek         []int          `json:"days_of_week,omitempty"` // 0=Sunday..6=Saturday, custom type only
	EndDate            *time.Time     `json:"end_date,omitempty"`
	AssignmentRotation bool           `json:"assignment_rotation"`
}

type Task struct {
	ID           string `json:"id"`
	PropertyID   string `json:"property_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Instructions string `json:"instructions,omitempty"`

	Category Category `json:"category"`
	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	AssignedTo []string `json:"assigned_to"`

	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	EstimatedDuration int        `json:"estimated_duration,omitempty"` // minutes

	CompletedBy      string   `json:"completed_by,omitempty"`
	CompletionNotes  string   `json:"completion_notes,omitempty"`
	QualityRating    int      `json:"quality_rating,omitempty"` // 1..5, 0 = unrated
	CompletionPhotos []string `json:"completion_photos"`

	Recurrence *RecurrencePattern `json:"recurrence,omitempty"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsOverdue reports the derived overdue condition: a due date in the past on a
// task that is neither completed nor cancelled.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status.Terminal() {
		return false
	}
	return t.DueDate.Before(now)
}

// EffectiveStatus substitutes Overdue at read time; the stored status is never
// rewritten to Overdue.
func (t Task) EffectiveStatus(now time.Time) Status {
	if t.IsOverdue(now) {
		return StatusOverdue
	}
	return t.Status
}

// AssignedToUser reports whether userID appears in the assignee list.
func (t Task) AssignedToUser(userID string) bool {
	for _, a := range t.AssignedTo {
		if a == userID {
			return true
		}
	}
	return false
}

// ValidationError reports malformed input to task creation or update.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks a task before it is written.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if t.PropertyID == "" {
		return &ValidationError{Field: "property_id", Reason: "required"}
	}
	if !t.Category.Valid() {
		return &ValidationError{Field: "category", Reason: "unknown value " + string(t.Category)}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "unknown value " + string(t.Priority)}
	}
	if t.QualityRating != 0 && (t.QualityRating < 1 || t.QualityRating > 5) {
		return &ValidationError{Field: "quality_rating", Reason: "must be 1-5"}
	}
	if r := t.Recurrence; r != nil {
		if r.Interval < 1 {
			return &ValidationError{Field: "recurrence.interval", Reason: "must be positive"}
		}
		switch r.Type {
		case RecurDaily, RecurWeekly, RecurMonthly, RecurCustom:
		default:
			return &ValidationError{Field: "recurrence.type", Reason: "unknown value " + string(r.Type)}
		}
		for _, d := range r.DaysOfWeek {
			if d < 0 || d > 6 {
				return &ValidationError{Field: "recurrence.days_of_week", Reason: "days must be 0-6"}
			}
		}
	}
	return nil
}

// farFuture sorts tasks without a due date behind every dated task.
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// SortTasks orders by priority descending, then due date ascending (missing
// due dates last), then creation time descending.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if wa, wb := a.Priority.Weight(), b.Priority.Weight(); wa != wb {
			return wa > wb
		}
		da, db := farFuture, farFuture
		if a.DueDate != nil {
			da = *a.DueDate
		}
		if b.DueDate != nil {
			db = *b.DueDate
		}
		if !da.Equal(db) {
			return da.Before(db)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
