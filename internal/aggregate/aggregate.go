// Package aggregate computes read-only derived views over task collections.
// Every function takes an explicit now so classifications are deterministic
// under test; nothing here mutates a task.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"stayops/internal/domain"
)

// OverdueCount counts tasks whose stored status is Overdue or whose due date
// has passed without completion.
func OverdueCount(tasks []domain.Task, now time.Time) int {
	n := 0
	for _, t := range tasks {
		if t.Status == domain.StatusOverdue ||
			(t.DueDate != nil && t.DueDate.Before(now) && t.Status != domain.StatusCompleted) {
			n++
		}
	}
	return n
}

// CompletedInWindow counts tasks completed within [start, end].
func CompletedInWindow(tasks []domain.Task, start, end time.Time) int {
	n := 0
	for _, t := range tasks {
		if t.Status != domain.StatusCompleted || t.CompletedAt == nil {
			continue
		}
		c := *t.CompletedAt
		if !c.Before(start) && !c.After(end) {
			n++
		}
	}
	return n
}

// UpcomingDeadlines returns up to limit incomplete tasks due within
// horizonDays of now, soonest first.
func UpcomingDeadlines(tasks []domain.Task, now time.Time, horizonDays, limit int) []domain.Task {
	horizon := now.AddDate(0, 0, horizonDays)
	var upcoming []domain.Task
	for _, t := range tasks {
		if t.Status == domain.StatusCompleted || t.DueDate == nil {
			continue
		}
		if t.DueDate.Before(now) || t.DueDate.After(horizon) {
			continue
		}
		upcoming = append(upcoming, t)
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DueDate.Before(*upcoming[j].DueDate)
	})
	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}

// WorkloadByCategory counts open tasks per category. Every category appears in
// the result, zero counts included.
func WorkloadByCategory(tasks []domain.Task) map[domain.Category]int {
	workload := make(map[domain.Category]int, len(domain.Categories))
	for _, c := range domain.Categories {
		workload[c] = 0
	}
	for _, t := range tasks {
		if t.Status == domain.StatusCompleted || t.Status == domain.StatusCancelled {
			continue
		}
		workload[t.Category]++
	}
	return workload
}

// ProductivityScore combines completion rate, an overdue penalty and a
// recent-activity bonus into a 0-100 score:
//
//	rate     = completed / assigned * 100
//	penalty  = min(overdue * 10, 30)
//	bonus    = min(completedThisWeek * 2, 20)
//	score    = clamp(rate - penalty + bonus, 0, 100), rounded
func ProductivityScore(assigned []domain.Task, now time.Time) int {
	total := len(assigned)
	completed := 0
	overdue := 0
	completedThisWeek := 0
	weekAgo := now.AddDate(0, 0, -7)

	for _, t := range assigned {
		if t.Status == domain.StatusCompleted {
			completed++
			if t.CompletedAt != nil && t.CompletedAt.After(weekAgo) && !t.CompletedAt.After(now) {
				completedThisWeek++
			}
		}
		if t.IsOverdue(now) {
			overdue++
		}
	}

	completionRate := 0.0
	if total > 0 {
		completionRate = float64(completed) / float64(total) * 100
	}
	overduePenalty := math.Min(float64(overdue)*10, 30)
	recentActivityBonus := math.Min(float64(completedThisWeek)*2, 20)

	score := completionRate - overduePenalty + recentActivityBonus
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

// UserMetric summarizes one assignee's tasks. A task with N assignees counts
// toward all N users.
type UserMetric struct {
	UserID             string  `json:"user_id"`
	Total              int     `json:"total"`
	Completed          int     `json:"completed"`
	CompletionRate     float64 `json:"completion_rate"`
	AvgCompletionHours float64 `json:"avg_completion_hours"`
	OverdueCount       int     `json:"overdue_count"`
	AvgQualityRating   float64 `json:"avg_quality_rating"`
}

func UserMetrics(tasks []domain.Task, now time.Time) []UserMetric {
	byUser := make(map[string][]domain.Task)
	for _, t := range tasks {
		for _, u := range t.AssignedTo {
			byUser[u] = append(byUser[u], t)
		}
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	metrics := make([]UserMetric, 0, len(users))
	for _, u := range users {
		group := byUser[u]
		m := UserMetric{UserID: u, Total: len(group)}
		var hours float64
		timed := 0
		var rating float64
		rated := 0
		for _, t := range group {
			if t.Status == domain.StatusCompleted {
				m.Completed++
				if t.CompletedAt != nil && !t.CreatedAt.IsZero() {
					hours += t.CompletedAt.Sub(t.CreatedAt).Hours()
					timed++
				}
				if t.QualityRating > 0 {
					rating += float64(t.QualityRating)
					rated++
				}
			}
			if t.IsOverdue(now) {
				m.OverdueCount++
			}
		}
		if m.Total > 0 {
			m.CompletionRate = float64(m.Completed) / float64(m.Total) * 100
		}
		if timed > 0 {
			m.AvgCompletionHours = hours / float64(timed)
		}
		if rated > 0 {
			m.AvgQualityRating = rating / float64(rated)
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// CategoryMetric summarizes one category's tasks.
type CategoryMetric struct {
	Category           domain.Category `json:"category"`
	Total              int             `json:"total"`
	Completed          int             `json:"completed"`
	AvgCompletionHours float64         `json:"avg_completion_hours"`
	OverdueRate        float64         `json:"overdue_rate"`
}

func CategoryMetrics(tasks []domain.Task, now time.Time) []CategoryMetric {
	metrics := make([]CategoryMetric, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		m := CategoryMetric{Category: c}
		var hours float64
		timed := 0
		overdue := 0
		for _, t := range tasks {
			if t.Category != c {
				continue
			}
			m.Total++
			if t.Status == domain.StatusCompleted {
				m.Completed++
				if t.CompletedAt != nil && !t.CreatedAt.IsZero() {
					hours += t.CompletedAt.Sub(t.CreatedAt).Hours()
					timed++
				}
			}
			if t.IsOverdue(now) {
				overdue++
			}
		}
		if timed > 0 {
			m.AvgCompletionHours = hours / float64(timed)
		}
		if m.Total > 0 {
			m.OverdueRate = float64(overdue) / float64(m.Total) * 100
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// TrendPoint is one calendar day of activity.
type TrendPoint struct {
	Date               string  `json:"date"` // YYYY-MM-DD
	Completed          int     `json:"completed"`
	Created            int     `json:"created"`
	AvgCompletionHours float64 `json:"avg_completion_hours"`
}

// ProductivityTrends reports per-day counts for the trailing days calendar
// days, oldest first.
func ProductivityTrends(tasks []domain.Task, now time.Time, days int) []TrendPoint {
	if days <= 0 {
		days = 30
	}
	points := make([]TrendPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		date := day.Format("2006-01-02")
		p := TrendPoint{Date: date}
		var hours float64
		timed := 0
		for _, t := range tasks {
			if t.CreatedAt.Format("2006-01-02") == date {
				p.Created++
			}
			if t.CompletedAt != nil && t.CompletedAt.Format("2006-01-02") == date {
				p.Completed++
				if !t.CreatedAt.IsZero() {
					hours += t.CompletedAt.Sub(t.CreatedAt).Hours()
					timed++
				}
			}
		}
		if timed > 0 {
			p.AvgCompletionHours = hours / float64(timed)
		}
		points = append(points, p)
	}
	return points
}

// SearchResult pairs a matching task with the fields the query matched on.
type SearchResult struct {
	Task          domain.Task `json:"task"`
	Relevance     float64     `json:"relevance"`
	MatchedFields []string    `json:"matched_fields"`
}

const searchRelevance = 1.0

// Search does case-insensitive substring matching over title, description and
// instructions. Relevance is a fixed constant, not a ranking.
func Search(tasks []domain.Task, query string, limit int) []SearchResult {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var results []SearchResult
	for _, t := range tasks {
		var matched []string
		if strings.Contains(strings.ToLower(t.Title), q) {
			matched = append(matched, "title")
		}
		if strings.Contains(strings.ToLower(t.Description), q) {
			matched = append(matched, "description")
		}
		if strings.Contains(strings.ToLower(t.Instructions), q) {
			matched = append(matched, "instructions")
		}
		if len(matched) == 0 {
			continue
		}
		results = append(results, SearchResult{Task: t, Relevance: searchRelevance, MatchedFields: matched})
		if len(results) == limit {
			break
		}
	}
	return results
}

// DashboardSummary is the personal view for one user.
type DashboardSummary struct {
	UserID            string        `json:"user_id"`
	AssignedTotal     int           `json:"assigned_total"`
	AssignedOpen      int           `json:"assigned_open"`
	OverdueCount      int           `json:"overdue_count"`
	CompletedThisWeek int           `json:"completed_this_week"`
	ProductivityScore int           `json:"productivity_score"`
	Upcoming          []domain.Task `json:"upcoming"`
}

// Dashboard summarizes the tasks assigned to userID across the given set.
func Dashboard(tasks []domain.Task, userID string, now time.Time) DashboardSummary {
	var assigned []domain.Task
	for _, t := range tasks {
		if t.AssignedToUser(userID) {
			assigned = append(assigned, t)
		}
	}

	open := 0
	for _, t := range assigned {
		if !t.Status.Terminal() {
			open++
		}
	}

	return DashboardSummary{
		UserID:            userID,
		AssignedTotal:     len(assigned),
		AssignedOpen:      open,
		OverdueCount:      OverdueCount(assigned, now),
		CompletedThisWeek: CompletedInWindow(assigned, now.AddDate(0, 0, -7), now),
		ProductivityScore: ProductivityScore(assigned, now),
		Upcoming:          UpcomingDeadlines(assigned, now, 7, 5),
	}
}
