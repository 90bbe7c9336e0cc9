package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stayops/internal/aggregate"
	"stayops/internal/bulk"
	"stayops/internal/domain"
	"stayops/internal/recurrence"
	"stayops/internal/taskstore"
)

type Server struct {
	r     *chi.Mux
	store *taskstore.Adapter
	rec   *recurrence.Engine
	bulk  *bulk.Engine
	now   func() time.Time
}

func NewServer(store *taskstore.Adapter, secret []byte) http.Handler {
	return newServer(store, secret, time.Now)
}

func newServer(store *taskstore.Adapter, secret []byte, now func() time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{
		r:     r,
		store: store,
		rec:   recurrence.New(store),
		bulk:  bulk.NewWithClock(store, now),
		now:   now,
	}

	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(secret))

		r.Route("/api/properties/{propertyID}", func(r chi.Router) {
			r.Use(s.requireProperty)
			r.Post("/tasks", s.createTask)
			r.Get("/tasks", s.listTasks)
			r.Get("/tasks/{id}", s.getTask)
			r.Patch("/tasks/{id}", s.patchTask)
			r.Delete("/tasks/{id}", s.deleteTask)
			r.Post("/tasks/{id}/complete", s.completeTask)
			r.Post("/tasks/bulk", s.bulkTasks)
			r.Get("/metrics", s.propertyMetrics)
			r.Get("/trends", s.propertyTrends)
			r.Get("/search", s.searchTasks)
		})

		r.Get("/api/me/dashboard", s.myDashboard)
	})

	return r
}

// requireProperty rejects callers whose session does not grant the property
// in the URL.
func (s *Server) requireProperty(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !identity.CanAccessProperty(chi.URLParam(r, "propertyID")) {
			http.Error(w, "property not accessible", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type taskReq struct {
	Title             string                    `json:"title"`
	Description       string                    `json:"description"`
	Instructions      string                    `json:"instructions"`
	Category          domain.Category           `json:"category"`
	Priority          domain.Priority           `json:"priority"`
	AssignedTo        []string                  `json:"assigned_to"`
	DueDate           *time.Time                `json:"due_date"`
	EstimatedDuration int                       `json:"estimated_duration"`
	Recurrence        *domain.RecurrencePattern `json:"recurrence"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	t := domain.Task{
		PropertyID:        chi.URLParam(r, "propertyID"),
		Title:             req.Title,
		Description:       req.Description,
		Instructions:      req.Instructions,
		Category:          req.Category,
		Priority:          req.Priority,
		AssignedTo:        req.AssignedTo,
		DueDate:           req.DueDate,
		EstimatedDuration: req.EstimatedDuration,
		Recurrence:        req.Recurrence,
		CompletionPhotos:  []string{},
	}
	if t.AssignedTo == nil {
		t.AssignedTo = []string{}
	}

	created, err := s.store.Create(r.Context(), t)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), 400)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	// Creation-time recurrence trigger: the successor is scheduled as soon as
	// a recurring task is created. Failures are logged, never surfaced.
	if created.Recurrence != nil {
		s.rec.Spawn(r.Context(), created)
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListForProperty(r.Context(), chi.URLParam(r, "propertyID"))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	now := s.now()
	status := r.URL.Query().Get("status")
	category := r.URL.Query().Get("category")
	assignee := r.URL.Query().Get("assignee")

	filtered := tasks[:0]
	for _, t := range tasks {
		if status != "" && string(t.EffectiveStatus(now)) != status {
			continue
		}
		if category != "" && string(t.Category) != category {
			continue
		}
		if assignee != "" && !t.AssignedToUser(assignee) {
			continue
		}
		filtered = append(filtered, t)
	}

	domain.SortTasks(filtered)
	writeJSON(w, 200, taskListResp{Tasks: filtered, Count: len(filtered)})
}

type taskListResp struct {
	Tasks []domain.Task `json:"tasks"`
	Count int           `json:"count"`
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Load(r.Context(), chi.URLParam(r, "propertyID"), chi.URLParam(r, "id"))
	if err != nil {
		s.taskError(w, err)
		return
	}
	writeJSON(w, 200, t)
}

type patchReq struct {
	Title             *string          `json:"title"`
	Description       *string          `json:"description"`
	Instructions      *string          `json:"instructions"`
	Category          *domain.Category `json:"category"`
	Priority          *domain.Priority `json:"priority"`
	AssignedTo        []string         `json:"assigned_to"`
	DueDate           *time.Time       `json:"due_date"`
	EstimatedDuration *int             `json:"estimated_duration"`
	Status            *domain.Status   `json:"status"`
}

func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Load(r.Context(), chi.URLParam(r, "propertyID"), chi.URLParam(r, "id"))
	if err != nil {
		s.taskError(w, err)
		return
	}

	var req patchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Instructions != nil {
		t.Instructions = *req.Instructions
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.AssignedTo != nil {
		t.AssignedTo = req.AssignedTo
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.EstimatedDuration != nil {
		t.EstimatedDuration = *req.EstimatedDuration
	}
	if req.Status != nil && *req.Status != t.Status {
		if !t.Status.CanTransitionTo(*req.Status) {
			http.Error(w, "invalid status transition", 400)
			return
		}
		t.Status = *req.Status
		if t.Status == domain.StatusCompleted {
			now := s.now()
			t.CompletedAt = &now
			identity, _ := identityFrom(r)
			t.CompletedBy = identity.UserID
		}
	}

	if err := t.Validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	saved, err := s.store.Save(r.Context(), t)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, saved)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), chi.URLParam(r, "propertyID"), chi.URLParam(r, "id"))
	if err != nil {
		s.taskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeReq struct {
	Notes         string   `json:"notes"`
	QualityRating int      `json:"quality_rating"`
	Photos        []string `json:"photos"`
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Load(r.Context(), chi.URLParam(r, "propertyID"), chi.URLParam(r, "id"))
	if err != nil {
		s.taskError(w, err)
		return
	}

	var req completeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if !t.Status.CanTransitionTo(domain.StatusCompleted) {
		http.Error(w, "task cannot be completed from status "+string(t.Status), 400)
		return
	}

	identity, _ := identityFrom(r)
	now := s.now()
	t.Status = domain.StatusCompleted
	t.CompletedAt = &now
	t.CompletedBy = identity.UserID
	t.CompletionNotes = req.Notes
	t.QualityRating = req.QualityRating
	if req.Photos != nil {
		t.CompletionPhotos = req.Photos
	}

	if err := t.Validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	saved, err := s.store.Save(r.Context(), t)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, saved)
}

type bulkReq struct {
	TaskIDs   []string        `json:"task_ids"`
	Operation bulk.Kind       `json:"operation"`
	Assignees []string        `json:"assignees"`
	Priority  domain.Priority `json:"priority"`
	Category  domain.Category `json:"category"`
	Deadline  *time.Time      `json:"deadline"`
}

func (s *Server) bulkTasks(w http.ResponseWriter, r *http.Request) {
	var req bulkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	propertyID := chi.URLParam(r, "propertyID")
	tasks, err := s.store.ListForProperty(r.Context(), propertyID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	accessible := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		accessible[t.ID] = true
	}

	op := bulk.Operation{
		Kind:      req.Operation,
		Assignees: req.Assignees,
		Priority:  req.Priority,
		Category:  req.Category,
	}
	if req.Deadline != nil {
		op.Deadline = *req.Deadline
	}

	identity, _ := identityFrom(r)
	result, err := s.bulk.Apply(r.Context(), propertyID, req.TaskIDs, op, accessible, identity.UserID)
	if err != nil {
		if errors.Is(err, bulk.ErrEmptyOperation) || errors.Is(err, bulk.ErrNoAccessibleTasks) {
			http.Error(w, err.Error(), 400)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, result)
}

func (s *Server) propertyMetrics(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListForProperty(r.Context(), chi.URLParam(r, "propertyID"))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	now := s.now()
	writeJSON(w, 200, map[string]any{
		"overdue_count":      aggregate.OverdueCount(tasks, now),
		"workload":           aggregate.WorkloadByCategory(tasks),
		"users":              aggregate.UserMetrics(tasks, now),
		"categories":         aggregate.CategoryMetrics(tasks, now),
		"upcoming_deadlines": aggregate.UpcomingDeadlines(tasks, now, 7, 10),
	})
}

func (s *Server) propertyTrends(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListForProperty(r.Context(), chi.URLParam(r, "propertyID"))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	writeJSON(w, 200, aggregate.ProductivityTrends(tasks, s.now(), days))
}

func (s *Server) searchTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "q is required", 400)
		return
	}

	tasks, err := s.store.ListForProperty(r.Context(), chi.URLParam(r, "propertyID"))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results := aggregate.Search(tasks, q, limit)
	if results == nil {
		results = []aggregate.SearchResult{}
	}
	writeJSON(w, 200, results)
}

// myDashboard aggregates across every property the caller can access.
// Listings are best effort: a property whose tasks fail to load is skipped.
func (s *Server) myDashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var tasks []domain.Task
	for _, propertyID := range identity.Properties {
		propTasks, err := s.store.ListForProperty(r.Context(), propertyID)
		if err != nil {
			continue
		}
		tasks = append(tasks, propTasks...)
	}

	writeJSON(w, 200, aggregate.Dashboard(tasks, identity.UserID, s.now()))
}

func (s *Server) taskError(w http.ResponseWriter, err error) {
	if errors.Is(err, taskstore.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	var corrupt *taskstore.CorruptRecordError
	if errors.As(err, &corrupt) {
		http.Error(w, "record unreadable", 500)
		return
	}
	http.Error(w, err.Error(), 500)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
