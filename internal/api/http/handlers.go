// Package apihttp exposes the reconciliation service over HTTP.
package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"utilibill/internal/maildraft"
	"utilibill/internal/notification"
	"utilibill/internal/orchestrator"
	portal "utilibill/internal/portal/domain"
	reconcile "utilibill/internal/reconcile/domain"
	reconcilexlsx "utilibill/internal/reconcile/infrastructure/excel"
	registry "utilibill/internal/registry/domain"
	runstore "utilibill/internal/runstore/postgres"
)

const timeLayout = time.RFC3339

// Reconciler is the orchestrator surface the handlers drive.
type Reconciler interface {
	RunReconciliation(ctx context.Context, now time.Time) (*orchestrator.RunResult, error)
	BuildNotification(ctx context.Context, run *orchestrator.RunResult, propertyKey string) (*notification.Payload, error)
	DraftNotification(ctx context.Context, run *orchestrator.RunResult, propertyKey string) (maildraft.Draft, error)
}

// LatestStore keeps the most recent run result in memory so read
// endpoints can serve it without re-driving the portal.
type LatestStore struct {
	mu  sync.RWMutex
	run *orchestrator.RunResult
}

// Put stores the latest run.
func (s *LatestStore) Put(run *orchestrator.RunResult) {
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
}

// Get returns the latest run, or nil.
func (s *LatestStore) Get() *orchestrator.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run
}

type eventResponse struct {
	PropertyKey string `json:"property_key"`
	TotalCost   string `json:"total_cost"`
	Allowance   string `json:"allowance"`
	Overage     string `json:"overage"`
}

type runResponse struct {
	ID           string          `json:"id"`
	Cycle        string          `json:"cycle"`
	WindowMonths int             `json:"window_months"`
	StartedAt    string          `json:"started_at"`
	FinishedAt   string          `json:"finished_at"`
	Events       []eventResponse `json:"events"`
}

func toRunResponse(run *orchestrator.RunResult) runResponse {
	resp := runResponse{
		ID:           run.ID,
		Cycle:        run.Cycle.Label(),
		WindowMonths: run.Window.MonthsBack,
		StartedAt:    run.StartedAt.Format(timeLayout),
		FinishedAt:   run.FinishedAt.Format(timeLayout),
		Events:       []eventResponse{},
	}
	for _, event := range run.Events {
		resp.Events = append(resp.Events, eventResponse{
			PropertyKey: event.PropertyKey,
			TotalCost:   event.TotalCost.StringFixed(2),
			Allowance:   event.Allowance.StringFixed(2),
			Overage:     event.Overage.StringFixed(2),
		})
	}
	return resp
}

// writeRunError maps the run error taxonomy onto status codes. Portal
// failures are upstream faults; registry and parse problems are data
// faults the operator can fix.
func writeRunError(w http.ResponseWriter, err error) {
	var authErr *portal.AuthenticationError
	var navErr *portal.NavigationError
	var acqErr *portal.AcquisitionError
	var parseErr *reconcile.ParseError
	var regErr *registry.Error
	switch {
	case errors.As(err, &authErr), errors.As(err, &navErr), errors.As(err, &acqErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &parseErr), errors.As(err, &regErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// RunHandler triggers a reconciliation run.
type RunHandler struct {
	service Reconciler
	store   *LatestStore
	logger  *log.Logger
	now     func() time.Time
}

// NewRunHandler constructs a RunHandler.
func NewRunHandler(service Reconciler, store *LatestStore, logger *log.Logger) *RunHandler {
	return &RunHandler{service: service, store: store, logger: logger, now: time.Now}
}

// ServeHTTP handles POST /api/v1/reconciliations.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	run, err := h.service.RunReconciliation(r.Context(), h.now().UTC())
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("api: run failed: %v", err)
		}
		writeRunError(w, err)
		return
	}
	h.store.Put(run)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toRunResponse(run))
}

// LatestHandler serves the most recent run.
type LatestHandler struct {
	store *LatestStore
}

// NewLatestHandler constructs a LatestHandler.
func NewLatestHandler(store *LatestStore) *LatestHandler {
	return &LatestHandler{store: store}
}

// ServeHTTP handles GET /api/v1/reconciliations/latest.
func (h *LatestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	run := h.store.Get()
	if run == nil {
		http.Error(w, "no completed run", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toRunResponse(run))
}

// ExportXLSXHandler serves the latest run as a workbook.
type ExportXLSXHandler struct {
	store    *LatestStore
	currency string
}

// NewExportXLSXHandler constructs an ExportXLSXHandler.
func NewExportXLSXHandler(store *LatestStore, currency string) *ExportXLSXHandler {
	return &ExportXLSXHandler{store: store, currency: currency}
}

// ServeHTTP handles GET /api/v1/exports/results.xlsx.
func (h *ExportXLSXHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	run := h.store.Get()
	if run == nil {
		http.Error(w, "no completed run", http.StatusNotFound)
		return
	}
	data, err := reconcilexlsx.BuildRunXLSX(run.Cycle, run.Events, h.currency)
	if err != nil {
		http.Error(w, "build workbook error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
	_, _ = w.Write(data)
}

// NotificationHandler builds or drafts a notification for one property of
// the latest run.
type NotificationHandler struct {
	service Reconciler
	store   *LatestStore
	logger  *log.Logger
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(service Reconciler, store *LatestStore, logger *log.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, store: store, logger: logger}
}

type notificationRequest struct {
	PropertyKey string `json:"property_key"`
	Draft       bool   `json:"draft"`
}

type notificationResponse struct {
	PropertyKey string   `json:"property_key"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	To          string   `json:"to"`
	Cc          []string `json:"cc,omitempty"`
	Attachments int      `json:"attachments"`
	DraftID     string   `json:"draft_id,omitempty"`
	DraftURL    string   `json:"draft_url,omitempty"`
}

// ServeHTTP handles POST /api/v1/notifications.
func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PropertyKey == "" {
		http.Error(w, "property_key is required", http.StatusBadRequest)
		return
	}
	run := h.store.Get()
	if run == nil {
		http.Error(w, "no completed run", http.StatusNotFound)
		return
	}

	payload, err := h.service.BuildNotification(r.Context(), run, req.PropertyKey)
	if err != nil {
		var recErr *notification.RecipientError
		if errors.As(err, &recErr) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	resp := notificationResponse{
		PropertyKey: payload.PropertyKey,
		Subject:     payload.Subject,
		Body:        payload.Body,
		To:          payload.To,
		Cc:          payload.Cc,
		Attachments: len(payload.Attachments),
	}
	if req.Draft {
		draft, err := h.service.DraftNotification(r.Context(), run, req.PropertyKey)
		if err != nil {
			if h.logger != nil {
				h.logger.Printf("api: draft failed: %v", err)
			}
			http.Error(w, "draft creation error", http.StatusBadGateway)
			return
		}
		resp.DraftID = draft.ID
		resp.DraftURL = draft.URL
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// RunsHandler lists archived runs.
type RunsHandler struct {
	repo *runstore.Repository
}

// NewRunsHandler constructs a RunsHandler.
func NewRunsHandler(repo *runstore.Repository) *RunsHandler {
	return &RunsHandler{repo: repo}
}

// ServeHTTP handles GET /api/v1/runs.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.repo == nil {
		http.Error(w, "archive not configured", http.StatusServiceUnavailable)
		return
	}
	runs, err := h.repo.ListRecent(r.Context(), 50)
	if err != nil {
		http.Error(w, "query runs error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []runstore.Run{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(runs)
}
