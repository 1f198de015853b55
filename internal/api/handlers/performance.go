package handlers

import (
	"net/http"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/response"
	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
)

// PerformanceHandler serves performance reports and the aggregate history.
type PerformanceHandler struct {
	performanceService *service.PerformanceService
	snapshotService    *service.SnapshotService
}

// NewPerformanceHandler creates a new PerformanceHandler
func NewPerformanceHandler(performanceService *service.PerformanceService, snapshotService *service.SnapshotService) *PerformanceHandler {
	return &PerformanceHandler{
		performanceService: performanceService,
		snapshotService:    snapshotService,
	}
}

// GetPerformance handles GET requests for a performance report.
//
// Endpoint: GET /api/performance
// Query Parameters:
//   - start_date, end_date: YYYY-MM-DD (optional, default first transaction to today)
//   - lens: group, type, subtype, geography, size, factor, account or holding (default group)
//   - aggregate: add a "total" series (optional)
//   - metric: twr or mwr (default twr)
//   - benchmark: ticker of a holding to rebase alongside (optional)
//
// Response: 200 OK with model.PerformanceReport
// Error: 400 Bad Request for malformed parameters or an unknown lens or metric
// Error: 500 Internal Server Error if the history cannot be replayed
func (h *PerformanceHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := request.ParsePerformanceQuery(
		middleware.UserID(r.Context()),
		q.Get("start_date"), q.Get("end_date"), q.Get("lens"),
		q.Get("aggregate"), q.Get("metric"), q.Get("benchmark"),
	)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToBuildPerformance)
		return
	}

	report, err := h.performanceService.GetPerformance(r.Context(), *req)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToBuildPerformance)
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// GetHistory handles GET requests for the daily aggregate history.
// Stored snapshots are served when they cover end_date; otherwise the
// history is replayed on demand.
//
// Endpoint: GET /api/performance/history
// Query Parameters:
//   - start_date: YYYY-MM-DD (optional)
//   - end_date: YYYY-MM-DD (optional, defaults to today)
//
// Response: 200 OK with []model.PerformancePoint
// Error: 400 Bad Request for malformed dates
// Error: 500 Internal Server Error if the history cannot be read or replayed
func (h *PerformanceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := request.ParseDateRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"), true)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveHistory)
		return
	}

	points, err := h.snapshotService.GetHistoryWithFallback(r.Context(), middleware.UserID(r.Context()), start, end)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveHistory)
		return
	}

	response.RespondJSON(w, http.StatusOK, points)
}
