package handlers

import (
	"net/http"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/response"
	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
)

// RebalanceHandler serves rebalance reports.
type RebalanceHandler struct {
	rebalanceService *service.RebalanceService
}

// NewRebalanceHandler creates a new RebalanceHandler
func NewRebalanceHandler(rebalanceService *service.RebalanceService) *RebalanceHandler {
	return &RebalanceHandler{
		rebalanceService: rebalanceService,
	}
}

// GetRebalance handles GET requests for the rebalance report of the requesting user.
//
// Endpoint: GET /api/rebalance
// Query Parameters:
//   - group: comma-separated group ids (optional)
//   - account: comma-separated account ids (optional)
//   - as_of: valuation date, YYYY-MM-DD (optional, defaults to now)
//   - tax_aware: pick accounts and lots for sells (optional, defaults to true)
//
// Response: 200 OK with model.RebalanceReport
// Error: 400 Bad Request for malformed parameters
// Error: 404 Not Found if a filter names an unknown group or account
// Error: 500 Internal Server Error if the report cannot be built
func (h *RebalanceHandler) GetRebalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := request.ParseRebalanceQuery(q.Get("group"), q.Get("account"), q.Get("as_of"), q.Get("tax_aware"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid query parameters", err.Error())
		return
	}

	report, err := h.rebalanceService.GetRebalanceReport(r.Context(), service.RebalanceRequest{
		UserID:   middleware.UserID(r.Context()),
		Filter:   params.Filter,
		AsOf:     params.AsOf,
		TaxAware: params.TaxAware,
	})
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToBuildRebalance)
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}
