package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/response"
	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
	"github.com/ndewijer/portfolio-rebalancer/internal/validation"
)

// AllocationHandler maintains accounts, holdings, groups, holding targets and prices.
type AllocationHandler struct {
	allocationService *service.AllocationService
	priceService      *service.PriceService
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocationService *service.AllocationService, priceService *service.PriceService) *AllocationHandler {
	return &AllocationHandler{
		allocationService: allocationService,
		priceService:      priceService,
	}
}

// SavePricesResponse reports how many price points were stored.
type SavePricesResponse struct {
	Saved int `json:"saved"`
}

// GetAccounts handles GET requests for the accounts of the requesting user.
//
// Endpoint: GET /api/accounts
// Response: 200 OK with []model.Account
// Error: 500 Internal Server Error if retrieval fails
func (h *AllocationHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.allocationService.GetAccounts(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveAccounts)
		return
	}

	response.RespondJSON(w, http.StatusOK, accounts)
}

// CreateAccount handles POST requests to open an account.
//
// Endpoint: POST /api/accounts
// Request Body: CreateAccountRequest
// Response: 201 Created with model.Account
// Error: 400 Bad Request if the body is invalid
// Error: 500 Internal Server Error if creation fails
func (h *AllocationHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateAccountRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateAccount(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	account, err := h.allocationService.CreateAccount(r.Context(), model.Account{
		UserID:    middleware.UserID(r.Context()),
		Name:      req.Name,
		Type:      req.Type,
		TaxStatus: model.TaxStatus(req.TaxStatus),
	})
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToCreateAccount)
		return
	}

	response.RespondJSON(w, http.StatusCreated, account)
}

// GetHoldings handles GET requests for the holdings of the requesting user.
//
// Endpoint: GET /api/holdings
// Response: 200 OK with []model.Holding
// Error: 500 Internal Server Error if retrieval fails
func (h *AllocationHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.allocationService.GetHoldings(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveHoldings)
		return
	}

	response.RespondJSON(w, http.StatusOK, holdings)
}

// CreateHolding handles POST requests to register a holding.
//
// Endpoint: POST /api/holdings
// Request Body: CreateHoldingRequest
// Response: 201 Created with model.Holding
// Error: 400 Bad Request if the body is invalid or the ticker already exists
// Error: 404 Not Found if the group does not exist
// Error: 500 Internal Server Error if creation fails
func (h *AllocationHandler) CreateHolding(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateHoldingRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateHolding(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	holding, err := h.allocationService.CreateHolding(r.Context(), model.Holding{
		UserID:    middleware.UserID(r.Context()),
		Ticker:    req.Ticker,
		Name:      req.Name,
		Type:      req.Type,
		Subtype:   req.Subtype,
		Geography: req.Geography,
		Size:      req.Size,
		Factor:    req.Factor,
		GroupID:   req.GroupID,
	})
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToCreateHolding)
		return
	}

	response.RespondJSON(w, http.StatusCreated, holding)
}

// GetGroups handles GET requests for the groups of the requesting user.
//
// Endpoint: GET /api/groups
// Response: 200 OK with []model.Group
// Error: 500 Internal Server Error if retrieval fails
func (h *AllocationHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.allocationService.GetGroups(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveGroups)
		return
	}

	response.RespondJSON(w, http.StatusOK, groups)
}

// SaveGroup handles PUT requests to create or replace a group.
//
// Endpoint: PUT /api/groups/{uuid}
// Request Body: SaveGroupRequest
// Response: 200 OK with the stored model.Group
// Error: 400 Bad Request if the body is invalid
// Error: 404 Not Found if the id belongs to another user's group
// Error: 500 Internal Server Error if saving fails
func (h *AllocationHandler) SaveGroup(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.SaveGroupRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateSaveGroup(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	group, err := h.allocationService.SaveGroup(r.Context(), model.Group{
		ID:                chi.URLParam(r, "uuid"),
		UserID:            middleware.UserID(r.Context()),
		Name:              req.Name,
		TargetPct:         req.TargetPct,
		UpsideThreshold:   req.UpsideThreshold,
		DownsideThreshold: req.DownsideThreshold,
		AbsoluteRebalance: req.AbsoluteRebalance,
	})
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToSaveGroup)
		return
	}

	response.RespondJSON(w, http.StatusOK, group)
}

// SaveTarget handles PUT requests to set the target of a holding within a group.
//
// Endpoint: PUT /api/targets/{uuid}
// Request Body: SaveTargetRequest
// Response: 200 OK with the updated model.Holding
// Error: 400 Bad Request if the body is invalid
// Error: 404 Not Found if the holding or group does not exist
// Error: 500 Internal Server Error if saving fails
func (h *AllocationHandler) SaveTarget(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.SaveTargetRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateSaveTarget(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	holding, err := h.allocationService.SaveTarget(r.Context(), middleware.UserID(r.Context()), model.HoldingTarget{
		HoldingID: chi.URLParam(r, "uuid"),
		GroupID:   req.GroupID,
		TargetPct: req.TargetPct,
	})
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToSaveTarget)
		return
	}

	response.RespondJSON(w, http.StatusOK, holding)
}

// SavePrices handles POST requests to ingest caller-supplied prices.
// The batch is stored in one transaction; one bad entry rejects all of it.
//
// Endpoint: POST /api/prices
// Request Body: SavePricesRequest
// Response: 200 OK with SavePricesResponse
// Error: 400 Bad Request if the body is invalid
// Error: 404 Not Found if a holding does not exist
// Error: 500 Internal Server Error if saving fails
func (h *AllocationHandler) SavePrices(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.SavePricesRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateSavePrices(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	points := make([]model.PricePoint, 0, len(req.Prices))
	for _, p := range req.Prices {
		// Validated above.
		date, _ := time.Parse(request.DateLayout, p.Date)
		points = append(points, model.PricePoint{HoldingID: p.HoldingID, Date: date, Price: p.Price})
	}

	saved, err := h.priceService.SavePrices(r.Context(), middleware.UserID(r.Context()), points)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToSavePrices)
		return
	}

	response.RespondJSON(w, http.StatusOK, SavePricesResponse{Saved: saved})
}
