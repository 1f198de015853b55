package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/response"
	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
	"github.com/ndewijer/portfolio-rebalancer/internal/validation"
)

// LedgerHandler handles lots, transactions and ledger verification.
type LedgerHandler struct {
	ledgerService *service.LedgerService
	replayService *service.ReplayService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *service.LedgerService, replayService *service.ReplayService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		replayService: replayService,
	}
}

// GetLots handles GET requests for the open tax lots of the requesting user, oldest first.
//
// Endpoint: GET /api/lots
// Query Parameters:
//   - holding: holding id (optional)
//   - account: account id (optional)
//
// Response: 200 OK with []model.TaxLot
// Error: 400 Bad Request for malformed ids
// Error: 500 Internal Server Error if retrieval fails
func (h *LedgerHandler) GetLots(w http.ResponseWriter, r *http.Request) {
	filter := model.LotFilter{
		HoldingID: r.URL.Query().Get("holding"),
		AccountID: r.URL.Query().Get("account"),
	}
	if !validOptionalUUID(w, filter.HoldingID) || !validOptionalUUID(w, filter.AccountID) {
		return
	}

	lots, err := h.ledgerService.GetOpenLots(r.Context(), middleware.UserID(r.Context()), filter)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveLots)
		return
	}

	response.RespondJSON(w, http.StatusOK, lots)
}

// GetTransactions handles GET requests for the transaction history in replay order.
//
// Endpoint: GET /api/transactions
// Query Parameters:
//   - account: comma-separated account ids (optional)
//   - holding: holding id (optional)
//   - start_date, end_date: YYYY-MM-DD (optional)
//
// Response: 200 OK with []model.Transaction
// Error: 400 Bad Request for malformed parameters
// Error: 500 Internal Server Error if retrieval fails
func (h *LedgerHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, end, err := request.ParseDateRange(q.Get("start_date"), q.Get("end_date"), false)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveTransactions)
		return
	}
	filter := model.TransactionFilter{
		HoldingID: q.Get("holding"),
		StartDate: start,
		EndDate:   end,
	}
	if accounts := q.Get("account"); accounts != "" {
		filter.AccountIDs = strings.Split(accounts, ",")
		if err := validation.ValidateUUIDs(filter.AccountIDs); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid account id", err.Error())
			return
		}
	}
	if !validOptionalUUID(w, filter.HoldingID) {
		return
	}

	txs, err := h.ledgerService.GetTransactions(r.Context(), middleware.UserID(r.Context()), filter)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveTransactions)
		return
	}

	response.RespondJSON(w, http.StatusOK, txs)
}

// CreateTransaction handles POST requests to record a ledger event.
// A buy opens a lot, a sell consumes lots FIFO and reports the realized gain,
// cash events only adjust the account's cash.
//
// Endpoint: POST /api/transactions
// Request Body: CreateTransactionRequest
// Response: 201 Created with service.BuyResult, service.SellResult or model.Transaction
// Error: 400 Bad Request if the body is invalid
// Error: 404 Not Found if the account or holding does not exist
// Error: 409 Conflict if a sell exceeds the open quantity
// Error: 500 Internal Server Error if recording fails
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateTransactionRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateTransaction(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	// Validated above.
	date, _ := time.Parse(request.DateLayout, req.Date)
	userID := middleware.UserID(r.Context())
	typ := model.TransactionType(req.Type)

	var result any
	switch typ {
	case model.TransactionBuy, model.TransactionSell:
		in := service.TradeInput{
			AccountID: req.AccountID,
			HoldingID: req.HoldingID,
			Date:      date,
			Quantity:  req.Quantity,
			Price:     req.Price,
			Fees:      req.Fees,
		}
		if typ == model.TransactionBuy {
			result, err = h.ledgerService.RecordBuy(r.Context(), userID, in)
		} else {
			result, err = h.ledgerService.RecordSell(r.Context(), userID, in)
		}
	default:
		result, err = h.ledgerService.RecordCashFlow(r.Context(), userID, service.CashFlowInput{
			AccountID: req.AccountID,
			HoldingID: req.HoldingID,
			Date:      date,
			Type:      typ,
			Amount:    req.Amount,
		})
	}
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRecordTransaction)
		return
	}

	response.RespondJSON(w, http.StatusCreated, result)
}

// Verify replays the transaction history of the requesting user and compares
// the resulting lots with the stored ones.
//
// Endpoint: GET /api/ledger/verify
// Response: 200 OK with service.ReplayReport
// Error: 500 Internal Server Error if the history cannot be replayed
func (h *LedgerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.replayService.Verify(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToVerifyLedger)
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

func validOptionalUUID(w http.ResponseWriter, id string) bool {
	if id == "" {
		return true
	}
	if err := validation.ValidateUUID(id); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid UUID format", err.Error())
		return false
	}
	return true
}
