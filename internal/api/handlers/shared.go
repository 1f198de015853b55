// Package handlers implements the HTTP endpoints of the rebalancing API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/response"
	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
)

// maxBodyBytes bounds request bodies. A full price batch fits well within it.
const maxBodyBytes = 1 << 20

// parseJSON decodes the request body into a T. Unknown fields are rejected.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	if r.Body == nil {
		return req, errors.New("request body is empty")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode request body: %w", err)
	}
	return req, nil
}

// respondServiceError maps a service error onto an HTTP status.
// Invalid input is 400, unknown entities are 404, over-sells are 409.
// Anything else is a 500 reported under the fallback message.
func respondServiceError(w http.ResponseWriter, err error, fallback error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrInvalidDateRange):
		response.RespondError(w, http.StatusBadRequest, rootMessage(err), err.Error())
	case errors.Is(err, apperrors.ErrAccountNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrAccountNotFound.Error(), err.Error())
	case errors.Is(err, apperrors.ErrHoldingNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrHoldingNotFound.Error(), err.Error())
	case errors.Is(err, apperrors.ErrGroupNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrGroupNotFound.Error(), err.Error())
	case errors.Is(err, apperrors.ErrTransactionNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrTransactionNotFound.Error(), err.Error())
	case errors.Is(err, apperrors.ErrInsufficientLots):
		var lotErr *apperrors.LotError
		if errors.As(err, &lotErr) {
			response.RespondError(w, http.StatusConflict, apperrors.ErrInsufficientLots.Error(), lotErr)
			return
		}
		response.RespondError(w, http.StatusConflict, apperrors.ErrInsufficientLots.Error(), err.Error())
	default:
		response.RespondError(w, http.StatusInternalServerError, fallback.Error(), err.Error())
	}
}

func rootMessage(err error) string {
	if errors.Is(err, apperrors.ErrInvalidDateRange) {
		return apperrors.ErrInvalidDateRange.Error()
	}
	return apperrors.ErrInvalidInput.Error()
}
