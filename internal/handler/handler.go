package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"freshcart/internal/apiclient"
	"freshcart/internal/checkout"
	"freshcart/internal/model"
	"freshcart/internal/reconcile"
	"freshcart/internal/session"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrorResponse is the error body of the local surface. Shortfall and
// Findings are set for blocked checkouts.
type ErrorResponse struct {
	model.ErrorResponse
	Shortfall *decimal.Decimal    `json:"shortfall,omitempty"`
	Findings  []reconcile.Finding `json:"findings,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	writeErrorBody(w, status, ErrorResponse{ErrorResponse: model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
	}}, logger)
}

func writeErrorBody(w http.ResponseWriter, status int, body ErrorResponse, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("code", body.Code).Str("error", body.Message).Int("status", status).Msg("handler error")
	writeJSON(w, status, body)
}

// writeServiceError maps an error from the client core onto a status code
// and error body.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	status, body := errorResponse(err)
	writeErrorBody(w, status, body, logger)
}

func errorResponse(err error) (int, ErrorResponse) {
	body := func(status int, code, message string) (int, ErrorResponse) {
		return status, ErrorResponse{ErrorResponse: model.ErrorResponse{
			Error:   http.StatusText(status),
			Message: message,
			Code:    code,
		}}
	}

	var (
		minErr   *checkout.MinOrderError
		conflict *checkout.StockConflictError
		domain   *model.DomainError
		apiErr   *apiclient.APIError
	)

	switch {
	case errors.As(err, &minErr):
		status, resp := body(http.StatusUnprocessableEntity, model.ErrCodeMinOrderNotMet, minErr.Error())
		shortfall := minErr.Shortfall
		resp.Shortfall = &shortfall
		return status, resp

	case errors.As(err, &conflict):
		code := model.ErrCodeStockConflict
		if conflict.AllOutOfStock {
			code = model.ErrCodeAllOutOfStock
		}
		status, resp := body(http.StatusConflict, code, conflict.Error())
		resp.Findings = conflict.Findings
		return status, resp

	case errors.Is(err, checkout.ErrAllOutOfStock):
		return body(http.StatusConflict, model.ErrCodeAllOutOfStock, checkout.ErrAllOutOfStock.Error())

	case errors.Is(err, checkout.ErrSubmissionInProgress):
		return body(http.StatusConflict, model.ErrCodeSubmissionPending, err.Error())

	case errors.Is(err, checkout.ErrUnauthorized), errors.Is(err, session.ErrSessionExpired):
		return body(http.StatusUnauthorized, model.ErrCodeUnauthorised, session.ErrSessionExpired.Error())

	case errors.As(err, &domain):
		switch domain.Code {
		case model.ErrCodeProductNotFound, model.ErrCodeCouponNotFound:
			return body(http.StatusNotFound, domain.Code, domain.Message)
		case model.ErrCodeDeliveryDisabled:
			return body(http.StatusUnprocessableEntity, domain.Code, domain.Message)
		}
		return body(http.StatusBadRequest, domain.Code, domain.Message)

	case errors.Is(err, apiclient.ErrNetwork):
		return body(http.StatusServiceUnavailable, model.ErrCodeUpstreamUnreachable, "store server is unreachable")

	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return body(http.StatusUnauthorized, model.ErrCodeUnauthorised, apiErr.Message)
		case http.StatusNotFound:
			return body(http.StatusNotFound, model.ErrCodeUpstreamError, apiErr.Message)
		}
		return body(http.StatusBadGateway, model.ErrCodeUpstreamError, apiErr.Message)
	}

	return body(http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
