package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"token-market/internal/market"
	"token-market/internal/storage"
)

// errorBody is the JSON error envelope. Context carries the numeric
// detail a caller needs to retry intelligently.
type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Context map[string]any `json:"context,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	var ctx map[string]any

	var insufficient *market.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		status, code = http.StatusBadRequest, "insufficient_balance"
		ctx = map[string]any{
			"holder_id": insufficient.HolderID,
			"token_id":  insufficient.TokenID,
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		}
	case errors.Is(err, market.ErrValidation), errors.Is(err, storage.ErrInvalidInput):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, market.ErrInsufficientBalance):
		status, code = http.StatusBadRequest, "insufficient_balance"
	case errors.Is(err, market.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, market.ErrDuplicateDistribution):
		status, code = http.StatusConflict, "duplicate_distribution"
	case errors.Is(err, market.ErrConcurrencyConflict), errors.Is(err, storage.ErrConflict):
		status, code = http.StatusConflict, "concurrency_conflict"
	case errors.Is(err, storage.ErrDuplicateKey):
		status, code = http.StatusConflict, "duplicate_key"
	case errors.Is(err, market.ErrExternalService):
		status, code = http.StatusBadGateway, "external_service_error"
	}

	if status == http.StatusInternalServerError {
		s.logger.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = err.Error()
	body.Error.Context = ctx
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return market.Validationf("invalid request body: %v", err)
	}
	return nil
}
