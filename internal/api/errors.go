package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"tabserve/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var unsupportedFormat *domain.UnsupportedFormatError
	var unsupportedOperator *domain.UnsupportedOperatorError
	var unknownColumn *domain.UnknownColumnError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &unsupportedOperator), errors.As(err, &unknownColumn):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := httpStatusFromDomainError(err)
	writeJSON(w, code, errorResponse{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
