package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// maxBodyBytes bounds request bodies. Component sources are small; AI
// requests carry the document plus a prompt.
const maxBodyBytes = 2 << 20

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error apperrors.Detail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(r.Context()).Error(r.Context(), err, "Request failed", "path", r.URL.Path)
	}

	writeJSON(w, status, errorResponse{Error: apperrors.DetailOf(err)})
}

// statusOf maps an error to its HTTP status. User-caused failures are 422 so
// the page can show them next to the control that caused them.
func statusOf(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeSessionNotFound, apperrors.ErrCodeToolNotFound,
		apperrors.ErrCodeTemplateNotFound, apperrors.ErrCodeSectionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeNoBackup:
		return http.StatusNotFound
	case apperrors.ErrCodeGenerationBusy:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	}

	var te *apperrors.Error
	if !errors.As(err, &te) {
		return http.StatusInternalServerError
	}

	switch te.Type {
	case apperrors.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeSecurity:
		return http.StatusForbidden
	case apperrors.ErrorTypeConfig:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeRender, apperrors.ErrorTypeNetwork, apperrors.ErrorTypeStream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "request body is empty")
		}
		return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "malformed request body: "+err.Error())
	}

	return nil
}
