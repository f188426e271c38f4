package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/Cryptoprojectsfun/stocktrade/internal/errors"
	"github.com/Cryptoprojectsfun/stocktrade/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError renders any error in the standard envelope. Typed errors
// carry their own status code; anything else is a 500 with the detail
// kept out of the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewError(apperrors.ErrorTypeUnknown, "Internal server error", nil)
	}

	requestID := middleware.RequestIDFromContext(r.Context())
	writeJSON(w, appErr.StatusCode, apperrors.NewErrorResponse(appErr, requestID))
}
