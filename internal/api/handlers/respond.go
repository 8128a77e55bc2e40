package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/racecarr/racecarr/internal/apierrors"
)

func writeJSONResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeErrorResponse maps a component error onto an HTTP status using the
// taxonomy named in SPEC_FULL.md §7.
func writeErrorResponse(w http.ResponseWriter, err error) {
	var apiErr *apierrors.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case apierrors.KindValidation:
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: apiErr.Msg})
		case apierrors.KindNotFound:
			writeJSONResponse(w, http.StatusNotFound, errorResponse{Error: apiErr.Msg})
		case apierrors.KindStateConflict:
			writeJSONResponse(w, http.StatusConflict, errorResponse{Error: apiErr.Msg})
		case apierrors.KindConfiguration:
			writeJSONResponse(w, http.StatusUnprocessableEntity, errorResponse{Error: apiErr.Msg})
		default:
			writeJSONResponse(w, http.StatusBadGateway, errorResponse{Error: apiErr.Msg})
		}
		return
	}
	writeJSONResponse(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func decodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
