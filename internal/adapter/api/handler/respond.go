package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/V4T54L/dealboard/internal/domain"
)

const maxBodyBytes = 1 << 20

// Problem is an RFC 7807 error body.
type Problem struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title,omitempty"`
	Status int                 `json:"status,omitempty"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// WriteProblem writes an application/problem+json response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string, errs map[string][]string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Detail: detail,
		Errors: errs,
	})
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError maps domain errors onto problem responses.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		verrs    domain.ValidationErrors
		stageErr *domain.InvalidStageError
		notFound *domain.NotFoundError
	)
	switch {
	case errors.As(err, &verrs):
		WriteProblem(w, http.StatusUnprocessableEntity, "validation failed", "one or more fields are invalid", verrs.Fields())
	case errors.As(err, &stageErr):
		WriteProblem(w, http.StatusUnprocessableEntity, "invalid stage", stageErr.Error(),
			map[string][]string{"stage": {fmt.Sprintf("unknown stage %q", stageErr.Stage)}})
	case errors.As(err, &notFound):
		WriteProblem(w, http.StatusNotFound, "not found", notFound.Error(), nil)
	default:
		logger.Error("request failed", "error", err)
		WriteProblem(w, http.StatusInternalServerError, "internal error", "", nil)
	}
}

// decodeJSON reads a single JSON object from the body, rejecting unknown
// fields. It writes the error response itself and reports success.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			WriteProblem(w, http.StatusRequestEntityTooLarge, "payload too large", "", nil)
		case errors.Is(err, io.EOF):
			WriteProblem(w, http.StatusBadRequest, "invalid json", "request body is empty", nil)
		default:
			WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		}
		return false
	}
	return true
}
