package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nibsbin/quillmark/internal/apperr"
	"github.com/nibsbin/quillmark/pkg/parse"
	"github.com/nibsbin/quillmark/pkg/quill"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a failure to its status envelope. Parse and schema
// validation failures become 422 with structured detail; apperr sentinels
// map through Code; everything else is a 500 with the detail logged, not
// leaked.
func writeError(w http.ResponseWriter, op string, err error) {
	var pe *parse.Error
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusUnprocessableEntity, parseErrorBody(pe))
		return
	}
	var ve *quill.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:    "document does not match quill schema",
			Problems: ve.Problems,
		})
		return
	}

	status := apperr.Code(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func parseErrorBody(pe *parse.Error) ParseErrorResponse {
	return ParseErrorResponse{
		Error:  pe.Error(),
		Kind:   pe.Kind.String(),
		Line:   pe.Line,
		Column: pe.Column,
		Hint:   pe.Hint,
	}
}
