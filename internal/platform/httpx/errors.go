package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/temple-erp/temple-pos/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807. Detail of
// unexpected errors is only exposed when debug is set.
func RespondError(w http.ResponseWriter, err error, debug bool) {
	if classified, ok := shared.AsError(err); ok {
		respondClassified(w, classified, debug)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrActorRequired):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		internal(w, err, debug)
	}
}

func respondClassified(w http.ResponseWriter, e *shared.Error, debug bool) {
	p := ProblemDetail{Message: e.Error(), ErrorType: e.Type}
	switch e.Kind {
	case shared.KindValidation:
		p.Status, p.Title = http.StatusUnprocessableEntity, "Validation Failed"
		p.Errors = e.Fields
	case shared.KindNotFound:
		p.Status, p.Title = http.StatusNotFound, "Not Found"
	case shared.KindConflict:
		p.Status, p.Title = http.StatusBadRequest, "Conflict"
	case shared.KindDuplicate:
		p.Status, p.Title = http.StatusConflict, "Duplicate"
	case shared.KindInventory:
		p.Status, p.Title = http.StatusBadRequest, "Inventory Error"
	case shared.KindAccounting:
		p.Status, p.Title = http.StatusBadRequest, "Account Error"
	case shared.KindReversal:
		p.Status, p.Title = http.StatusInternalServerError, "Inventory Reversal Error"
	default:
		internal(w, e, debug)
		return
	}
	p.Detail = p.Message
	writeProblem(w, p)
}

func internal(w http.ResponseWriter, err error, debug bool) {
	p := ProblemDetail{
		Title:   "Internal Error",
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
	}
	if debug && err != nil {
		p.Detail = err.Error()
	}
	writeProblem(w, p)
}

// DecodeError turns a body decoding failure into a classified error. Type
// mismatches are reported against the offending field.
func DecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return shared.ValidationError(map[string]string{
			typeErr.Field: "The " + typeErr.Field + " field has an invalid type.",
		})
	}
	if errors.Is(err, io.EOF) {
		return &shared.Error{Kind: shared.KindConflict, Message: "Request body is required", Err: err}
	}
	return &shared.Error{Kind: shared.KindConflict, Message: "Malformed JSON body", Err: err}
}
