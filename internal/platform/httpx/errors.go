// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

// RespondError maps ledger errors to HTTP responses using RFC7807.
// Conflicting lifecycle writes surface as 409 so clients retry with a
// fresh read; well-formed requests the ledger cannot honour are 422.
func RespondError(w http.ResponseWriter, err error) {
	var (
		imbalance  *shared.ImbalancedEntryError
		transition *shared.InvalidTransitionError
		resolution *shared.ResolutionError
		evalErr    *shared.EvalError
		validation *shared.ValidationError
		mapping    *shared.MappingError
		stmtImb    *shared.StatementImbalanceError
	)
	switch {
	case errors.Is(err, shared.ErrEntryNotFound),
		errors.Is(err, shared.ErrPeriodNotFound),
		errors.Is(err, shared.ErrTemplateNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrPeriodLocked):
		Problem(w, http.StatusConflict, "Period Locked", err.Error())
	case errors.Is(err, shared.ErrTransitionConflict):
		Problem(w, http.StatusConflict, "Concurrent Update", err.Error())
	case errors.As(err, &transition), errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.As(err, &imbalance), errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrNoLines), errors.Is(err, shared.ErrZeroEntry),
		errors.Is(err, shared.ErrDateOutOfRange):
		Problem(w, http.StatusUnprocessableEntity, "Entry Rejected", err.Error())
	case errors.As(err, &resolution):
		Problem(w, http.StatusUnprocessableEntity, "Account Resolution Failed", err.Error())
	case errors.As(err, &validation), errors.As(err, &evalErr):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &mapping):
		Problem(w, http.StatusUnprocessableEntity, "Statement Mapping Invalid", err.Error())
	case errors.As(err, &stmtImb):
		Problem(w, http.StatusUnprocessableEntity, "Statement Imbalance", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
