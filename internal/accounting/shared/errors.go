package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: entry lines must balance")
	// ErrNoLines indicates an entry without postable lines.
	ErrNoLines = errors.New("accounting: entry has no lines")
	// ErrZeroEntry indicates an entry whose totals are zero.
	ErrZeroEntry = errors.New("accounting: entry totals are zero")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("accounting: entry not found")
	// ErrPeriodNotFound indicates a missing period.
	ErrPeriodNotFound = errors.New("accounting: period not found")
	// ErrPeriodLocked indicates a locked period.
	ErrPeriodLocked = errors.New("accounting: period locked")
	// ErrDateOutOfRange indicates an entry date outside its period.
	ErrDateOutOfRange = errors.New("accounting: date outside period")
	// ErrInvalidTransition indicates an illegal lifecycle transition.
	ErrInvalidTransition = errors.New("accounting: invalid status transition")
	// ErrTransitionConflict indicates a concurrent transition won.
	ErrTransitionConflict = errors.New("accounting: concurrent transition conflict")
	// ErrAccountNotFound indicates no account matches a pattern.
	ErrAccountNotFound = errors.New("accounting: no account matches pattern")
	// ErrAmbiguousPattern indicates several equally specific matches.
	ErrAmbiguousPattern = errors.New("accounting: ambiguous account pattern")
	// ErrTemplateNotFound indicates a missing entry template.
	ErrTemplateNotFound = errors.New("accounting: template not found")
	// ErrMappingCycle indicates cyclic statement line dependencies.
	ErrMappingCycle = errors.New("accounting: statement mapping cycle")
	// ErrUnknownLineRef indicates a formula referencing an unmapped line.
	ErrUnknownLineRef = errors.New("accounting: unknown statement line reference")
	// ErrStatementImbalance indicates the closing identity failed.
	ErrStatementImbalance = errors.New("accounting: statement does not balance")
)

// ImbalancedEntryError reports a debit/credit mismatch together with the
// offending entry and the exact delta so callers can render it directly.
type ImbalancedEntryError struct {
	PieceNumber string
	Delta       decimal.Decimal
}

func (e *ImbalancedEntryError) Error() string {
	if e.PieceNumber == "" {
		return fmt.Sprintf("accounting: entry lines must balance (delta %s)", e.Delta)
	}
	return fmt.Sprintf("accounting: entry %s must balance (delta %s)", e.PieceNumber, e.Delta)
}

func (e *ImbalancedEntryError) Unwrap() error { return ErrUnbalanced }

// InvalidTransitionError reports an illegal lifecycle transition attempt.
type InvalidTransitionError struct {
	PieceNumber string
	From        string
	To          string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("accounting: entry %s cannot transition %s -> %s", e.PieceNumber, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ResolutionError reports a failed or ambiguous account pattern lookup.
type ResolutionError struct {
	Pattern string
	Matches []string
}

func (e *ResolutionError) Error() string {
	if len(e.Matches) > 1 {
		return fmt.Sprintf("accounting: pattern %q matches %d accounts equally", e.Pattern, len(e.Matches))
	}
	return fmt.Sprintf("accounting: no account matches pattern %q", e.Pattern)
}

func (e *ResolutionError) Unwrap() error {
	if len(e.Matches) > 1 {
		return ErrAmbiguousPattern
	}
	return ErrAccountNotFound
}

// EvalError reports a formula evaluation failure.
type EvalError struct {
	Expr   string
	Reason string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("accounting: formula %q: %s", e.Expr, e.Reason)
}

// ValidationError reports template variable schema violations.
type ValidationError struct {
	Template string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("accounting: template %s variable %q: %s", e.Template, e.Field, e.Reason)
}

// MappingError reports a statement mapping configuration defect. Err
// carries an optional sentinel (ErrMappingCycle, ErrUnknownLineRef).
type MappingError struct {
	Standard string
	LineCode string
	Reason   string
	Err      error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("accounting: mapping %s/%s: %s", e.Standard, e.LineCode, e.Reason)
}

func (e *MappingError) Unwrap() error { return e.Err }

// StatementImbalanceError reports a violated closing identity with its delta.
type StatementImbalanceError struct {
	Standard string
	Delta    decimal.Decimal
}

func (e *StatementImbalanceError) Error() string {
	return fmt.Sprintf("accounting: %s balance sheet off by %s", e.Standard, e.Delta)
}

func (e *StatementImbalanceError) Unwrap() error { return ErrStatementImbalance }
