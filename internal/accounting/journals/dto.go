package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineInput describes one line of a draft entry.
type LineInput struct {
	Position    LinePosition
	AccountID   int64
	AccountCode string
	Label       string
	Amount      decimal.Decimal
}

// CreateEntryInput groups the fields required to create a draft entry.
type CreateEntryInput struct {
	EntryDate  time.Time
	PieceDate  time.Time
	Label      string
	Reference  string
	Currency   string
	Source     EntrySource
	TemplateID string
	PeriodID   int64
	CompanyID  int64
	CreatedBy  int64
	Lines      []LineInput
}

// UpdateLinesInput replaces the lines of a draft entry.
type UpdateLinesInput struct {
	EntryID int64
	ActorID int64
	Lines   []LineInput
}

// TransitionInput wraps parameters for a lifecycle transition.
type TransitionInput struct {
	EntryID int64
	ActorID int64
}

// Validate checks basic structural rules for a draft. Balance is not
// required here: drafts may be saved imbalanced and fixed later; the
// validate transition is where the invariant is enforced.
func (in CreateEntryInput) Validate() error {
	if in.PeriodID == 0 {
		return errors.New("accounting: period required")
	}
	if in.CompanyID == 0 {
		return errors.New("accounting: company required")
	}
	if in.Label == "" {
		return errors.New("accounting: label required")
	}
	if in.Currency == "" {
		return errors.New("accounting: currency required")
	}
	switch in.Source {
	case SourceManual, SourceTemplate, SourceGenerated, SourceAI:
	default:
		return fmt.Errorf("accounting: unknown source %q", in.Source)
	}
	return validateLines(in.Lines)
}

func validateLines(lines []LineInput) error {
	for idx, line := range lines {
		if line.AccountID == 0 && line.AccountCode == "" {
			return fmt.Errorf("accounting: line %d missing account", idx)
		}
		if line.Amount.IsNegative() {
			return fmt.Errorf("accounting: line %d negative amount", idx)
		}
		if line.Position != PositionDebit && line.Position != PositionCredit {
			return fmt.Errorf("accounting: line %d invalid position %q", idx, line.Position)
		}
	}
	return nil
}

// normalizeLines drops zero-amount lines and assigns ordinals in declared
// order. Zero lines are never stored.
func normalizeLines(lines []LineInput) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		if line.Amount.IsZero() {
			continue
		}
		out = append(out, line)
	}
	return out
}
