package journals

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus enumerates the entry lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "DRAFT"
	EntryStatusValidated EntryStatus = "VALIDATED"
	EntryStatusClosed    EntryStatus = "CLOSED"
)

// EntrySource records how an entry was produced.
type EntrySource string

const (
	SourceManual    EntrySource = "MANUAL"
	SourceTemplate  EntrySource = "TEMPLATE"
	SourceGenerated EntrySource = "GENERATED"
	SourceAI        EntrySource = "AI"
)

// LinePosition is the debit/credit side of a ledger line.
type LinePosition string

const (
	PositionDebit  LinePosition = "DEBIT"
	PositionCredit LinePosition = "CREDIT"
)

// Line is one debit or credit movement inside an entry. Lines belong to
// exactly one entry and never carry a zero amount: zero lines are dropped
// before an entry is assembled, not stored.
type Line struct {
	ID           int64
	EntryID      int64
	Position     LinePosition
	AccountID    int64
	AccountCode  string
	AccountLabel string
	Amount       decimal.Decimal
	Label        string
	Ordinal      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Entry is one accounting transaction. TotalDebit and TotalCredit are
// derived from the lines and are never set independently by a caller.
type Entry struct {
	ID          int64
	PieceNumber string
	EntryDate   time.Time
	PieceDate   time.Time
	Label       string
	Reference   string
	Currency    string
	Source      EntrySource
	Status      EntryStatus
	PeriodID    int64
	CompanyID   int64
	TemplateID  string
	CreatedBy   int64
	ValidatedBy *int64
	ValidatedAt *time.Time
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Lines       []Line
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ComputeTotals recomputes the derived totals from the lines. It is called
// after every line mutation while the entry is a draft.
func (e *Entry) ComputeTotals() {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		switch l.Position {
		case PositionDebit:
			debit = debit.Add(l.Amount)
		case PositionCredit:
			credit = credit.Add(l.Amount)
		}
	}
	e.TotalDebit = debit
	e.TotalCredit = credit
}

// Balanced reports whether debits equal credits exactly.
func (e *Entry) Balanced() bool {
	return e.TotalDebit.Equal(e.TotalCredit)
}

// Delta returns totalDebit - totalCredit.
func (e *Entry) Delta() decimal.Decimal {
	return e.TotalDebit.Sub(e.TotalCredit)
}

// Posted reports whether the entry's amounts qualify for aggregation.
func (e *Entry) Posted() bool {
	return e.Status == EntryStatusValidated || e.Status == EntryStatusClosed
}

// canTransition encodes the legal lifecycle moves. CLOSED is terminal; the
// VALIDATED -> DRAFT edge (annulation) is still subject to the period gate
// checked by the service.
func canTransition(from, to EntryStatus) bool {
	switch from {
	case EntryStatusDraft:
		return to == EntryStatusValidated
	case EntryStatusValidated:
		return to == EntryStatusClosed || to == EntryStatusDraft
	default:
		return false
	}
}
