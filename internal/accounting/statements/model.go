package statements

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type identifies a standardized financial statement.
type Type string

const (
	TypeBalanceSheet    Type = "BALANCE_SHEET"
	TypeIncomeStatement Type = "INCOME_STATEMENT"
	TypeCashFlow        Type = "CASH_FLOW"
)

// Section groups statement lines for presentation and for the closing
// identity check.
type Section string

const (
	SectionAssets      Section = "ASSETS"
	SectionLiabilities Section = "LIABILITIES"
	SectionEquity      Section = "EQUITY"
	SectionRevenue     Section = "REVENUE"
	SectionExpenses    Section = "EXPENSES"
	SectionOperating   Section = "OPERATING"
	SectionInvesting   Section = "INVESTING"
	SectionFinancing   Section = "FINANCING"
)

// NormalSide is the balance side on which a line's accounts normally sit.
// Debit-normal lines render +net, credit-normal lines render -net, so
// liabilities, equity, and revenue read as positive figures.
type NormalSide string

const (
	NormalDebit  NormalSide = "DEBIT"
	NormalCredit NormalSide = "CREDIT"
)

// LineMapping declares how one statement line is computed: either by
// summing account balances matching patterns, or by a formula over other
// line codes declared in DependsOn.
type LineMapping struct {
	LineCode        string
	Label           string
	Section         Section
	AccountPatterns []string
	Formula         string
	DependsOn       []string
	NormalSide      NormalSide
	Level           int
	Total           bool
	DisplayOrder    int
}

// Line is one computed statement line.
type Line struct {
	Code    string
	Label   string
	Section Section
	Level   int
	Total   bool
	Amount  decimal.Decimal
	Prior   *decimal.Decimal
}

// SectionTotal is the computed total of one section.
type SectionTotal struct {
	Section Section
	Amount  decimal.Decimal
}

// Statement is a plain nested value object, safe to serialize, consumed
// by PDF/export collaborators.
type Statement struct {
	Type        Type
	Standard    string
	Country     string
	PeriodID    int64
	CompanyID   int64
	GeneratedAt time.Time
	Lines       []Line
	Sections    []SectionTotal
	Balanced    bool
}

// SectionAmount returns the computed total for a section, zero when the
// statement has no such section.
func (s Statement) SectionAmount(section Section) decimal.Decimal {
	for _, t := range s.Sections {
		if t.Section == section {
			return t.Amount
		}
	}
	return decimal.Zero
}
