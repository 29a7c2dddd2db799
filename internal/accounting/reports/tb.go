package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// LedgerLine is one journal line together with its entry's status, as read
// from the persistence boundary.
type LedgerLine struct {
	AccountID    int64
	AccountCode  string
	AccountLabel string
	AccountType  string
	EntryStatus  string
	Position     string
	Amount       decimal.Decimal
}

// Posted reports whether the line's entry has reached the posted set.
// Draft and annulled amounts never enter an aggregate.
func (l LedgerLine) Posted() bool {
	return l.EntryStatus == "VALIDATED" || l.EntryStatus == "CLOSED"
}

// AccountBalance is the net movement of one account over a period.
type AccountBalance struct {
	AccountID int64
	Code      string
	Label     string
	Type      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Net returns debit minus credit.
func (a AccountBalance) Net() decimal.Decimal {
	return a.Debit.Sub(a.Credit)
}

// classKey groups accounts by SYSCOHADA class (leading digit).
func classKey(code string) string {
	if code == "" {
		return ""
	}
	return code[:1]
}

// Aggregate sums posted lines into per-account balances. It is recomputed
// on demand from the entry set every time: no partial sums are cached
// across calls, so edited or reverted entries can never leave drift.
// Non-posted lines are skipped here even when the source query already
// filters on status, so the exclusion holds for any line source.
func Aggregate(lines []LedgerLine) []AccountBalance {
	byAccount := make(map[string]*AccountBalance)
	for _, line := range lines {
		if !line.Posted() {
			continue
		}
		bal, ok := byAccount[line.AccountCode]
		if !ok {
			bal = &AccountBalance{
				AccountID: line.AccountID,
				Code:      line.AccountCode,
				Label:     line.AccountLabel,
				Type:      line.AccountType,
				Debit:     decimal.Zero,
				Credit:    decimal.Zero,
			}
			byAccount[line.AccountCode] = bal
		}
		switch line.Position {
		case "DEBIT":
			bal.Debit = bal.Debit.Add(line.Amount)
		case "CREDIT":
			bal.Credit = bal.Credit.Add(line.Amount)
		}
	}
	out := make([]AccountBalance, 0, len(byAccount))
	for _, bal := range byAccount {
		out = append(out, *bal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// BalanceMap indexes net balances by account code, the input shape the
// statement mapper consumes.
func BalanceMap(balances []AccountBalance) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(balances))
	for _, bal := range balances {
		out[bal.Code] = bal.Net()
	}
	return out
}

// TrialBalanceRow is one account row in the rendered trial balance.
type TrialBalanceRow struct {
	Code   string
	Label  string
	Debit  decimal.Decimal
	Credit decimal.Decimal
	Net    decimal.Decimal
}

// TrialBalanceGroup aggregates rows of one account class.
type TrialBalanceGroup struct {
	Class  string
	Rows   []TrialBalanceRow
	Debit  decimal.Decimal
	Credit decimal.Decimal
	Net    decimal.Decimal
}

// TrialBalance is the grouped structure rendered in UI/PDF exports.
type TrialBalance struct {
	Groups      []TrialBalanceGroup
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether total debits equal total credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// BuildTrialBalance converts account balances into grouped rows.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	var keys []string
	for _, bal := range balances {
		key := classKey(bal.Code)
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Class: key, Debit: decimal.Zero, Credit: decimal.Zero, Net: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceRow{
			Code:   bal.Code,
			Label:  bal.Label,
			Debit:  bal.Debit,
			Credit: bal.Credit,
			Net:    bal.Net(),
		}
		grp.Rows = append(grp.Rows, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
		grp.Net = grp.Net.Add(row.Net)
	}

	sort.Strings(keys)
	result := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Rows, func(i, j int) bool { return grp.Rows[i].Code < grp.Rows[j].Code })
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}
