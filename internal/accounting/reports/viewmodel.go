package reports

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts for display with locale-aware grouping.
// Formatting is presentation only; the decimal values stay exact.
type Formatter struct {
	printer  *message.Printer
	currency string
}

// NewFormatter builds a formatter for the BCP 47 locale tag, falling back
// to French (the OHADA zone default) when the tag does not parse.
func NewFormatter(locale, currency string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.French
	}
	return &Formatter{printer: message.NewPrinter(tag), currency: currency}
}

// Amount renders a decimal with thousands grouping and the currency code.
// The sign is taken from the decimal before the whole/fraction split, so
// amounts between -1 and 0 keep their minus.
func (f *Formatter) Amount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	abs := d.Abs()
	whole := abs.IntPart()
	frac := abs.Sub(decimal.NewFromInt(whole))
	if frac.IsZero() {
		return f.printer.Sprintf("%s%d %s", sign, whole, f.currency)
	}
	return f.printer.Sprintf("%s%d%s %s", sign, whole, frac.String()[1:], f.currency)
}

// TrialBalanceView pairs the raw trial balance with rendered totals.
type TrialBalanceView struct {
	TrialBalance
	TotalDebitDisplay  string
	TotalCreditDisplay string
}

// NewTrialBalanceView renders display strings for the trial balance.
func NewTrialBalanceView(tb TrialBalance, f *Formatter) TrialBalanceView {
	return TrialBalanceView{
		TrialBalance:       tb,
		TotalDebitDisplay:  f.Amount(tb.TotalDebit),
		TotalCreditDisplay: f.Amount(tb.TotalCredit),
	}
}
