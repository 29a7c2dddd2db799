package statements

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grandlivre/grandlivre/internal/accounting/chart"
	"github.com/grandlivre/grandlivre/internal/accounting/formula"
	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

// Balances maps account code to net balance (debit minus credit), as
// produced by the trial balance aggregation.
type Balances map[string]decimal.Decimal

// Total sums every net balance. Zero means the underlying ledger balances.
func (b Balances) Total() decimal.Decimal {
	total := decimal.Zero
	for _, net := range b {
		total = total.Add(net)
	}
	return total
}

// sumPattern adds the net balances of every account whose code starts
// with the pattern prefix. Statement patterns aggregate; unlike journal
// line resolution they deliberately match whole code families.
func (b Balances) sumPattern(pattern string) decimal.Decimal {
	prefix := strings.TrimSuffix(pattern, chart.Wildcard)
	total := decimal.Zero
	for code, net := range b {
		if strings.HasPrefix(code, prefix) {
			total = total.Add(net)
		}
	}
	return total
}

// BuildParams carries the request context a statement embeds.
type BuildParams struct {
	PeriodID  int64
	CompanyID int64
	Prior     Balances // optional comparative column
}

// Mapper turns trial balance nets into financial statements using the
// configured mappings for one standard.
type Mapper struct {
	set *MappingSet
	now func() time.Time
}

// NewMapper builds a mapper over a validated mapping set.
func NewMapper(set *MappingSet) *Mapper {
	return &Mapper{set: set, now: time.Now}
}

// WithNow overrides the clock used for GeneratedAt stamps.
func (m *Mapper) WithNow(now func() time.Time) *Mapper {
	m.now = now
	return m
}

// Build computes one statement. The input must stem from a balanced
// ledger; an off-balance input is rejected before any line is computed
// so a broken extraction never produces a plausible-looking statement.
// Balance sheets additionally assert the closing identity
// assets = liabilities + equity after mapping.
func (m *Mapper) Build(t Type, balances Balances, params BuildParams) (Statement, error) {
	mapping, err := m.set.Mapping(t)
	if err != nil {
		return Statement{}, err
	}
	if delta := balances.Total(); !delta.IsZero() {
		return Statement{}, &shared.StatementImbalanceError{Standard: m.set.Standard, Delta: delta}
	}
	amounts, err := evaluate(mapping, balances)
	if err != nil {
		return Statement{}, err
	}
	var prior map[string]decimal.Decimal
	if params.Prior != nil {
		if delta := params.Prior.Total(); !delta.IsZero() {
			return Statement{}, &shared.StatementImbalanceError{Standard: m.set.Standard, Delta: delta}
		}
		if prior, err = evaluate(mapping, params.Prior); err != nil {
			return Statement{}, err
		}
	}

	stmt := Statement{
		Type:        t,
		Standard:    m.set.Standard,
		Country:     m.set.Country,
		PeriodID:    params.PeriodID,
		CompanyID:   params.CompanyID,
		GeneratedAt: m.now().UTC(),
	}
	sections := make(map[Section]decimal.Decimal)
	var order []Section
	for _, ln := range mapping.Lines() {
		line := Line{
			Code:    ln.LineCode,
			Label:   ln.Label,
			Section: ln.Section,
			Level:   ln.Level,
			Total:   ln.Total,
			Amount:  amounts[ln.LineCode],
		}
		if prior != nil {
			p := prior[ln.LineCode]
			line.Prior = &p
		}
		stmt.Lines = append(stmt.Lines, line)
		if !ln.Total {
			if _, seen := sections[ln.Section]; !seen {
				order = append(order, ln.Section)
			}
			sections[ln.Section] = sections[ln.Section].Add(line.Amount)
		}
	}
	for _, s := range order {
		stmt.Sections = append(stmt.Sections, SectionTotal{Section: s, Amount: sections[s]})
	}

	if t == TypeBalanceSheet {
		assets := sections[SectionAssets]
		funding := sections[SectionLiabilities].Add(sections[SectionEquity])
		if delta := assets.Sub(funding); !delta.IsZero() {
			return Statement{}, &shared.StatementImbalanceError{Standard: m.set.Standard, Delta: delta}
		}
	}
	stmt.Balanced = true
	return stmt, nil
}

// evaluate walks the mapping in dependency order so formula lines see
// the values of the lines they reference.
func evaluate(mapping *Mapping, balances Balances) (map[string]decimal.Decimal, error) {
	amounts := make(map[string]decimal.Decimal, len(mapping.lines))
	for _, ln := range mapping.lines {
		var value decimal.Decimal
		if expr, ok := mapping.compiled[ln.LineCode]; ok {
			vars := make(formula.Vars, len(ln.DependsOn))
			for _, dep := range ln.DependsOn {
				vars[dep] = amounts[dep]
			}
			v, err := expr.Eval(vars)
			if err != nil {
				return nil, &shared.MappingError{
					Standard: mapping.Standard,
					LineCode: ln.LineCode,
					Reason:   err.Error(),
				}
			}
			value = v
		} else {
			for _, pattern := range ln.AccountPatterns {
				value = value.Add(balances.sumPattern(pattern))
			}
			if ln.NormalSide == NormalCredit {
				value = value.Neg()
			}
		}
		amounts[ln.LineCode] = value
	}
	return amounts, nil
}
