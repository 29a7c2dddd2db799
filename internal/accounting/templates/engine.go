package templates

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grandlivre/grandlivre/internal/accounting/chart"
	"github.com/grandlivre/grandlivre/internal/accounting/formula"
	"github.com/grandlivre/grandlivre/internal/accounting/journals"
	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

// InstantiateParams carries the entry header fields the template itself
// does not know.
type InstantiateParams struct {
	EntryDate time.Time
	PieceDate time.Time
	Reference string
	PeriodID  int64
	CompanyID int64
	ActorID   int64
}

// Engine instantiates balanced draft entries from templates plus a chart
// directory snapshot. It holds no mutable state and is safe for concurrent
// use.
type Engine struct {
	set *Set
}

// NewEngine builds an engine over an immutable template set.
func NewEngine(set *Set) *Engine {
	return &Engine{set: set}
}

// Set exposes the underlying registry for lookups.
func (e *Engine) Set() *Set { return e.set }

// Instantiate resolves and evaluates the template's lines in declared
// order and assembles a draft entry input. An unbalanced result is a
// configuration bug and fails instantiation rather than producing an
// invalid entry. Zero-amount lines are dropped.
func (e *Engine) Instantiate(code string, dir *chart.Directory, values map[string]any, params InstantiateParams) (journals.CreateEntryInput, error) {
	tpl, err := e.set.Find(code)
	if err != nil {
		return journals.CreateEntryInput{}, err
	}
	vars, err := coerceValues(tpl, values)
	if err != nil {
		return journals.CreateEntryInput{}, err
	}

	debit, credit := decimal.Zero, decimal.Zero
	lines := make([]journals.LineInput, 0, len(tpl.Lines))
	for i, lt := range tpl.Lines {
		account, err := dir.Resolve(lt.AccountPattern)
		if err != nil {
			return journals.CreateEntryInput{}, fmt.Errorf("template %s line %d: %w", tpl.Code, i+1, err)
		}
		amount, err := lt.compiled.Eval(vars)
		if err != nil {
			return journals.CreateEntryInput{}, fmt.Errorf("template %s line %d: %w", tpl.Code, i+1, err)
		}
		if amount.IsNegative() {
			return journals.CreateEntryInput{}, &shared.ValidationError{Template: tpl.Code, Field: lt.AccountPattern, Reason: fmt.Sprintf("formula produced negative amount %s", amount)}
		}
		if amount.IsZero() {
			continue
		}
		switch lt.Position {
		case journals.PositionDebit:
			debit = debit.Add(amount)
		case journals.PositionCredit:
			credit = credit.Add(amount)
		}
		lines = append(lines, journals.LineInput{
			Position:    lt.Position,
			AccountID:   account.ID,
			AccountCode: account.Code,
			Label:       lt.Label,
			Amount:      amount,
		})
	}
	if len(lines) == 0 {
		return journals.CreateEntryInput{}, shared.ErrNoLines
	}
	if !debit.Equal(credit) {
		return journals.CreateEntryInput{}, &shared.ImbalancedEntryError{Delta: debit.Sub(credit)}
	}

	currency := tpl.DefaultCurrency
	return journals.CreateEntryInput{
		EntryDate:  params.EntryDate,
		PieceDate:  params.PieceDate,
		Label:      tpl.Name,
		Reference:  params.Reference,
		Currency:   currency,
		Source:     journals.SourceTemplate,
		TemplateID: tpl.Code,
		PeriodID:   params.PeriodID,
		CompanyID:  params.CompanyID,
		CreatedBy:  params.ActorID,
		Lines:      lines,
	}, nil
}

// coerceValues checks the supplied values against the template's variable
// schema. Every variable a formula references must be present; other
// schema variables are optional metadata. Unknown names are rejected so a
// typo cannot silently drop an amount.
func coerceValues(tpl *Template, values map[string]any) (formula.Vars, error) {
	for name := range values {
		if _, ok := tpl.Variables[name]; !ok {
			return nil, &shared.ValidationError{Template: tpl.Code, Field: name, Reason: "not declared in template schema"}
		}
	}
	for _, name := range tpl.requiredVars() {
		if _, ok := values[name]; !ok {
			return nil, &shared.ValidationError{Template: tpl.Code, Field: name, Reason: "required variable missing"}
		}
	}
	vars := make(formula.Vars)
	for name, typ := range tpl.Variables {
		raw, ok := values[name]
		if !ok {
			continue
		}
		switch typ {
		case VarDecimal:
			d, err := toDecimal(raw)
			if err != nil {
				return nil, &shared.ValidationError{Template: tpl.Code, Field: name, Reason: err.Error()}
			}
			vars[name] = d
		case VarString:
			if _, ok := raw.(string); !ok {
				return nil, &shared.ValidationError{Template: tpl.Code, Field: name, Reason: fmt.Sprintf("expected string, got %T", raw)}
			}
		case VarDate:
			if err := checkDate(raw); err != nil {
				return nil, &shared.ValidationError{Template: tpl.Code, Field: name, Reason: err.Error()}
			}
		case VarUUID:
			if err := checkUUID(raw); err != nil {
				return nil, &shared.ValidationError{Template: tpl.Code, Field: name, Reason: err.Error()}
			}
		default:
			return nil, &shared.ValidationError{Template: tpl.Code, Field: name, Reason: fmt.Sprintf("unknown variable type %q", typ)}
		}
	}
	return vars, nil
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("not a decimal: %q", v)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		// JSON numbers arrive as float64; convert through the string form
		// to keep the caller's written precision.
		return decimal.NewFromString(fmt.Sprintf("%v", v))
	default:
		return decimal.Zero, fmt.Errorf("expected decimal, got %T", raw)
	}
}

func checkDate(raw any) error {
	switch v := raw.(type) {
	case time.Time:
		return nil
	case string:
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return fmt.Errorf("not a date: %q", v)
		}
		return nil
	default:
		return fmt.Errorf("expected date, got %T", raw)
	}
}

func checkUUID(raw any) error {
	switch v := raw.(type) {
	case uuid.UUID:
		return nil
	case string:
		if _, err := uuid.Parse(v); err != nil {
			return fmt.Errorf("not a uuid: %q", v)
		}
		return nil
	default:
		return fmt.Errorf("expected uuid, got %T", raw)
	}
}
