package templates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/grandlivre/grandlivre/internal/accounting/formula"
	"github.com/grandlivre/grandlivre/internal/accounting/journals"
	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

// VarType declares the expected type of a template variable.
type VarType string

const (
	VarDecimal VarType = "decimal"
	VarString  VarType = "string"
	VarDate    VarType = "date"
	VarUUID    VarType = "uuid"
)

// LineTemplate describes one line of a parameterized entry: side, account
// pattern, label, and the formula producing the amount.
type LineTemplate struct {
	Position       journals.LinePosition
	AccountPattern string
	Label          string
	Formula        string

	compiled *formula.Expr
}

// Template is a reusable recipe for a recurring business operation.
// Templates are read-only configuration; instantiation never mutates them.
type Template struct {
	Code            string
	Name            string
	Description     string
	Standard        string
	Country         string
	Category        string
	DefaultVATRate  decimal.Decimal
	DefaultCurrency string
	Variables       map[string]VarType
	Lines           []LineTemplate
	Keywords        []string
	DisplayOrder    int
}

// compile parses every line formula and checks it against the variable
// schema, so configuration defects surface at load time rather than at
// instantiation.
func (t *Template) compile() error {
	if t.Code == "" {
		return &shared.ValidationError{Template: t.Code, Field: "code", Reason: "required"}
	}
	if len(t.Lines) < 2 {
		return &shared.ValidationError{Template: t.Code, Field: "lines", Reason: "at least two lines required"}
	}
	for i := range t.Lines {
		line := &t.Lines[i]
		if line.Position != journals.PositionDebit && line.Position != journals.PositionCredit {
			return &shared.ValidationError{Template: t.Code, Field: line.AccountPattern, Reason: fmt.Sprintf("invalid position %q", line.Position)}
		}
		if line.AccountPattern == "" {
			return &shared.ValidationError{Template: t.Code, Field: fmt.Sprintf("line %d", i+1), Reason: "account pattern required"}
		}
		expr, err := formula.Compile(line.Formula)
		if err != nil {
			return fmt.Errorf("template %s line %d: %w", t.Code, i+1, err)
		}
		for _, name := range expr.Vars() {
			typ, ok := t.Variables[name]
			if !ok {
				return &shared.ValidationError{Template: t.Code, Field: name, Reason: "formula references undeclared variable"}
			}
			if typ != VarDecimal {
				return &shared.ValidationError{Template: t.Code, Field: name, Reason: fmt.Sprintf("formula variable must be decimal, is %s", typ)}
			}
		}
		line.compiled = expr
	}
	return nil
}

// requiredVars lists the variables any line formula references. These must
// be supplied at instantiation; other schema variables are metadata and
// only type-checked when present.
func (t *Template) requiredVars() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, line := range t.Lines {
		for _, name := range line.compiled.Vars() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Set is an immutable template registry loaded once per process and passed
// explicitly into the engine.
type Set struct {
	byCode  map[string]*Template
	ordered []*Template
}

// NewSet compiles the templates and builds the registry. A template that
// fails to compile rejects the whole set: broken configuration must not
// load partially.
func NewSet(tpls []Template) (*Set, error) {
	s := &Set{byCode: make(map[string]*Template, len(tpls))}
	for i := range tpls {
		t := tpls[i]
		if err := t.compile(); err != nil {
			return nil, err
		}
		if _, dup := s.byCode[t.Code]; dup {
			return nil, &shared.ValidationError{Template: t.Code, Field: "code", Reason: "duplicate template code"}
		}
		s.byCode[t.Code] = &t
		s.ordered = append(s.ordered, &t)
	}
	sort.SliceStable(s.ordered, func(i, j int) bool {
		return s.ordered[i].DisplayOrder < s.ordered[j].DisplayOrder
	})
	return s, nil
}

// Find returns the template with the given code.
func (s *Set) Find(code string) (*Template, error) {
	t, ok := s.byCode[code]
	if !ok {
		return nil, shared.ErrTemplateNotFound
	}
	return t, nil
}

// All returns templates in display order.
func (s *Set) All() []*Template {
	out := make([]*Template, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Recommend filters templates by standard and ranks them by how many
// keyword hits the operation text produces. Convenience lookup only; it is
// not part of the correctness-critical path.
func (s *Set) Recommend(standard, operation string) []*Template {
	needle := strings.ToLower(operation)
	type scored struct {
		tpl   *Template
		score int
	}
	var hits []scored
	for _, t := range s.ordered {
		if standard != "" && !strings.EqualFold(t.Standard, standard) {
			continue
		}
		score := 0
		for _, kw := range t.Keywords {
			if kw != "" && strings.Contains(needle, strings.ToLower(kw)) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{tpl: t, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]*Template, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.tpl)
	}
	return out
}
