package statements

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grandlivre/grandlivre/internal/accounting/formula"
	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

// Mapping is the validated set of line mappings for one statement of one
// accounting standard, held in topological evaluation order.
type Mapping struct {
	Standard string
	Country  string
	Type     Type
	lines    []LineMapping // evaluation order
	display  []LineMapping // display order
	compiled map[string]*formula.Expr
}

// MappingSet indexes mappings by statement type for one standard.
type MappingSet struct {
	Standard string
	Country  string
	byType   map[Type]*Mapping
}

// NewMappingSet validates every mapping up front; a single bad line
// rejects the whole set so a misconfigured standard never half-loads.
func NewMappingSet(standard, country string, mappings []*Mapping) (*MappingSet, error) {
	if standard == "" {
		return nil, &shared.MappingError{Standard: standard, Reason: "standard is required"}
	}
	set := &MappingSet{Standard: standard, Country: country, byType: make(map[Type]*Mapping, len(mappings))}
	for _, m := range mappings {
		if _, dup := set.byType[m.Type]; dup {
			return nil, &shared.MappingError{Standard: standard, Reason: fmt.Sprintf("duplicate mapping for %s", m.Type)}
		}
		m.Standard = standard
		m.Country = country
		set.byType[m.Type] = m
	}
	return set, nil
}

// Mapping returns the mapping for a statement type.
func (s *MappingSet) Mapping(t Type) (*Mapping, error) {
	m, ok := s.byType[t]
	if !ok {
		return nil, &shared.MappingError{Standard: s.Standard, Reason: fmt.Sprintf("no mapping for %s", t)}
	}
	return m, nil
}

// Types lists the statement types the set covers, sorted for stable output.
func (s *MappingSet) Types() []Type {
	out := make([]Type, 0, len(s.byType))
	for t := range s.byType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewMapping validates line mappings and orders them topologically by
// DependsOn. Formula lines may only reference line codes they declare.
func NewMapping(t Type, lines []LineMapping) (*Mapping, error) {
	m := &Mapping{Type: t, compiled: make(map[string]*formula.Expr)}
	byCode := make(map[string]LineMapping, len(lines))
	for _, ln := range lines {
		if ln.LineCode == "" {
			return nil, &shared.MappingError{Reason: "line code is required"}
		}
		if _, dup := byCode[ln.LineCode]; dup {
			return nil, &shared.MappingError{LineCode: ln.LineCode, Reason: "duplicate line code"}
		}
		if ln.NormalSide != NormalDebit && ln.NormalSide != NormalCredit {
			return nil, &shared.MappingError{LineCode: ln.LineCode, Reason: fmt.Sprintf("invalid normal side %q", ln.NormalSide)}
		}
		hasPatterns := len(ln.AccountPatterns) > 0
		hasFormula := strings.TrimSpace(ln.Formula) != ""
		if hasPatterns == hasFormula {
			return nil, &shared.MappingError{LineCode: ln.LineCode, Reason: "exactly one of account patterns or formula is required"}
		}
		if hasFormula {
			expr, err := formula.Compile(ln.Formula)
			if err != nil {
				return nil, &shared.MappingError{LineCode: ln.LineCode, Reason: err.Error()}
			}
			declared := make(map[string]bool, len(ln.DependsOn))
			for _, dep := range ln.DependsOn {
				declared[dep] = true
			}
			for _, ref := range expr.Vars() {
				if !declared[ref] {
					return nil, &shared.MappingError{
						LineCode: ln.LineCode,
						Reason:   fmt.Sprintf("formula references %q outside depends_on", ref),
					}
				}
			}
			m.compiled[ln.LineCode] = expr
		} else if len(ln.DependsOn) > 0 {
			return nil, &shared.MappingError{LineCode: ln.LineCode, Reason: "depends_on requires a formula"}
		}
		byCode[ln.LineCode] = ln
	}
	for _, ln := range lines {
		for _, dep := range ln.DependsOn {
			if _, ok := byCode[dep]; !ok {
				return nil, &shared.MappingError{
					LineCode: ln.LineCode,
					Reason:   fmt.Sprintf("depends_on references unknown line %q", dep),
					Err:      shared.ErrUnknownLineRef,
				}
			}
		}
	}
	ordered, err := topoSort(lines)
	if err != nil {
		return nil, err
	}
	m.lines = ordered
	m.display = append([]LineMapping(nil), lines...)
	sort.SliceStable(m.display, func(i, j int) bool { return m.display[i].DisplayOrder < m.display[j].DisplayOrder })
	return m, nil
}

// Lines returns the mappings in display order.
func (m *Mapping) Lines() []LineMapping { return m.display }

// topoSort orders lines so every dependency is computed before its
// dependents. A cycle is a configuration error.
func topoSort(lines []LineMapping) ([]LineMapping, error) {
	byCode := make(map[string]LineMapping, len(lines))
	for _, ln := range lines {
		byCode[ln.LineCode] = ln
	}
	const (
		white = 0 // unvisited
		grey  = 1 // on stack
		black = 2 // done
	)
	state := make(map[string]int, len(lines))
	ordered := make([]LineMapping, 0, len(lines))
	var visit func(code string) error
	visit = func(code string) error {
		switch state[code] {
		case black:
			return nil
		case grey:
			return &shared.MappingError{LineCode: code, Reason: "dependency cycle", Err: shared.ErrMappingCycle}
		}
		state[code] = grey
		for _, dep := range byCode[code].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[code] = black
		ordered = append(ordered, byCode[code])
		return nil
	}
	for _, ln := range lines {
		if err := visit(ln.LineCode); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
