package chart

import (
	"sort"
	"strings"

	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

// Wildcard terminates an account pattern, e.g. "411%".
const Wildcard = "%"

// Directory is an immutable snapshot of the account directory. It is built
// once per request (or cached by the caller) and is safe for concurrent use.
type Directory struct {
	byCode   map[string]Account
	accounts []Account
}

// NewDirectory builds a directory from the supplied accounts. Input order is
// irrelevant; lookups are deterministic.
func NewDirectory(accounts []Account) *Directory {
	d := &Directory{
		byCode:   make(map[string]Account, len(accounts)),
		accounts: make([]Account, len(accounts)),
	}
	copy(d.accounts, accounts)
	sort.Slice(d.accounts, func(i, j int) bool { return d.accounts[i].Code < d.accounts[j].Code })
	for _, a := range d.accounts {
		d.byCode[a.Code] = a
	}
	return d
}

// Get returns the account with the exact code.
func (d *Directory) Get(code string) (Account, bool) {
	a, ok := d.byCode[code]
	return a, ok
}

// Accounts returns the directory contents ordered by code.
func (d *Directory) Accounts() []Account {
	out := make([]Account, len(d.accounts))
	copy(out, d.accounts)
	return out
}

// Resolve maps a pattern to a single active account. A pattern is a literal
// code prefix optionally terminated by a wildcard. An exact match wins;
// otherwise the shortest matching code is the most specific. Several equally
// short matches mean the pattern is ambiguous, which is a configuration
// error and is reported rather than silently picked.
func (d *Directory) Resolve(pattern string) (Account, error) {
	prefix := strings.TrimSuffix(pattern, Wildcard)
	if prefix == "" {
		return Account{}, &shared.ResolutionError{Pattern: pattern}
	}

	if a, ok := d.byCode[prefix]; ok && a.IsActive {
		return a, nil
	}

	var matches []Account
	best := -1
	for _, a := range d.accounts {
		if !a.IsActive || !strings.HasPrefix(a.Code, prefix) {
			continue
		}
		switch {
		case best == -1 || len(a.Code) < best:
			best = len(a.Code)
			matches = matches[:0]
			matches = append(matches, a)
		case len(a.Code) == best:
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		return Account{}, &shared.ResolutionError{Pattern: pattern}
	case 1:
		return matches[0], nil
	default:
		codes := make([]string, 0, len(matches))
		for _, a := range matches {
			codes = append(codes, a.Code)
		}
		return Account{}, &shared.ResolutionError{Pattern: pattern, Matches: codes}
	}
}
