package chart

import (
	"errors"
	"testing"

	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

func testDirectory() *Directory {
	return NewDirectory([]Account{
		{ID: 1, Code: "411000", Label: "Clients", Type: AccountTypeAsset, IsActive: true},
		{ID: 2, Code: "411100", Label: "Clients - groupe", Type: AccountTypeAsset, IsActive: true},
		{ID: 3, Code: "701000", Label: "Ventes de marchandises", Type: AccountTypeRevenue, IsActive: true},
		{ID: 4, Code: "443400", Label: "TVA collectee", Type: AccountTypeLiability, IsActive: true},
		{ID: 5, Code: "401000", Label: "Fournisseurs", Type: AccountTypeLiability, IsActive: false},
	})
}

func TestResolvePrefixPicksMostSpecific(t *testing.T) {
	d := testDirectory()
	acc, err := d.Resolve("411%")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if acc.Code != "411000" {
		t.Fatalf("expected 411000, got %s", acc.Code)
	}
}

func TestResolveExactMatchWins(t *testing.T) {
	d := testDirectory()
	acc, err := d.Resolve("411100")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if acc.ID != 2 {
		t.Fatalf("expected account 2, got %d", acc.ID)
	}
}

func TestResolveSkipsInactiveAccounts(t *testing.T) {
	d := testDirectory()
	if _, err := d.Resolve("401%"); !errors.Is(err, shared.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestResolveAmbiguousPattern(t *testing.T) {
	d := NewDirectory([]Account{
		{ID: 1, Code: "411000", IsActive: true},
		{ID: 2, Code: "411900", IsActive: true},
	})
	_, err := d.Resolve("411%")
	if !errors.Is(err, shared.ErrAmbiguousPattern) {
		t.Fatalf("expected ErrAmbiguousPattern, got %v", err)
	}
	var resErr *shared.ResolutionError
	if !errors.As(err, &resErr) || len(resErr.Matches) != 2 {
		t.Fatalf("expected two reported matches, got %v", err)
	}
}

func TestResolveUnknownPattern(t *testing.T) {
	d := testDirectory()
	if _, err := d.Resolve("999%"); !errors.Is(err, shared.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestResolveEmptyPattern(t *testing.T) {
	d := testDirectory()
	if _, err := d.Resolve("%"); err == nil {
		t.Fatal("expected error for bare wildcard")
	}
}
