package templates

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grandlivre/grandlivre/internal/accounting/chart"
	"github.com/grandlivre/grandlivre/internal/accounting/journals"
	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

func saleTemplate() Template {
	return Template{
		Code:            "VENTE_TVA_OHADA",
		Name:            "Vente de marchandises avec TVA",
		Standard:        "SYSCOHADA",
		Country:         "BF",
		Category:        "VENTE",
		DefaultCurrency: "XOF",
		Variables: map[string]VarType{
			"montant_ht":     VarDecimal,
			"taux_tva":       VarDecimal,
			"client_id":      VarUUID,
			"facture_numero": VarString,
		},
		Keywords: []string{"vente", "facturation", "client"},
		Lines: []LineTemplate{
			{Position: journals.PositionDebit, AccountPattern: "411%", Label: "Clients", Formula: "montant_ht * (1 + taux_tva)"},
			{Position: journals.PositionCredit, AccountPattern: "701%", Label: "Ventes de marchandises", Formula: "montant_ht"},
			{Position: journals.PositionCredit, AccountPattern: "4434%", Label: "TVA collectee", Formula: "montant_ht * taux_tva"},
		},
	}
}

func saleDirectory() *chart.Directory {
	return chart.NewDirectory([]chart.Account{
		{ID: 1, Code: "411000", Label: "Clients", Type: chart.AccountTypeAsset, IsActive: true},
		{ID: 2, Code: "701000", Label: "Ventes de marchandises", Type: chart.AccountTypeRevenue, IsActive: true},
		{ID: 3, Code: "443400", Label: "TVA collectee", Type: chart.AccountTypeLiability, IsActive: true},
	})
}

func newTestEngine(t *testing.T, tpls ...Template) *Engine {
	t.Helper()
	set, err := NewSet(tpls)
	if err != nil {
		t.Fatalf("build set: %v", err)
	}
	return NewEngine(set)
}

func TestInstantiateSaleWithVAT(t *testing.T) {
	engine := newTestEngine(t, saleTemplate())
	input, err := engine.Instantiate("VENTE_TVA_OHADA", saleDirectory(), map[string]any{
		"montant_ht": "100000",
		"taux_tva":   "0.18",
	}, InstantiateParams{
		EntryDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		PeriodID:  1,
		CompanyID: 1,
		ActorID:   7,
	})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if len(input.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(input.Lines))
	}
	expect := []struct {
		position journals.LinePosition
		code     string
		amount   string
	}{
		{journals.PositionDebit, "411000", "118000"},
		{journals.PositionCredit, "701000", "100000"},
		{journals.PositionCredit, "443400", "18000"},
	}
	var debit, credit decimal.Decimal
	for i, want := range expect {
		line := input.Lines[i]
		if line.Position != want.position || line.AccountCode != want.code {
			t.Fatalf("line %d: got %s %s", i, line.Position, line.AccountCode)
		}
		if !line.Amount.Equal(decimal.RequireFromString(want.amount)) {
			t.Fatalf("line %d: expected %s got %s", i, want.amount, line.Amount)
		}
		switch line.Position {
		case journals.PositionDebit:
			debit = debit.Add(line.Amount)
		case journals.PositionCredit:
			credit = credit.Add(line.Amount)
		}
	}
	if !debit.Equal(credit) || !debit.Equal(decimal.RequireFromString("118000")) {
		t.Fatalf("expected balanced totals of 118000, got %s / %s", debit, credit)
	}
	if input.Source != journals.SourceTemplate || input.TemplateID != "VENTE_TVA_OHADA" {
		t.Fatalf("unexpected source metadata: %s %s", input.Source, input.TemplateID)
	}
	if input.Currency != "XOF" {
		t.Fatalf("expected template default currency, got %s", input.Currency)
	}
}

func TestInstantiateMissingRequiredVariable(t *testing.T) {
	engine := newTestEngine(t, saleTemplate())
	_, err := engine.Instantiate("VENTE_TVA_OHADA", saleDirectory(), map[string]any{
		"montant_ht": "100000",
	}, InstantiateParams{EntryDate: time.Now(), PeriodID: 1, CompanyID: 1})
	var valErr *shared.ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "taux_tva" {
		t.Fatalf("expected validation error on taux_tva, got %v", err)
	}
}

func TestInstantiateRejectsUndeclaredVariable(t *testing.T) {
	engine := newTestEngine(t, saleTemplate())
	_, err := engine.Instantiate("VENTE_TVA_OHADA", saleDirectory(), map[string]any{
		"montant_ht": "100000",
		"taux_tva":   "0.18",
		"montan_ht":  "5",
	}, InstantiateParams{EntryDate: time.Now(), PeriodID: 1, CompanyID: 1})
	var valErr *shared.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInstantiateTypeChecksMetadataVariables(t *testing.T) {
	engine := newTestEngine(t, saleTemplate())
	_, err := engine.Instantiate("VENTE_TVA_OHADA", saleDirectory(), map[string]any{
		"montant_ht": "100000",
		"taux_tva":   "0.18",
		"client_id":  "not-a-uuid",
	}, InstantiateParams{EntryDate: time.Now(), PeriodID: 1, CompanyID: 1})
	var valErr *shared.ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "client_id" {
		t.Fatalf("expected validation error on client_id, got %v", err)
	}
}

func TestInstantiateUnbalancedTemplateFails(t *testing.T) {
	tpl := saleTemplate()
	tpl.Code = "VENTE_CASSEE"
	tpl.Lines[2].Formula = "montant_ht * taux_tva / 2"
	engine := newTestEngine(t, tpl)
	_, err := engine.Instantiate("VENTE_CASSEE", saleDirectory(), map[string]any{
		"montant_ht": "100000",
		"taux_tva":   "0.18",
	}, InstantiateParams{EntryDate: time.Now(), PeriodID: 1, CompanyID: 1})
	var imbErr *shared.ImbalancedEntryError
	if !errors.As(err, &imbErr) {
		t.Fatalf("expected ImbalancedEntryError, got %v", err)
	}
	if !imbErr.Delta.Equal(decimal.RequireFromString("9000")) {
		t.Fatalf("expected delta 9000, got %s", imbErr.Delta)
	}
}

func TestInstantiateDropsZeroLines(t *testing.T) {
	engine := newTestEngine(t, saleTemplate())
	input, err := engine.Instantiate("VENTE_TVA_OHADA", saleDirectory(), map[string]any{
		"montant_ht": "100000",
		"taux_tva":   "0",
	}, InstantiateParams{EntryDate: time.Now(), PeriodID: 1, CompanyID: 1})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if len(input.Lines) != 2 {
		t.Fatalf("expected zero VAT line to be dropped, got %d lines", len(input.Lines))
	}
}

func TestInstantiateUnresolvablePattern(t *testing.T) {
	engine := newTestEngine(t, saleTemplate())
	dir := chart.NewDirectory([]chart.Account{
		{ID: 1, Code: "411000", IsActive: true},
		{ID: 2, Code: "701000", IsActive: true},
	})
	_, err := engine.Instantiate("VENTE_TVA_OHADA", dir, map[string]any{
		"montant_ht": "100000",
		"taux_tva":   "0.18",
	}, InstantiateParams{EntryDate: time.Now(), PeriodID: 1, CompanyID: 1})
	if !errors.Is(err, shared.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestSetRejectsFormulaWithUndeclaredVariable(t *testing.T) {
	tpl := saleTemplate()
	tpl.Lines[0].Formula = "montant_ttc"
	if _, err := NewSet([]Template{tpl}); err == nil {
		t.Fatal("expected set construction to fail")
	}
}

func TestRecommendRanksByKeywordHits(t *testing.T) {
	sale := saleTemplate()
	purchase := saleTemplate()
	purchase.Code = "ACHAT_TVA_OHADA"
	purchase.Keywords = []string{"achat", "fournisseur"}
	engine := newTestEngine(t, sale, purchase)

	hits := engine.Set().Recommend("SYSCOHADA", "facturation client vente")
	if len(hits) != 1 || hits[0].Code != "VENTE_TVA_OHADA" {
		t.Fatalf("unexpected recommendation %v", hits)
	}
	if hits := engine.Set().Recommend("IFRS", "vente"); len(hits) != 0 {
		t.Fatalf("expected no hits for other standard, got %d", len(hits))
	}
}
