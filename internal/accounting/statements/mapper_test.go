package statements

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// saleBalances is the net image of one validated SYSCOHADA sale plus a
// capital contribution: sum of nets is zero.
func saleBalances() Balances {
	return Balances{
		"101000": dec("-50000"),
		"521000": dec("50000"),
		"411000": dec("118000"),
		"701000": dec("-100000"),
		"443400": dec("-18000"),
	}
}

func balanceSheetLines() []LineMapping {
	return []LineMapping{
		{LineCode: "BT_CLIENTS", Label: "Clients", Section: SectionAssets, AccountPatterns: []string{"41%"}, NormalSide: NormalDebit, DisplayOrder: 1},
		{LineCode: "BT_TRESORERIE", Label: "Trésorerie-Actif", Section: SectionAssets, AccountPatterns: []string{"5%"}, NormalSide: NormalDebit, DisplayOrder: 2},
		{LineCode: "TOTAL_ACTIF", Label: "Total Actif", Section: SectionAssets, Formula: "BT_CLIENTS + BT_TRESORERIE", DependsOn: []string{"BT_CLIENTS", "BT_TRESORERIE"}, NormalSide: NormalDebit, Total: true, DisplayOrder: 3},
		{LineCode: "CP_CAPITAL", Label: "Capital", Section: SectionEquity, AccountPatterns: []string{"10%"}, NormalSide: NormalCredit, DisplayOrder: 4},
		{LineCode: "CP_RESULTAT", Label: "Résultat net de l'exercice", Section: SectionEquity, AccountPatterns: []string{"6%", "7%"}, NormalSide: NormalCredit, DisplayOrder: 5},
		{LineCode: "DT_FISCALES", Label: "Dettes fiscales", Section: SectionLiabilities, AccountPatterns: []string{"44%"}, NormalSide: NormalCredit, DisplayOrder: 6},
		{LineCode: "TOTAL_PASSIF", Label: "Total Passif", Section: SectionLiabilities, Formula: "CP_CAPITAL + CP_RESULTAT + DT_FISCALES", DependsOn: []string{"CP_CAPITAL", "CP_RESULTAT", "DT_FISCALES"}, NormalSide: NormalCredit, Total: true, DisplayOrder: 7},
	}
}

func testSet(t *testing.T, mappings ...*Mapping) *MappingSet {
	t.Helper()
	set, err := NewMappingSet("SYSCOHADA", "CI", mappings)
	if err != nil {
		t.Fatalf("NewMappingSet: %v", err)
	}
	return set
}

func mustMapping(t *testing.T, typ Type, lines []LineMapping) *Mapping {
	t.Helper()
	m, err := NewMapping(typ, lines)
	if err != nil {
		t.Fatalf("NewMapping(%s): %v", typ, err)
	}
	return m
}

func TestBuildBalanceSheet(t *testing.T) {
	set := testSet(t, mustMapping(t, TypeBalanceSheet, balanceSheetLines()))
	at := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	mapper := NewMapper(set).WithNow(func() time.Time { return at })

	stmt, err := mapper.Build(TypeBalanceSheet, saleBalances(), BuildParams{PeriodID: 7, CompanyID: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !stmt.Balanced {
		t.Fatal("statement should be balanced")
	}
	if stmt.Standard != "SYSCOHADA" || stmt.Country != "CI" {
		t.Fatalf("standard/country = %s/%s", stmt.Standard, stmt.Country)
	}
	if !stmt.GeneratedAt.Equal(at) {
		t.Fatalf("GeneratedAt = %s", stmt.GeneratedAt)
	}
	want := map[string]string{
		"BT_CLIENTS":    "118000",
		"BT_TRESORERIE": "50000",
		"TOTAL_ACTIF":   "168000",
		"CP_CAPITAL":    "50000",
		"CP_RESULTAT":   "100000",
		"DT_FISCALES":   "18000",
		"TOTAL_PASSIF":  "168000",
	}
	if len(stmt.Lines) != len(want) {
		t.Fatalf("got %d lines", len(stmt.Lines))
	}
	for _, ln := range stmt.Lines {
		if !ln.Amount.Equal(dec(want[ln.Code])) {
			t.Errorf("%s = %s, want %s", ln.Code, ln.Amount, want[ln.Code])
		}
	}
	if got := stmt.SectionAmount(SectionAssets); !got.Equal(dec("168000")) {
		t.Fatalf("assets total = %s", got)
	}
	// Total lines stay out of section arithmetic.
	funding := stmt.SectionAmount(SectionEquity).Add(stmt.SectionAmount(SectionLiabilities))
	if !funding.Equal(dec("168000")) {
		t.Fatalf("funding total = %s", funding)
	}
}

func TestBuildRejectsUnbalancedInput(t *testing.T) {
	set := testSet(t, mustMapping(t, TypeBalanceSheet, balanceSheetLines()))
	_, err := NewMapper(set).Build(TypeBalanceSheet, Balances{"411000": dec("100")}, BuildParams{})
	var imb *shared.StatementImbalanceError
	if !errors.As(err, &imb) {
		t.Fatalf("err = %v", err)
	}
	if !imb.Delta.Equal(dec("100")) {
		t.Fatalf("delta = %s", imb.Delta)
	}
}

func TestBuildClosingIdentityViolation(t *testing.T) {
	// Same ledger, but the mapping forgets the tax liability line: the
	// trial balance is fine yet the statement cannot close.
	lines := []LineMapping{
		{LineCode: "BT_CLIENTS", Section: SectionAssets, AccountPatterns: []string{"41%"}, NormalSide: NormalDebit},
		{LineCode: "BT_TRESORERIE", Section: SectionAssets, AccountPatterns: []string{"5%"}, NormalSide: NormalDebit},
		{LineCode: "CP_CAPITAL", Section: SectionEquity, AccountPatterns: []string{"10%"}, NormalSide: NormalCredit},
		{LineCode: "CP_RESULTAT", Section: SectionEquity, AccountPatterns: []string{"6%", "7%"}, NormalSide: NormalCredit},
	}
	set := testSet(t, mustMapping(t, TypeBalanceSheet, lines))
	_, err := NewMapper(set).Build(TypeBalanceSheet, saleBalances(), BuildParams{})
	var imb *shared.StatementImbalanceError
	if !errors.As(err, &imb) {
		t.Fatalf("err = %v", err)
	}
	if !imb.Delta.Equal(dec("18000")) {
		t.Fatalf("delta = %s", imb.Delta)
	}
}

func TestBuildIncomeStatement(t *testing.T) {
	lines := []LineMapping{
		{LineCode: "CA", Label: "Chiffre d'affaires", Section: SectionRevenue, AccountPatterns: []string{"70%"}, NormalSide: NormalCredit, DisplayOrder: 1},
		{LineCode: "CHARGES", Label: "Charges d'exploitation", Section: SectionExpenses, AccountPatterns: []string{"6%"}, NormalSide: NormalDebit, DisplayOrder: 2},
		{LineCode: "RESULTAT", Label: "Résultat net", Section: SectionRevenue, Formula: "CA - CHARGES", DependsOn: []string{"CA", "CHARGES"}, NormalSide: NormalCredit, Total: true, DisplayOrder: 3},
	}
	set := testSet(t, mustMapping(t, TypeIncomeStatement, lines))
	stmt, err := NewMapper(set).Build(TypeIncomeStatement, saleBalances(), BuildParams{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	byCode := make(map[string]decimal.Decimal)
	for _, ln := range stmt.Lines {
		byCode[ln.Code] = ln.Amount
	}
	if !byCode["CA"].Equal(dec("100000")) {
		t.Fatalf("CA = %s", byCode["CA"])
	}
	if !byCode["CHARGES"].IsZero() {
		t.Fatalf("CHARGES = %s", byCode["CHARGES"])
	}
	if !byCode["RESULTAT"].Equal(dec("100000")) {
		t.Fatalf("RESULTAT = %s", byCode["RESULTAT"])
	}
}

func TestBuildPriorColumn(t *testing.T) {
	set := testSet(t, mustMapping(t, TypeBalanceSheet, balanceSheetLines()))
	prior := Balances{
		"101000": dec("-50000"),
		"521000": dec("50000"),
	}
	stmt, err := NewMapper(set).Build(TypeBalanceSheet, saleBalances(), BuildParams{Prior: prior})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, ln := range stmt.Lines {
		if ln.Prior == nil {
			t.Fatalf("line %s has no prior column", ln.Code)
		}
		if ln.Code == "CP_CAPITAL" && !ln.Prior.Equal(dec("50000")) {
			t.Fatalf("prior capital = %s", ln.Prior)
		}
		if ln.Code == "BT_CLIENTS" && !ln.Prior.IsZero() {
			t.Fatalf("prior clients = %s", ln.Prior)
		}
	}
}

func TestNewMappingCycle(t *testing.T) {
	lines := []LineMapping{
		{LineCode: "A", Section: SectionAssets, Formula: "B + 1", DependsOn: []string{"B"}, NormalSide: NormalDebit},
		{LineCode: "B", Section: SectionAssets, Formula: "A + 1", DependsOn: []string{"A"}, NormalSide: NormalDebit},
	}
	_, err := NewMapping(TypeBalanceSheet, lines)
	if !errors.Is(err, shared.ErrMappingCycle) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewMappingUnknownDependency(t *testing.T) {
	lines := []LineMapping{
		{LineCode: "A", Section: SectionAssets, Formula: "X", DependsOn: []string{"X"}, NormalSide: NormalDebit},
	}
	_, err := NewMapping(TypeBalanceSheet, lines)
	if !errors.Is(err, shared.ErrUnknownLineRef) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewMappingFormulaOutsideDependsOn(t *testing.T) {
	lines := []LineMapping{
		{LineCode: "A", Section: SectionAssets, AccountPatterns: []string{"2%"}, NormalSide: NormalDebit},
		{LineCode: "B", Section: SectionAssets, Formula: "A", NormalSide: NormalDebit},
	}
	_, err := NewMapping(TypeBalanceSheet, lines)
	var mapErr *shared.MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewMappingRejectsPatternAndFormula(t *testing.T) {
	lines := []LineMapping{
		{LineCode: "A", Section: SectionAssets, AccountPatterns: []string{"2%"}, Formula: "1 + 1", NormalSide: NormalDebit},
	}
	if _, err := NewMapping(TypeBalanceSheet, lines); err == nil {
		t.Fatal("expected rejection")
	}
}

func TestMappingSetUnknownType(t *testing.T) {
	set := testSet(t, mustMapping(t, TypeBalanceSheet, balanceSheetLines()))
	if _, err := set.Mapping(TypeCashFlow); err == nil {
		t.Fatal("expected missing mapping error")
	}
}
