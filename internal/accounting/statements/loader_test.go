package statements

import (
	"strings"
	"testing"
)

const mappingYAML = `
standard: SYSCOHADA
country: CI
statements:
  - type: BALANCE_SHEET
    lines:
      - code: BT_CLIENTS
        label: Clients
        section: ASSETS
        account_patterns: ["41%"]
        normal_side: DEBIT
        display_order: 1
      - code: TOTAL_ACTIF
        label: Total Actif
        section: ASSETS
        formula: BT_CLIENTS
        depends_on: [BT_CLIENTS]
        normal_side: DEBIT
        total: true
        display_order: 2
  - type: INCOME_STATEMENT
    lines:
      - code: CA
        label: Chiffre d'affaires
        section: REVENUE
        account_patterns: ["70%"]
        normal_side: CREDIT
        display_order: 1
`

func TestLoad(t *testing.T) {
	set, err := Load(strings.NewReader(mappingYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Standard != "SYSCOHADA" || set.Country != "CI" {
		t.Fatalf("standard/country = %s/%s", set.Standard, set.Country)
	}
	if got := len(set.Types()); got != 2 {
		t.Fatalf("types = %d", got)
	}
	bs, err := set.Mapping(TypeBalanceSheet)
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	lines := bs.Lines()
	if len(lines) != 2 || lines[0].LineCode != "BT_CLIENTS" || !lines[1].Total {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	bad := strings.ReplaceAll(mappingYAML, "display_order", "display_rank")
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatal("expected unknown field rejection")
	}
}

func TestLoadRejectsBrokenFormula(t *testing.T) {
	bad := strings.ReplaceAll(mappingYAML, "formula: BT_CLIENTS", "formula: BT_CLIENTS +")
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatal("expected formula rejection")
	}
}
