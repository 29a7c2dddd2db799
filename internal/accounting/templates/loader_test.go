package templates

import (
	"strings"
	"testing"
)

const sampleYAML = `
templates:
  - code: VENTE_TVA_OHADA
    name: Vente de marchandises avec TVA
    standard: SYSCOHADA
    country: BF
    category: VENTE
    default_vat_rate: "0.18"
    default_currency: XOF
    display_order: 1
    keywords: vente, facturation, client
    variables:
      montant_ht: decimal
      taux_tva: decimal
      facture_numero: string
    lines:
      - position: debit
        account_pattern: "411%"
        label: Clients
        formula: montant_ht * (1 + taux_tva)
      - position: credit
        account_pattern: "701%"
        label: Ventes de marchandises
        formula: montant_ht
      - position: credit
        account_pattern: "4434%"
        label: TVA collectee
        formula: montant_ht * taux_tva
`

func TestLoadTemplateSet(t *testing.T) {
	set, err := Load(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tpl, err := set.Find("VENTE_TVA_OHADA")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(tpl.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(tpl.Lines))
	}
	if tpl.Variables["montant_ht"] != VarDecimal {
		t.Fatalf("unexpected variable type %q", tpl.Variables["montant_ht"])
	}
	if len(tpl.Keywords) != 3 || tpl.Keywords[1] != "facturation" {
		t.Fatalf("unexpected keywords %v", tpl.Keywords)
	}
	if tpl.DefaultVATRate.String() != "0.18" {
		t.Fatalf("unexpected default vat rate %s", tpl.DefaultVATRate)
	}
}

func TestLoadRejectsBadPosition(t *testing.T) {
	bad := strings.Replace(sampleYAML, "position: debit", "position: both", 1)
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatal("expected load failure")
	}
}

func TestLoadRejectsBrokenFormula(t *testing.T) {
	bad := strings.Replace(sampleYAML, "formula: montant_ht * taux_tva", "formula: montant_ht *", 1)
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatal("expected load failure")
	}
}
