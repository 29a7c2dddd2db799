package statements

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type mockSource struct {
	balances map[int64]Balances // by period id
	calls    int
}

func (m *mockSource) Balances(ctx context.Context, companyID, periodID int64) (map[string]decimal.Decimal, error) {
	m.calls++
	return m.balances[periodID], nil
}

func newTestService(t *testing.T, source BalanceSource) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	set := testSet(t,
		mustMapping(t, TypeBalanceSheet, balanceSheetLines()),
		mustMapping(t, TypeIncomeStatement, []LineMapping{
			{LineCode: "CA", Section: SectionRevenue, AccountPatterns: []string{"70%"}, NormalSide: NormalCredit},
			{LineCode: "CHARGES", Section: SectionExpenses, AccountPatterns: []string{"6%"}, NormalSide: NormalDebit},
			{LineCode: "RESULTAT", Section: SectionRevenue, Formula: "CA - CHARGES", DependsOn: []string{"CA", "CHARGES"}, NormalSide: NormalCredit, Total: true},
		}),
		mustMapping(t, TypeCashFlow, []LineMapping{
			{LineCode: "FT_TRESORERIE", Section: SectionOperating, AccountPatterns: []string{"5%"}, NormalSide: NormalDebit},
		}),
	)
	return NewService(source, NewMapper(set), NewCache(client, time.Minute), nil)
}

func TestGenerateUsesCache(t *testing.T) {
	source := &mockSource{balances: map[int64]Balances{7: saleBalances()}}
	svc := newTestService(t, source)
	ctx := context.Background()

	first, err := svc.Generate(ctx, TypeBalanceSheet, 1, 7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := svc.Generate(ctx, TypeBalanceSheet, 1, 7)
	if err != nil {
		t.Fatalf("Generate (cached): %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("source calls = %d, want 1", source.calls)
	}
	if len(second.Lines) != len(first.Lines) {
		t.Fatalf("cached statement has %d lines, want %d", len(second.Lines), len(first.Lines))
	}
	for i := range first.Lines {
		if !second.Lines[i].Amount.Equal(first.Lines[i].Amount) {
			t.Fatalf("line %s changed across cache: %s vs %s",
				first.Lines[i].Code, second.Lines[i].Amount, first.Lines[i].Amount)
		}
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	source := &mockSource{balances: map[int64]Balances{7: saleBalances()}}
	svc := newTestService(t, source)
	ctx := context.Background()

	if _, err := svc.Generate(ctx, TypeBalanceSheet, 1, 7); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	svc.Invalidate(ctx)
	if _, err := svc.Generate(ctx, TypeBalanceSheet, 1, 7); err != nil {
		t.Fatalf("Generate after bump: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("source calls = %d, want 2", source.calls)
	}
}

func TestGenerateBundle(t *testing.T) {
	source := &mockSource{balances: map[int64]Balances{7: saleBalances()}}
	svc := newTestService(t, source)

	bundle, err := svc.GenerateBundle(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("GenerateBundle: %v", err)
	}
	if bundle.BalanceSheet.Type != TypeBalanceSheet || !bundle.BalanceSheet.Balanced {
		t.Fatalf("balance sheet = %+v", bundle.BalanceSheet)
	}
	if bundle.IncomeStatement.Type != TypeIncomeStatement {
		t.Fatalf("income statement type = %s", bundle.IncomeStatement.Type)
	}
	if bundle.CashFlow.Type != TypeCashFlow {
		t.Fatalf("cash flow type = %s", bundle.CashFlow.Type)
	}
}

func TestGenerateWithPrior(t *testing.T) {
	source := &mockSource{balances: map[int64]Balances{
		7: saleBalances(),
		6: {"101000": dec("-50000"), "521000": dec("50000")},
	}}
	svc := newTestService(t, source)

	stmt, err := svc.GenerateWithPrior(context.Background(), TypeBalanceSheet, 1, 7, 6)
	if err != nil {
		t.Fatalf("GenerateWithPrior: %v", err)
	}
	for _, ln := range stmt.Lines {
		if ln.Prior == nil {
			t.Fatalf("line %s missing prior column", ln.Code)
		}
	}
}
