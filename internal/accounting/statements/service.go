package statements

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/shopspring/decimal"
)

// BalanceSource provides per-account net balances for a locked or open
// period, normally the trial balance service.
type BalanceSource interface {
	Balances(ctx context.Context, companyID, periodID int64) (map[string]decimal.Decimal, error)
}

// Bundle packages the three standard statements generated together when
// a period is reviewed or locked.
type Bundle struct {
	BalanceSheet    Statement
	IncomeStatement Statement
	CashFlow        Statement
}

// Service generates financial statements from ledger balances, with an
// optional versioned cache in front of the mapper.
type Service struct {
	source BalanceSource
	mapper *Mapper
	cache  *Cache
	logger *slog.Logger
}

// NewService wires the statement generator. cache may be nil.
func NewService(source BalanceSource, mapper *Mapper, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, mapper: mapper, cache: cache, logger: logger}
}

// Generate builds one statement for the period, serving from cache when
// the ledger has not been bumped since the last computation.
func (s *Service) Generate(ctx context.Context, t Type, companyID, periodID int64) (Statement, error) {
	key, err := s.cache.BuildKey(ctx, keyStatement(t, companyID, periodID))
	if err != nil {
		return Statement{}, err
	}
	var stmt Statement
	err = s.cache.FetchJSON(ctx, key, &stmt, func(ctx context.Context) (interface{}, error) {
		return s.build(ctx, t, companyID, periodID)
	})
	if err != nil {
		return Statement{}, err
	}
	return stmt, nil
}

// GenerateWithPrior builds one statement with a comparative column from
// a prior period. Comparative statements bypass the cache; they are
// requested far less often than the single-period form.
func (s *Service) GenerateWithPrior(ctx context.Context, t Type, companyID, periodID, priorPeriodID int64) (Statement, error) {
	balances, err := s.source.Balances(ctx, companyID, periodID)
	if err != nil {
		return Statement{}, err
	}
	prior, err := s.source.Balances(ctx, companyID, priorPeriodID)
	if err != nil {
		return Statement{}, err
	}
	return s.mapper.Build(t, balances, BuildParams{
		PeriodID:  periodID,
		CompanyID: companyID,
		Prior:     prior,
	})
}

// GenerateBundle builds the balance sheet, income statement, and cash
// flow statement concurrently. The first failure cancels the rest.
func (s *Service) GenerateBundle(ctx context.Context, companyID, periodID int64) (Bundle, error) {
	var bundle Bundle
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stmt, err := s.Generate(ctx, TypeBalanceSheet, companyID, periodID)
		bundle.BalanceSheet = stmt
		return err
	})
	g.Go(func() error {
		stmt, err := s.Generate(ctx, TypeIncomeStatement, companyID, periodID)
		bundle.IncomeStatement = stmt
		return err
	})
	g.Go(func() error {
		stmt, err := s.Generate(ctx, TypeCashFlow, companyID, periodID)
		bundle.CashFlow = stmt
		return err
	})
	if err := g.Wait(); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

// Invalidate bumps the cache version after ledger writes.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("statement cache bump failed", slog.String("error", err.Error()))
	}
}

func (s *Service) build(ctx context.Context, t Type, companyID, periodID int64) (Statement, error) {
	balances, err := s.source.Balances(ctx, companyID, periodID)
	if err != nil {
		return Statement{}, err
	}
	stmt, err := s.mapper.Build(t, balances, BuildParams{PeriodID: periodID, CompanyID: companyID})
	if err != nil {
		return Statement{}, err
	}
	s.logger.Debug("statement generated",
		slog.String("type", string(t)),
		slog.String("company", strconv.FormatInt(companyID, 10)),
		slog.String("period", strconv.FormatInt(periodID, 10)),
		slog.Int("lines", len(stmt.Lines)))
	return stmt, nil
}
