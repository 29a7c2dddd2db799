package reports

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads posted lines for aggregation. Snapshot isolation at the
// granularity of entry status plus lines is assumed from the database; the
// aggregator never observes a half-committed transition.
type Repository interface {
	ListPostedLines(ctx context.Context, companyID, periodID int64, accountPrefix string) ([]LedgerLine, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListPostedLines(ctx context.Context, companyID, periodID int64, accountPrefix string) ([]LedgerLine, error) {
	query := `SELECT l.account_id, a.code, a.label, a.type, e.status, l.position, l.amount
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.company_id=$1 AND e.period_id=$2 AND e.status IN ('VALIDATED','CLOSED')`
	args := []any{companyID, periodID}
	if accountPrefix != "" {
		args = append(args, accountPrefix+"%")
		query += fmt.Sprintf(" AND a.code LIKE $%d", len(args))
	}
	query += " ORDER BY a.code, l.id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LedgerLine
	for rows.Next() {
		var l LedgerLine
		if err := rows.Scan(&l.AccountID, &l.AccountCode, &l.AccountLabel, &l.AccountType, &l.EntryStatus, &l.Position, &l.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Service computes trial balances on demand.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// TrialBalance aggregates posted movements for the period into the grouped
// trial balance structure.
func (s *Service) TrialBalance(ctx context.Context, companyID, periodID int64, accountPrefix string) (TrialBalance, error) {
	lines, err := s.repo.ListPostedLines(ctx, companyID, periodID, accountPrefix)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(Aggregate(lines)), nil
}

// Balances returns per-account net balances keyed by code, the statement
// mapper's input.
func (s *Service) Balances(ctx context.Context, companyID, periodID int64) (map[string]decimal.Decimal, error) {
	lines, err := s.repo.ListPostedLines(ctx, companyID, periodID, "")
	if err != nil {
		return nil, err
	}
	return BalanceMap(Aggregate(lines)), nil
}
