package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// IntegrityScanner recomputes posted debit and credit totals per period
// straight from the lines, independent of the stored entry totals, and
// reports any period whose ledger drifted off balance.
type IntegrityScanner struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewIntegrityScanner constructs the scanner.
func NewIntegrityScanner(pool *pgxpool.Pool, logger *slog.Logger) *IntegrityScanner {
	return &IntegrityScanner{pool: pool, logger: logger}
}

// PeriodDrift describes one period whose posted lines do not balance.
type PeriodDrift struct {
	CompanyID int64
	PeriodID  int64
	Delta     decimal.Decimal
}

// Scan walks every period with posted movements. CompanyID zero scans all
// companies.
func (s *IntegrityScanner) Scan(ctx context.Context, companyID int64) ([]PeriodDrift, error) {
	query := `SELECT e.company_id, e.period_id,
  COALESCE(SUM(CASE WHEN l.position='DEBIT' THEN l.amount ELSE -l.amount END), 0) AS delta
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.status IN ('VALIDATED','CLOSED')`
	args := []any{}
	if companyID != 0 {
		args = append(args, companyID)
		query += " AND e.company_id=$1"
	}
	query += " GROUP BY e.company_id, e.period_id HAVING SUM(CASE WHEN l.position='DEBIT' THEN l.amount ELSE -l.amount END) <> 0"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drifts []PeriodDrift
	for rows.Next() {
		var d PeriodDrift
		if err := rows.Scan(&d.CompanyID, &d.PeriodID, &d.Delta); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

// HandleTask processes TaskLedgerIntegrity tasks.
func (s *IntegrityScanner) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	drifts, err := s.Scan(ctx, payload.CompanyID)
	if err != nil {
		return err
	}
	if len(drifts) == 0 {
		s.logger.Info("ledger integrity scan clean", slog.Int64("company", payload.CompanyID))
		return nil
	}
	for _, d := range drifts {
		s.logger.Error("ledger integrity drift",
			slog.Int64("company", d.CompanyID),
			slog.Int64("period", d.PeriodID),
			slog.String("delta", d.Delta.String()))
	}
	return nil
}
