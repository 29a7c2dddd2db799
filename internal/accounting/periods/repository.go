package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

type Repository interface {
	Get(ctx context.Context, id int64) (Period, error)
	FindOpenByDate(ctx context.Context, companyID int64, date time.Time) (Period, error)
	List(ctx context.Context, companyID int64) ([]Period, error)
	Insert(ctx context.Context, in CreatePeriodInput) (Period, error)
	// Lock flips an OPEN period to LOCKED. It reports
	// shared.ErrTransitionConflict when the period was already locked, so
	// two concurrent locks cannot both claim the transition.
	Lock(ctx context.Context, id int64, actorID int64, at time.Time) (Period, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, code, company_id, start_date, end_date, status, locked_by, locked_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Code, &p.CompanyID, &p.StartDate, &p.EndDate, &p.Status, &p.LockedBy, &p.LockedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1`, id))
}

func (r *repository) FindOpenByDate(ctx context.Context, companyID int64, date time.Time) (Period, error) {
	return scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE company_id=$1 AND status='OPEN' AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, companyID, date))
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE company_id=$1 ORDER BY start_date`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Insert(ctx context.Context, in CreatePeriodInput) (Period, error) {
	return scanPeriod(r.db.QueryRow(ctx, `INSERT INTO fiscal_periods (code, company_id, start_date, end_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, 'OPEN', now(), now()) RETURNING `+periodColumns, in.Code, in.CompanyID, in.StartDate, in.EndDate))
}

func (r *repository) Lock(ctx context.Context, id int64, actorID int64, at time.Time) (Period, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `UPDATE fiscal_periods
SET status='LOCKED', locked_by=$2, locked_at=$3, updated_at=now()
WHERE id=$1 AND status='OPEN' RETURNING `+periodColumns, id, actorID, at))
	if err != nil {
		if errors.Is(err, shared.ErrPeriodNotFound) {
			// Either the period does not exist or it is already locked.
			if _, getErr := r.Get(ctx, id); getErr == nil {
				return Period{}, shared.ErrTransitionConflict
			}
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}
