package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grandlivre/grandlivre/internal/accounting/periods"
	"github.com/grandlivre/grandlivre/internal/accounting/shared"
	"github.com/grandlivre/grandlivre/internal/platform/db"
)

// Repository persists journal entries via Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

const entryColumns = `id, piece_number, entry_date, piece_date, label, reference, currency, source, status,
period_id, company_id, template_id, created_by, validated_by, validated_at, total_debit, total_credit, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PieceNumber, &e.EntryDate, &e.PieceDate, &e.Label, &e.Reference, &e.Currency,
		&e.Source, &e.Status, &e.PeriodID, &e.CompanyID, &e.TemplateID, &e.CreatedBy,
		&e.ValidatedBy, &e.ValidatedAt, &e.TotalDebit, &e.TotalCredit, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, entryID int64) (Entry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		return Entry{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT l.id, l.entry_id, l.position, l.account_id, a.code, a.label, l.amount, l.label, l.ordinal, l.created_at, l.updated_at
FROM journal_lines l JOIN accounts a ON a.id = l.account_id
WHERE l.entry_id=$1 ORDER BY l.ordinal`, entryID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.EntryID, &l.Position, &l.AccountID, &l.AccountCode, &l.AccountLabel,
			&l.Amount, &l.Label, &l.Ordinal, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, l)
	}
	return entry, rows.Err()
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, periodID int64) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, code, company_id, start_date, end_date, status, locked_by, locked_at, created_at, updated_at
FROM fiscal_periods WHERE id=$1 FOR UPDATE`, periodID).
		Scan(&p.ID, &p.Code, &p.CompanyID, &p.StartDate, &p.EndDate, &p.Status, &p.LockedBy, &p.LockedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, shared.ErrPeriodNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

// NextPieceNumber allocates an ECR-YYYYMM-NNNN number from a per-month
// sequence row, locked so concurrent drafts never collide.
func (r *txRepository) NextPieceNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	month := date.Format("200601")
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO piece_sequences (company_id, month, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (company_id, month) DO UPDATE SET last_value = piece_sequences.last_value + 1
RETURNING last_value`, companyID, month).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ECR-%s-%04d", month, seq), nil
}

func (r *txRepository) ResolveAccountIDs(ctx context.Context, codes []string) (map[string]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT code, id FROM accounts WHERE code = ANY($1) AND is_active`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64, len(codes))
	for rows.Next() {
		var code string
		var id int64
		if err := rows.Scan(&code, &id); err != nil {
			return nil, err
		}
		out[code] = id
	}
	return out, rows.Err()
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(piece_number, entry_date, piece_date, label, reference, currency, source, status, period_id, company_id, template_id, created_by, total_debit, total_credit)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id, created_at, updated_at`,
		entry.PieceNumber, entry.EntryDate, entry.PieceDate, entry.Label, entry.Reference, entry.Currency,
		entry.Source, entry.Status, entry.PeriodID, entry.CompanyID, entry.TemplateID, entry.CreatedBy,
		entry.TotalDebit, entry.TotalCredit)
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []Line) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, position, account_id, amount, label, ordinal)
VALUES ($1,$2,$3,$4,$5,$6)`, entryID, line.Position, line.AccountID, line.Amount, line.Label, line.Ordinal); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) UpdateTotals(ctx context.Context, entry Entry) error {
	_, err := r.tx.Exec(ctx, `UPDATE journal_entries SET total_debit=$2, total_credit=$3, updated_at=now() WHERE id=$1`,
		entry.ID, entry.TotalDebit, entry.TotalCredit)
	return err
}

func (r *txRepository) TransitionStatus(ctx context.Context, entryID int64, from, to EntryStatus, validatedBy *int64, validatedAt *time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries
SET status=$3, validated_by=$4, validated_at=$5, updated_at=now()
WHERE id=$1 AND status=$2`, entryID, from, to, validatedBy, validatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrTransitionConflict
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	return err
}

// EntryFilter narrows List results.
type EntryFilter struct {
	CompanyID int64
	PeriodID  int64
	Status    EntryStatus
	Source    EntrySource
	DateFrom  *time.Time
	DateTo    *time.Time
	Text      string
}

// List returns entry headers matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE company_id=$1`
	args := []any{filter.CompanyID}
	if filter.PeriodID != 0 {
		args = append(args, filter.PeriodID)
		query += fmt.Sprintf(" AND period_id=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND source=$%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += fmt.Sprintf(" AND entry_date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += fmt.Sprintf(" AND entry_date <= $%d", len(args))
	}
	if text := strings.TrimSpace(filter.Text); text != "" {
		args = append(args, "%"+text+"%")
		query += fmt.Sprintf(" AND (label ILIKE $%d OR piece_number ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY entry_date DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// StatusCounts returns entry counts grouped by status for a company.
func (r *Repository) StatusCounts(ctx context.Context, companyID int64) (map[EntryStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM journal_entries WHERE company_id=$1 GROUP BY status`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[EntryStatus]int64)
	for rows.Next() {
		var status EntryStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}
