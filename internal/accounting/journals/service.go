package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grandlivre/grandlivre/internal/accounting/periods"
	"github.com/grandlivre/grandlivre/internal/accounting/shared"
	"github.com/grandlivre/grandlivre/internal/audit"
)

// RepositoryPort abstracts transactional repository behaviour. Every
// lifecycle transition runs inside one WithTx closure so the entry and its
// lines commit together or not at all.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository is the persistence surface available inside a transaction.
type TxRepository interface {
	GetEntryWithLines(ctx context.Context, entryID int64) (Entry, error)
	// GetPeriodForUpdate row-locks the period so the lock gate is checked
	// at commit time, not only at request time.
	GetPeriodForUpdate(ctx context.Context, periodID int64) (periods.Period, error)
	NextPieceNumber(ctx context.Context, companyID int64, date time.Time) (string, error)
	ResolveAccountIDs(ctx context.Context, codes []string) (map[string]int64, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	ReplaceLines(ctx context.Context, entryID int64, lines []Line) error
	UpdateTotals(ctx context.Context, entry Entry) error
	// TransitionStatus flips status only when the stored status still equals
	// from; it reports shared.ErrTransitionConflict otherwise, so at most
	// one of two concurrent transitions wins.
	TransitionStatus(ctx context.Context, entryID int64, from, to EntryStatus, validatedBy *int64, validatedAt *time.Time) error
	DeleteEntry(ctx context.Context, entryID int64) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log audit.Log) error
}

// Service coordinates the entry lifecycle: DRAFT -> VALIDATED -> CLOSED,
// with annulation back to DRAFT while the period stays open.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the lifecycle service.
func NewService(repo RepositoryPort, auditPort AuditPort) *Service {
	return &Service{repo: repo, audit: auditPort, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateDraft validates and persists a new draft entry. Zero-amount lines
// are dropped; totals are derived from what remains. Drafts may be
// imbalanced: the balance invariant gates the validate transition instead.
func (s *Service) CreateDraft(ctx context.Context, input CreateEntryInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	lines := normalizeLines(input.Lines)
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForUpdate(ctx, input.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != periods.PeriodStatusOpen {
			return shared.ErrPeriodLocked
		}
		if !period.Contains(input.EntryDate) {
			return shared.ErrDateOutOfRange
		}
		resolved, err := s.resolveLines(ctx, tx, lines)
		if err != nil {
			return err
		}
		number, err := tx.NextPieceNumber(ctx, input.CompanyID, input.EntryDate)
		if err != nil {
			return err
		}
		draft := Entry{
			PieceNumber: number,
			EntryDate:   input.EntryDate,
			PieceDate:   input.PieceDate,
			Label:       input.Label,
			Reference:   input.Reference,
			Currency:    input.Currency,
			Source:      input.Source,
			Status:      EntryStatusDraft,
			PeriodID:    input.PeriodID,
			CompanyID:   input.CompanyID,
			TemplateID:  input.TemplateID,
			CreatedBy:   input.CreatedBy,
			Lines:       resolved,
		}
		if draft.PieceDate.IsZero() {
			draft.PieceDate = draft.EntryDate
		}
		draft.ComputeTotals()
		inserted, err := tx.InsertEntry(ctx, draft)
		if err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, inserted.ID, draft.Lines); err != nil {
			return err
		}
		inserted.Lines = draft.Lines
		inserted.TotalDebit = draft.TotalDebit
		inserted.TotalCredit = draft.TotalCredit
		entry = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, input.CreatedBy, "entry.create", entry, map[string]any{
		"source":   string(entry.Source),
		"template": entry.TemplateID,
	})
	return entry, nil
}

// UpdateLines replaces the lines of a draft entry and recomputes totals.
func (s *Service) UpdateLines(ctx context.Context, input UpdateLinesInput) (Entry, error) {
	if input.EntryID == 0 {
		return Entry{}, errors.New("accounting: entry id required")
	}
	if err := validateLines(input.Lines); err != nil {
		return Entry{}, err
	}
	lines := normalizeLines(input.Lines)
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return &shared.InvalidTransitionError{PieceNumber: current.PieceNumber, From: string(current.Status), To: string(EntryStatusDraft)}
		}
		period, err := tx.GetPeriodForUpdate(ctx, current.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != periods.PeriodStatusOpen {
			return shared.ErrPeriodLocked
		}
		resolved, err := s.resolveLines(ctx, tx, lines)
		if err != nil {
			return err
		}
		current.Lines = resolved
		current.ComputeTotals()
		if err := tx.ReplaceLines(ctx, current.ID, resolved); err != nil {
			return err
		}
		if err := tx.UpdateTotals(ctx, current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, input.ActorID, "entry.update_lines", entry, map[string]any{
		"line_count": len(entry.Lines),
	})
	return entry, nil
}

// Validate transitions DRAFT -> VALIDATED. Guards: period OPEN (checked
// under row lock at commit time), exact balance, non-zero totals, at least
// one line. The status flip is guarded so concurrent validations cannot
// both succeed.
func (s *Service) Validate(ctx context.Context, input TransitionInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if !canTransition(current.Status, EntryStatusValidated) {
			return &shared.InvalidTransitionError{PieceNumber: current.PieceNumber, From: string(current.Status), To: string(EntryStatusValidated)}
		}
		period, err := tx.GetPeriodForUpdate(ctx, current.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != periods.PeriodStatusOpen {
			return shared.ErrPeriodLocked
		}
		if !period.Contains(current.EntryDate) {
			return shared.ErrDateOutOfRange
		}
		if len(current.Lines) == 0 {
			return shared.ErrNoLines
		}
		current.ComputeTotals()
		if !current.Balanced() {
			return &shared.ImbalancedEntryError{PieceNumber: current.PieceNumber, Delta: current.Delta()}
		}
		if current.TotalDebit.IsZero() {
			return shared.ErrZeroEntry
		}
		at := s.now()
		actor := input.ActorID
		if err := tx.TransitionStatus(ctx, current.ID, EntryStatusDraft, EntryStatusValidated, &actor, &at); err != nil {
			return err
		}
		current.Status = EntryStatusValidated
		current.ValidatedBy = &actor
		current.ValidatedAt = &at
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, input.ActorID, "entry.validate", entry, map[string]any{
		"total_debit":  entry.TotalDebit.String(),
		"total_credit": entry.TotalCredit.String(),
	})
	return entry, nil
}

// Unvalidate reverts VALIDATED -> DRAFT (annulation) while the period is
// still open, clearing the validation metadata.
func (s *Service) Unvalidate(ctx context.Context, input TransitionInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if !canTransition(current.Status, EntryStatusDraft) {
			return &shared.InvalidTransitionError{PieceNumber: current.PieceNumber, From: string(current.Status), To: string(EntryStatusDraft)}
		}
		period, err := tx.GetPeriodForUpdate(ctx, current.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != periods.PeriodStatusOpen {
			return shared.ErrPeriodLocked
		}
		if err := tx.TransitionStatus(ctx, current.ID, EntryStatusValidated, EntryStatusDraft, nil, nil); err != nil {
			return err
		}
		current.Status = EntryStatusDraft
		current.ValidatedBy = nil
		current.ValidatedAt = nil
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, input.ActorID, "entry.unvalidate", entry, nil)
	return entry, nil
}

// Close transitions VALIDATED -> CLOSED. Closing is terminal.
func (s *Service) Close(ctx context.Context, input TransitionInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if !canTransition(current.Status, EntryStatusClosed) {
			return &shared.InvalidTransitionError{PieceNumber: current.PieceNumber, From: string(current.Status), To: string(EntryStatusClosed)}
		}
		if err := tx.TransitionStatus(ctx, current.ID, EntryStatusValidated, EntryStatusClosed, nil, nil); err != nil {
			return err
		}
		current.Status = EntryStatusClosed
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, input.ActorID, "entry.close", entry, nil)
	return entry, nil
}

// Delete removes a draft entry and its lines. Posted entries are never
// deleted; annulation is the supported path back to an editable state.
func (s *Service) Delete(ctx context.Context, input TransitionInput) error {
	var piece string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return &shared.InvalidTransitionError{PieceNumber: current.PieceNumber, From: string(current.Status), To: "DELETED"}
		}
		piece = current.PieceNumber
		return tx.DeleteEntry(ctx, current.ID)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Log{
			ActorID:  input.ActorID,
			Action:   "entry.delete",
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", input.EntryID),
			Meta:     map[string]any{"piece_number": piece},
			At:       s.now(),
		})
	}
	return nil
}

// Get loads one entry with its lines.
func (s *Service) Get(ctx context.Context, entryID int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetEntryWithLines(ctx, entryID)
		return err
	})
	return entry, err
}

func (s *Service) resolveLines(ctx context.Context, tx TxRepository, inputs []LineInput) ([]Line, error) {
	var codes []string
	for _, in := range inputs {
		if in.AccountID == 0 {
			codes = append(codes, in.AccountCode)
		}
	}
	var ids map[string]int64
	if len(codes) > 0 {
		var err error
		ids, err = tx.ResolveAccountIDs(ctx, codes)
		if err != nil {
			return nil, err
		}
	}
	now := s.now()
	lines := make([]Line, 0, len(inputs))
	for idx, in := range inputs {
		accountID := in.AccountID
		if accountID == 0 {
			var ok bool
			accountID, ok = ids[in.AccountCode]
			if !ok {
				return nil, &shared.ResolutionError{Pattern: in.AccountCode}
			}
		}
		lines = append(lines, Line{
			Position:    in.Position,
			AccountID:   accountID,
			AccountCode: in.AccountCode,
			Label:       in.Label,
			Amount:      in.Amount,
			Ordinal:     idx + 1,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return lines, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entry Entry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["piece_number"] = entry.PieceNumber
	_ = s.audit.Record(ctx, audit.Log{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
