package journals

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/grandlivre/grandlivre/internal/accounting/periods"
	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

type fakeRepo struct {
	period  periods.Period
	entries map[int64]*Entry
	nextID  int64
	seq     map[string]int64
	// transitionHook runs before TransitionStatus applies, simulating a
	// concurrent writer.
	transitionHook func(*fakeRepo)
}

func newFakeRepo(period periods.Period) *fakeRepo {
	return &fakeRepo{period: period, entries: map[int64]*Entry{}, seq: map[string]int64{}}
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &fakeTx{repo: r})
}

type fakeTx struct {
	repo *fakeRepo
}

func (tx *fakeTx) GetEntryWithLines(_ context.Context, entryID int64) (Entry, error) {
	e, ok := tx.repo.entries[entryID]
	if !ok {
		return Entry{}, shared.ErrEntryNotFound
	}
	out := *e
	out.Lines = append([]Line(nil), e.Lines...)
	return out, nil
}

func (tx *fakeTx) GetPeriodForUpdate(_ context.Context, periodID int64) (periods.Period, error) {
	if periodID != tx.repo.period.ID {
		return periods.Period{}, shared.ErrPeriodNotFound
	}
	return tx.repo.period, nil
}

func (tx *fakeTx) NextPieceNumber(_ context.Context, companyID int64, date time.Time) (string, error) {
	key := fmt.Sprintf("%d-%s", companyID, date.Format("200601"))
	tx.repo.seq[key]++
	return fmt.Sprintf("ECR-%s-%04d", date.Format("200601"), tx.repo.seq[key]), nil
}

func (tx *fakeTx) ResolveAccountIDs(_ context.Context, codes []string) (map[string]int64, error) {
	out := map[string]int64{}
	for i, code := range codes {
		out[code] = int64(1000 + i)
	}
	return out, nil
}

func (tx *fakeTx) InsertEntry(_ context.Context, entry Entry) (Entry, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	stored := entry
	tx.repo.entries[entry.ID] = &stored
	return entry, nil
}

func (tx *fakeTx) ReplaceLines(_ context.Context, entryID int64, lines []Line) error {
	e := tx.repo.entries[entryID]
	e.Lines = append([]Line(nil), lines...)
	e.ComputeTotals()
	return nil
}

func (tx *fakeTx) UpdateTotals(_ context.Context, entry Entry) error {
	e := tx.repo.entries[entry.ID]
	e.TotalDebit = entry.TotalDebit
	e.TotalCredit = entry.TotalCredit
	return nil
}

func (tx *fakeTx) TransitionStatus(_ context.Context, entryID int64, from, to EntryStatus, validatedBy *int64, validatedAt *time.Time) error {
	if tx.repo.transitionHook != nil {
		hook := tx.repo.transitionHook
		tx.repo.transitionHook = nil
		hook(tx.repo)
	}
	e, ok := tx.repo.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	if e.Status != from {
		return shared.ErrTransitionConflict
	}
	e.Status = to
	e.ValidatedBy = validatedBy
	e.ValidatedAt = validatedAt
	return nil
}

func (tx *fakeTx) DeleteEntry(_ context.Context, entryID int64) error {
	delete(tx.repo.entries, entryID)
	return nil
}

func openPeriod() periods.Period {
	return periods.Period{
		ID:        1,
		Code:      "2026-03",
		CompanyID: 1,
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    periods.PeriodStatusOpen,
	}
}

func draftInput(debit, credit string) CreateEntryInput {
	return CreateEntryInput{
		EntryDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Label:     "Vente de marchandises",
		Currency:  "XOF",
		Source:    SourceManual,
		PeriodID:  1,
		CompanyID: 1,
		CreatedBy: 7,
		Lines: []LineInput{
			{Position: PositionDebit, AccountCode: "411000", Amount: decimal.RequireFromString(debit), Label: "Clients"},
			{Position: PositionCredit, AccountCode: "701000", Amount: decimal.RequireFromString(credit), Label: "Ventes"},
		},
	}
}

func TestCreateDraftComputesTotalsAndPieceNumber(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("118000", "118000"))
	require.NoError(t, err)
	require.Equal(t, EntryStatusDraft, entry.Status)
	require.Equal(t, "ECR-202603-0001", entry.PieceNumber)
	require.True(t, entry.TotalDebit.Equal(decimal.RequireFromString("118000")))
	require.True(t, entry.Balanced())

	second, err := svc.CreateDraft(context.Background(), draftInput("100", "100"))
	require.NoError(t, err)
	require.Equal(t, "ECR-202603-0002", second.PieceNumber)
}

func TestCreateDraftDropsZeroLines(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	input := draftInput("100", "100")
	input.Lines = append(input.Lines, LineInput{Position: PositionDebit, AccountCode: "411000", Amount: decimal.Zero})
	entry, err := svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
}

func TestCreateDraftAllowsImbalance(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100000", "99999"))
	require.NoError(t, err)
	require.False(t, entry.Balanced())
}

func TestCreateDraftRejectsDateOutsidePeriod(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	input := draftInput("100", "100")
	input.EntryDate = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateDraft(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrDateOutOfRange)
}

func TestValidateStampsMetadata(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)
	at := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return at })

	entry, err := svc.CreateDraft(context.Background(), draftInput("118000", "118000"))
	require.NoError(t, err)

	validated, err := svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)
	require.Equal(t, EntryStatusValidated, validated.Status)
	require.NotNil(t, validated.ValidatedAt)
	require.Equal(t, at, *validated.ValidatedAt)
	require.Equal(t, int64(7), *validated.ValidatedBy)
}

func TestValidateImbalancedEntry(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100000", "99999"))
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	var imbErr *shared.ImbalancedEntryError
	require.ErrorAs(t, err, &imbErr)
	require.True(t, imbErr.Delta.Equal(decimal.NewFromInt(1)))
	require.Equal(t, entry.PieceNumber, imbErr.PieceNumber)
}

func TestValidateZeroEntry(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	input := draftInput("100", "100")
	input.Lines = nil
	entry, err := svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrNoLines)
}

func TestValidateTwiceFails(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100", "100"))
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestValidateLockedPeriod(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100", "100"))
	require.NoError(t, err)

	repo.period.Status = periods.PeriodStatusLocked
	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
}

func TestValidateConcurrentWinnerTakesAll(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100", "100"))
	require.NoError(t, err)

	// A concurrent validation commits between our guard checks and the
	// status flip; the guarded update must refuse the second write.
	repo.transitionHook = func(r *fakeRepo) {
		r.entries[entry.ID].Status = EntryStatusValidated
	}
	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 8})
	require.ErrorIs(t, err, shared.ErrTransitionConflict)
	require.Equal(t, EntryStatusValidated, repo.entries[entry.ID].Status)
}

func TestUnvalidateThenRevalidateReproducesTotals(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)
	at := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return at })

	entry, err := svc.CreateDraft(context.Background(), draftInput("118000", "118000"))
	require.NoError(t, err)
	first, err := svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)

	reverted, err := svc.Unvalidate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)
	require.Equal(t, EntryStatusDraft, reverted.Status)
	require.Nil(t, reverted.ValidatedAt)

	second, err := svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)
	require.True(t, second.TotalDebit.Equal(first.TotalDebit))
	require.True(t, second.TotalCredit.Equal(first.TotalCredit))
	require.Equal(t, *first.ValidatedAt, *second.ValidatedAt)
}

func TestUnvalidateLockedPeriod(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100", "100"))
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)

	repo.period.Status = periods.PeriodStatusLocked
	_, err = svc.Unvalidate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
}

func TestCloseRequiresValidated(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100", "100"))
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)
	closed, err := svc.Close(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)
	require.Equal(t, EntryStatusClosed, closed.Status)

	// CLOSED is terminal.
	_, err = svc.Unvalidate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestDeleteOnlyDraft(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100", "100"))
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = svc.Unvalidate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7}))

	_, err = svc.Get(context.Background(), entry.ID)
	require.ErrorIs(t, err, shared.ErrEntryNotFound)
}

func TestUpdateLinesRecomputesTotals(t *testing.T) {
	repo := newFakeRepo(openPeriod())
	svc := NewService(repo, nil)

	entry, err := svc.CreateDraft(context.Background(), draftInput("100", "100"))
	require.NoError(t, err)

	updated, err := svc.UpdateLines(context.Background(), UpdateLinesInput{
		EntryID: entry.ID,
		ActorID: 7,
		Lines: []LineInput{
			{Position: PositionDebit, AccountCode: "411000", Amount: decimal.RequireFromString("250")},
			{Position: PositionCredit, AccountCode: "701000", Amount: decimal.RequireFromString("250")},
		},
	})
	require.NoError(t, err)
	require.True(t, updated.TotalDebit.Equal(decimal.RequireFromString("250")))

	_, err = svc.Validate(context.Background(), TransitionInput{EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)
	_, err = svc.UpdateLines(context.Background(), UpdateLinesInput{EntryID: entry.ID, ActorID: 7, Lines: nil})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCreateDraftValidatesInput(t *testing.T) {
	svc := NewService(newFakeRepo(openPeriod()), nil)

	input := draftInput("100", "100")
	input.Lines[0].Amount = decimal.RequireFromString("-5")
	_, err := svc.CreateDraft(context.Background(), input)
	require.Error(t, err)

	input = draftInput("100", "100")
	input.Source = "IMPORT"
	_, err = svc.CreateDraft(context.Background(), input)
	require.Error(t, err)

	require.False(t, errors.Is(err, shared.ErrPeriodLocked))
}
