package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grandlivre/grandlivre/internal/audit"
)

// AuditPort records period events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log audit.Log) error
}

// Service manages fiscal period lifecycle. Periods are opened
// administratively and locked exactly once; locking is terminal.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, auditPort AuditPort) *Service {
	return &Service{repo: repo, audit: auditPort, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, companyID int64) ([]Period, error) {
	return s.repo.List(ctx, companyID)
}

func (s *Service) FindOpenByDate(ctx context.Context, companyID int64, date time.Time) (Period, error) {
	return s.repo.FindOpenByDate(ctx, companyID, date)
}

// Open creates a new OPEN period.
func (s *Service) Open(ctx context.Context, in CreatePeriodInput) (Period, error) {
	if in.Code == "" {
		return Period{}, errors.New("accounting: period code required")
	}
	if in.CompanyID == 0 {
		return Period{}, errors.New("accounting: company required")
	}
	if !in.EndDate.After(in.StartDate) {
		return Period{}, errors.New("accounting: period end must follow start")
	}
	period, err := s.repo.Insert(ctx, in)
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, in.ActorID, "period.open", period)
	return period, nil
}

// Lock flips a period to LOCKED. The one-way gate: once this commits, no
// entry transition may mutate posted state for the period, no matter when
// the transition was initiated.
func (s *Service) Lock(ctx context.Context, id int64, actorID int64) (Period, error) {
	period, err := s.repo.Lock(ctx, id, actorID, s.now())
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, actorID, "period.lock", period)
	return period, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, period Period) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Log{
		ActorID:  actorID,
		Action:   action,
		Entity:   "fiscal_period",
		EntityID: fmt.Sprintf("%d", period.ID),
		Meta: map[string]any{
			"code":   period.Code,
			"status": string(period.Status),
		},
		At: s.now(),
	})
}
