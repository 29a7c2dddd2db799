package periods

import "time"

// PeriodStatus enumerates valid period states. Locking is terminal: a
// locked period never reopens for posting.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// Period represents a fiscal window owned by one legal entity.
type Period struct {
	ID        int64
	Code      string
	CompanyID int64
	StartDate time.Time
	EndDate   time.Time
	Status    PeriodStatus
	LockedBy  *int64
	LockedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether the date falls inside the period window.
func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// CreatePeriodInput captures the fields for opening a new period.
type CreatePeriodInput struct {
	Code      string
	CompanyID int64
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}
