package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes posted debit/credit totals per period
	// and flags drift.
	TaskLedgerIntegrity = "ledger:integrity_scan"
	// TaskStatementWarmup pre-generates the statement bundle for a period,
	// typically right after it is locked.
	TaskStatementWarmup = "statements:warmup"
)

// IntegrityScanPayload scopes an integrity scan to one company, or all
// companies when zero.
type IntegrityScanPayload struct {
	CompanyID int64 `json:"company_id"`
}

// NewIntegrityScanTask constructs an Asynq task.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// StatementWarmupPayload identifies the period whose statements should be
// generated ahead of the first read.
type StatementWarmupPayload struct {
	CompanyID int64 `json:"company_id"`
	PeriodID  int64 `json:"period_id"`
}

// NewStatementWarmupTask constructs an Asynq task.
func NewStatementWarmupTask(payload StatementWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementWarmup, data), nil
}
