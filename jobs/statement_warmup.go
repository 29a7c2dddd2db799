package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/grandlivre/grandlivre/internal/accounting/statements"
)

// StatementWarmer pre-generates the statement bundle for a period so the
// first reader after a period lock hits warm cache.
type StatementWarmer struct {
	service *statements.Service
	logger  *slog.Logger
}

// NewStatementWarmer constructs the warmer.
func NewStatementWarmer(service *statements.Service, logger *slog.Logger) *StatementWarmer {
	return &StatementWarmer{service: service, logger: logger}
}

// HandleTask processes TaskStatementWarmup tasks.
func (s *StatementWarmer) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload StatementWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if _, err := s.service.GenerateBundle(ctx, payload.CompanyID, payload.PeriodID); err != nil {
		s.logger.Warn("statement warmup failed",
			slog.Int64("company", payload.CompanyID),
			slog.Int64("period", payload.PeriodID),
			slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("statement bundle warmed",
		slog.Int64("company", payload.CompanyID),
		slog.Int64("period", payload.PeriodID))
	return nil
}
