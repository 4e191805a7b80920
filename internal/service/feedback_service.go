package service

import (
	"context"
	"log/slog"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
)

type FeedbackRepository interface {
	RecordFailure(ctx context.Context, f models.SyncFailure) error
}

// FeedbackService records change events that will not be retried
type FeedbackService struct {
	repo   FeedbackRepository
	logger *slog.Logger
}

func NewFeedbackService(r FeedbackRepository, l *slog.Logger) *FeedbackService {
	return &FeedbackService{repo: r, logger: l}
}

// HandleDeadLetter stores the failed event with its cause so operators can fix the data and replay it
func (s *FeedbackService) HandleDeadLetter(ctx context.Context, correlationID string, ev models.ChangeEvent, body []byte, cause error) error {
	s.logger.Warn("Feedback: caught dead letter, updating database",
		"correlation_id", correlationID,
		"table", ev.TableName,
		"kind", syncerr.Kind(cause),
	)

	errLog := ""
	if cause != nil {
		errLog = cause.Error()
	}

	err := s.repo.RecordFailure(ctx, models.SyncFailure{
		CorrelationID: correlationID,
		TableName:     ev.TableName,
		Operation:     ev.Operation,
		Identifier:    ev.Identifier,
		Kind:          syncerr.Kind(cause),
		ErrorLog:      errLog,
		Payload:       body,
	})
	if err != nil {
		s.logger.Error("Feedback: failed to update postgres", "correlation_id", correlationID, "error", err)
		return err
	}

	return nil
}
