package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/metrics"
)

// SyncHandler runs one delivered change event through the router with logging and metrics
type SyncHandler struct {
	router *Router
	logger *slog.Logger
}

func NewSyncHandler(router *Router, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{router: router, logger: logger}
}

// ProcessMessage executes one synchronization. Errors are returned untouched so the transport can classify them
func (h *SyncHandler) ProcessMessage(ctx context.Context, correlationID string, ev models.ChangeEvent) (err error) {
	start := time.Now()

	l := h.logger.With(
		"correlation_id", correlationID,
		"table", ev.TableName,
		"operation", ev.Operation,
	)

	defer func() {
		status := "success"
		if err != nil {
			status = syncerr.Kind(err)
		}
		metrics.ConsumerDuration.WithLabelValues(status, ev.TableName, ev.Operation).Observe(time.Since(start).Seconds())
	}()

	l.Debug("Processing change event", "event", ev.String())

	if err := h.router.Route(ctx, ev); err != nil {
		if syncerr.Retryable(err) {
			l.Warn("Change event failed, will be retried", "kind", syncerr.Kind(err), "error", err)
		} else {
			l.Error("Change event failed permanently", "kind", syncerr.Kind(err), "error", err)
		}
		return err
	}

	l.Info("Change event synchronized", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
