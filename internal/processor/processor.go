package processor

import (
	"context"
	"log/slog"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
)

// Reconciler applies a sync action to the remote appointment
type Reconciler interface {
	Reconcile(ctx context.Context, uuid string, action models.SyncAction) error
}

// EventProcessor handles the events of one table
type EventProcessor interface {
	Process(ctx context.Context, ev models.ChangeEvent) error
}

// TableProcessor resolves action and key for its Source and hands off to the reconciler
type TableProcessor struct {
	source     Source
	keys       *KeyResolver
	reconciler Reconciler
	logger     *slog.Logger
}

func NewTableProcessor(source Source, keys *KeyResolver, reconciler Reconciler, logger *slog.Logger) *TableProcessor {
	return &TableProcessor{
		source:     source,
		keys:       keys,
		reconciler: reconciler,
		logger:     logger.With("table", source.Table()),
	}
}

func (p *TableProcessor) Process(ctx context.Context, ev models.ChangeEvent) error {
	action, err := p.source.Action(ev)
	if err != nil {
		return err
	}

	uuid, err := p.keys.Resolve(ctx, ev, action, p.source.IDColumn())
	if err != nil {
		return err
	}

	p.logger.Debug("Resolved appointment event", "appointment_uuid", uuid, "action", action.String())

	return p.reconciler.Reconcile(ctx, uuid, action)
}
