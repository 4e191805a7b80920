package processor

import (
	"context"
	"log/slog"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
)

// Router dispatches change events to the processor registered for their table
type Router struct {
	processors map[string]EventProcessor
}

func NewRouter() *Router {
	return &Router{processors: make(map[string]EventProcessor)}
}

func (r *Router) Register(table string, p EventProcessor) {
	r.processors[table] = p
}

// Tables lists the registered table names
func (r *Router) Tables() []string {
	tables := make([]string, 0, len(r.processors))
	for t := range r.processors {
		tables = append(tables, t)
	}
	return tables
}

func (r *Router) Route(ctx context.Context, ev models.ChangeEvent) error {
	p, ok := r.processors[ev.TableName]
	if !ok {
		return syncerr.Routingf("no processor registered for table %s", ev.TableName)
	}
	return p.Process(ctx, ev)
}

// NewAppointmentRouter wires the processors for every appointment table
func NewAppointmentRouter(keys *KeyResolver, reconciler Reconciler, logger *slog.Logger) *Router {
	r := NewRouter()
	for _, src := range []Source{AppointmentSource{}, AppointmentProviderSource{}} {
		r.Register(src.Table(), NewTableProcessor(src, keys, reconciler, logger))
	}
	return r
}
