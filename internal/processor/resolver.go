package processor

import (
	"context"
	"strconv"
	"strings"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
)

// ResolveAction maps a CDC operation code to a sync action
func ResolveAction(op string) (models.SyncAction, error) {
	switch op {
	case "c":
		return models.ActionCreate, nil
	case "u":
		return models.ActionUpdate, nil
	case "d":
		return models.ActionDelete, nil
	default:
		return 0, syncerr.Routingf("unknown operation %q", op)
	}
}

// UUIDLookup resolves an appointment id to its uuid
type UUIDLookup interface {
	AppointmentUUID(ctx context.Context, appointmentID int64) (string, error)
}

// KeyResolver finds the appointment uuid an event refers to
type KeyResolver struct {
	lookup UUIDLookup
}

func NewKeyResolver(lookup UUIDLookup) *KeyResolver {
	return &KeyResolver{lookup: lookup}
}

// Resolve uses the event identifier when present. Otherwise it reads the appointment id from the
// snapshot (before for deletes, after for the rest, then the other one) and looks the uuid up
func (r *KeyResolver) Resolve(ctx context.Context, ev models.ChangeEvent, action models.SyncAction, idColumn string) (string, error) {
	if id := strings.TrimSpace(ev.Identifier); id != "" {
		return id, nil
	}

	first, second := ev.After(), ev.Before()
	if action == models.ActionDelete {
		first, second = second, first
	}

	appointmentID, ok := intColumn(first, idColumn)
	if !ok {
		appointmentID, ok = intColumn(second, idColumn)
	}
	if !ok {
		return "", syncerr.Routingf("no %s found in %s event %v", idColumn, ev.TableName, ev.PrimaryKeyID)
	}

	uuid, err := r.lookup.AppointmentUUID(ctx, appointmentID)
	if err != nil {
		return "", err
	}
	if uuid == "" {
		return "", syncerr.Routingf("no appointment found with id %d", appointmentID)
	}
	return uuid, nil
}

// intColumn reads an id from a decoded JSON snapshot
func intColumn(snapshot map[string]any, col string) (int64, bool) {
	switch v := snapshot[col].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	}
	return 0, false
}
