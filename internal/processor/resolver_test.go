package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	uuids map[int64]string
	err   error
	asked []int64
}

func (f *fakeLookup) AppointmentUUID(_ context.Context, id int64) (string, error) {
	f.asked = append(f.asked, id)
	return f.uuids[id], f.err
}

func TestResolveAction(t *testing.T) {
	tests := map[string]models.SyncAction{
		"c": models.ActionCreate,
		"u": models.ActionUpdate,
		"d": models.ActionDelete,
	}
	for op, want := range tests {
		got, err := ResolveAction(op)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	for _, op := range []string{"", "r", "C", "create"} {
		_, err := ResolveAction(op)
		var routing *syncerr.RoutingError
		assert.ErrorAs(t, err, &routing, op)
	}
}

func TestKeyResolver_PrefersIdentifier(t *testing.T) {
	lookup := &fakeLookup{}
	r := NewKeyResolver(lookup)

	uuid, err := r.Resolve(t.Context(), models.ChangeEvent{Identifier: " abc-123 "}, models.ActionCreate, "patient_appointment_id")

	require.NoError(t, err)
	assert.Equal(t, "abc-123", uuid)
	assert.Empty(t, lookup.asked)
}

func TestKeyResolver_SnapshotSelection(t *testing.T) {
	lookup := &fakeLookup{uuids: map[int64]string{1: "before-uuid", 2: "after-uuid"}}
	r := NewKeyResolver(lookup)
	ev := models.ChangeEvent{
		TableName: models.TableAppointmentProvider,
		Snapshot: &models.EventSnapshot{
			Prev:    map[string]any{"patient_appointment_id": float64(1)},
			Current: map[string]any{"patient_appointment_id": float64(2)},
		},
	}

	uuid, err := r.Resolve(t.Context(), ev, models.ActionDelete, "patient_appointment_id")
	require.NoError(t, err)
	assert.Equal(t, "before-uuid", uuid)

	uuid, err = r.Resolve(t.Context(), ev, models.ActionUpdate, "patient_appointment_id")
	require.NoError(t, err)
	assert.Equal(t, "after-uuid", uuid)
}

func TestKeyResolver_FallsBackToOtherSnapshot(t *testing.T) {
	lookup := &fakeLookup{uuids: map[int64]string{5: "abc-123"}}
	r := NewKeyResolver(lookup)
	ev := models.ChangeEvent{Snapshot: &models.EventSnapshot{Prev: map[string]any{"patient_appointment_id": "5"}}}

	uuid, err := r.Resolve(t.Context(), ev, models.ActionUpdate, "patient_appointment_id")

	require.NoError(t, err)
	assert.Equal(t, "abc-123", uuid)
}

func TestKeyResolver_Failures(t *testing.T) {
	t.Run("no foreign key", func(t *testing.T) {
		r := NewKeyResolver(&fakeLookup{})
		_, err := r.Resolve(t.Context(), models.ChangeEvent{TableName: "patient_appointment_provider"}, models.ActionUpdate, "patient_appointment_id")

		var routing *syncerr.RoutingError
		assert.ErrorAs(t, err, &routing)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		r := NewKeyResolver(&fakeLookup{uuids: map[int64]string{}})
		ev := models.ChangeEvent{Snapshot: &models.EventSnapshot{Current: map[string]any{"patient_appointment_id": float64(9)}}}
		_, err := r.Resolve(t.Context(), ev, models.ActionUpdate, "patient_appointment_id")

		var routing *syncerr.RoutingError
		assert.ErrorAs(t, err, &routing)
	})

	t.Run("lookup error", func(t *testing.T) {
		boom := errors.New("db down")
		r := NewKeyResolver(&fakeLookup{err: boom})
		ev := models.ChangeEvent{Snapshot: &models.EventSnapshot{Current: map[string]any{"patient_appointment_id": float64(9)}}}
		_, err := r.Resolve(t.Context(), ev, models.ActionUpdate, "patient_appointment_id")

		assert.ErrorIs(t, err, boom)
		assert.True(t, syncerr.Retryable(err))
	})
}
