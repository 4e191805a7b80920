package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/mapper"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/processor"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noLookup struct{}

func (noLookup) AppointmentUUID(context.Context, int64) (string, error) { return "", nil }

func TestChangeEventCreatesRemoteAppointment(t *testing.T) {
	row, data := requestedAppointment("abc-123")
	store := &fakeStore{}
	rec := NewReconciler(store, &fakeSource{row: row, data: data}, discardLogger())
	router := processor.NewAppointmentRouter(processor.NewKeyResolver(noLookup{}), rec, discardLogger())

	err := router.Route(t.Context(), models.ChangeEvent{TableName: "patient_appointment", Operation: "c", Identifier: "abc-123"})

	require.NoError(t, err)
	require.Len(t, store.created, 1)
	assert.Equal(t, "abc-123", store.created[0].IdentifierValue())
	assert.Equal(t, fhir.AppointmentProposed, store.created[0].Status)
	assert.Equal(t, 1, store.writes())
}

func TestReconcile_UpdateWithoutChangesWritesNothing(t *testing.T) {
	row, data := requestedAppointment("abc-123")
	remote, err := mapper.BuildAppointment("abc-123", data)
	require.NoError(t, err)
	remote.ID = "7"

	store := &fakeStore{lookup: fhir.Lookup[fhir.Appointment]{State: fhir.Found, Resource: remote, Matches: 1}}
	rec := NewReconciler(store, &fakeSource{row: row, data: data}, discardLogger())

	outcome, err := rec.ReconcileWithOutcome(t.Context(), "abc-123", models.ActionUpdate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Zero(t, store.writes())
}

func TestReconcile_UpdateAppliesDiff(t *testing.T) {
	row, data := requestedAppointment("abc-123")
	remote, err := mapper.BuildAppointment("abc-123", data)
	require.NoError(t, err)
	remote.ID = "7"
	row.Status = "Cancelled"

	store := &fakeStore{lookup: fhir.Lookup[fhir.Appointment]{State: fhir.Found, Resource: remote, Matches: 1}}
	rec := NewReconciler(store, &fakeSource{row: row, data: data}, discardLogger())

	outcome, err := rec.ReconcileWithOutcome(t.Context(), "abc-123", models.ActionUpdate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	require.Len(t, store.updated, 1)
	assert.Equal(t, "7", store.updated[0].ID)
	assert.Equal(t, fhir.AppointmentCancelled, store.updated[0].Status)
}

func TestReconcile_CreateActionOnExistingRemoteUpdates(t *testing.T) {
	row, data := requestedAppointment("abc-123")
	remote, err := mapper.BuildAppointment("abc-123", data)
	require.NoError(t, err)
	data.PatientEmail = "john@new.org"

	store := &fakeStore{lookup: fhir.Lookup[fhir.Appointment]{State: fhir.Found, Resource: remote, Matches: 1}}
	rec := NewReconciler(store, &fakeSource{row: row, data: data}, discardLogger())

	require.NoError(t, rec.Reconcile(t.Context(), "abc-123", models.ActionCreate))
	assert.Empty(t, store.created)
	assert.Len(t, store.updated, 1)
}

func TestReconcile_DeleteWithoutRemoteIsNoop(t *testing.T) {
	store := &fakeStore{}
	source := &fakeSource{}
	rec := NewReconciler(store, source, discardLogger())

	outcome, err := rec.ReconcileWithOutcome(t.Context(), "abc-123", models.ActionDelete)

	require.NoError(t, err)
	assert.Equal(t, OutcomeAbsent, outcome)
	assert.Zero(t, store.writes())
	assert.Zero(t, source.details)
}

func TestReconcile_Delete(t *testing.T) {
	remote := &fhir.Appointment{ResourceType: fhir.ResourceAppointment, ID: "7"}
	store := &fakeStore{lookup: fhir.Lookup[fhir.Appointment]{State: fhir.Found, Resource: remote, Matches: 1}}
	rec := NewReconciler(store, &fakeSource{}, discardLogger())

	require.NoError(t, rec.Reconcile(t.Context(), "abc-123", models.ActionDelete))
	assert.Equal(t, []*fhir.Appointment{remote}, store.deleted)
}

func TestReconcile_AmbiguousRemote(t *testing.T) {
	store := &fakeStore{lookup: fhir.Lookup[fhir.Appointment]{State: fhir.Ambiguous, Matches: 2}}
	rec := NewReconciler(store, &fakeSource{}, discardLogger())

	for _, action := range []models.SyncAction{models.ActionCreate, models.ActionUpdate, models.ActionDelete} {
		err := rec.Reconcile(t.Context(), "abc-123", action)

		var consistency *syncerr.RemoteConsistencyError
		require.ErrorAs(t, err, &consistency)
		assert.Equal(t, 2, consistency.Matches)
	}
	assert.Zero(t, store.writes())
}

func TestReconcile_CreateEligibility(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.AppointmentRow)
	}{
		{"voided", func(r *models.AppointmentRow) { r.Voided = true }},
		{"scheduled", func(r *models.AppointmentRow) { r.Status = "Scheduled" }},
		{"cancelled", func(r *models.AppointmentRow) { r.Status = "Cancelled" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, data := requestedAppointment("abc-123")
			tt.mutate(row)
			store := &fakeStore{}
			rec := NewReconciler(store, &fakeSource{row: row, data: data}, discardLogger())

			outcome, err := rec.ReconcileWithOutcome(t.Context(), "abc-123", models.ActionCreate)

			require.NoError(t, err)
			assert.Equal(t, OutcomeSkipped, outcome)
			assert.Zero(t, store.writes())
		})
	}
}

func TestReconcile_MissingLocalRowIsSkipped(t *testing.T) {
	store := &fakeStore{}
	rec := NewReconciler(store, &fakeSource{}, discardLogger())

	outcome, err := rec.ReconcileWithOutcome(t.Context(), "abc-123", models.ActionCreate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestReconcile_CreateRequiresEmails(t *testing.T) {
	row, data := requestedAppointment("abc-123")
	data.PatientEmail = ""
	store := &fakeStore{}
	rec := NewReconciler(store, &fakeSource{row: row, data: data}, discardLogger())

	err := rec.Reconcile(t.Context(), "abc-123", models.ActionCreate)

	var dq *syncerr.DataQualityError
	require.ErrorAs(t, err, &dq)
	assert.False(t, syncerr.Retryable(err))
	assert.Zero(t, store.writes())
}

func TestReconcile_RemoteFailuresPropagate(t *testing.T) {
	row, data := requestedAppointment("abc-123")
	store := &fakeStore{writeErr: &syncerr.RemoteCallError{Operation: "create", StatusCode: 400, Body: "bad invite"}}
	rec := NewReconciler(store, &fakeSource{row: row, data: data}, discardLogger())

	err := rec.Reconcile(t.Context(), "abc-123", models.ActionCreate)
	assert.EqualError(t, err, "bad invite")

	store = &fakeStore{findErr: errors.New("timeout")}
	rec = NewReconciler(store, &fakeSource{row: row, data: data}, discardLogger())
	assert.EqualError(t, rec.Reconcile(t.Context(), "abc-123", models.ActionUpdate), "timeout")
}
