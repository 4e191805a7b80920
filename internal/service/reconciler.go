package service

import (
	"context"
	"log/slog"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/mapper"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/metrics"
)

// AppointmentStore is the remote side of the sync
type AppointmentStore interface {
	FindAppointment(ctx context.Context, uuid string) (fhir.Lookup[fhir.Appointment], error)
	CreateAppointment(ctx context.Context, a *fhir.Appointment) error
	UpdateAppointment(ctx context.Context, a *fhir.Appointment) error
	DeleteAppointment(ctx context.Context, a *fhir.Appointment) error
}

// AppointmentSource reads the OpenMRS side of the sync
type AppointmentSource interface {
	Appointment(ctx context.Context, uuid string) (*models.AppointmentRow, error)
	Details(ctx context.Context, appt *models.AppointmentRow) (*models.AppointmentData, error)
}

// Outcome labels what a reconciliation did
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeAbsent    Outcome = "absent"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "error"
)

// Reconciler makes the hcw@home invite match the OpenMRS appointment
type Reconciler struct {
	store  AppointmentStore
	source AppointmentSource
	logger *slog.Logger
}

func NewReconciler(store AppointmentStore, source AppointmentSource, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, source: source, logger: logger.With("component", "reconciler")}
}

// Reconcile satisfies processor.Reconciler
func (r *Reconciler) Reconcile(ctx context.Context, uuid string, action models.SyncAction) error {
	_, err := r.ReconcileWithOutcome(ctx, uuid, action)
	return err
}

// ReconcileWithOutcome applies the action and reports what was done
func (r *Reconciler) ReconcileWithOutcome(ctx context.Context, uuid string, action models.SyncAction) (outcome Outcome, err error) {
	l := r.logger.With("appointment_uuid", uuid, "action", action.String())

	defer func() {
		if err != nil {
			outcome = OutcomeFailed
		}
		metrics.ReconcileOutcomes.WithLabelValues(action.String(), string(outcome)).Inc()
	}()

	found, err := r.store.FindAppointment(ctx, uuid)
	if err != nil {
		return OutcomeFailed, err
	}
	if found.State == fhir.Ambiguous {
		return OutcomeFailed, &syncerr.RemoteConsistencyError{ResourceType: fhir.ResourceAppointment, Identifier: uuid, Matches: found.Matches}
	}

	if action == models.ActionDelete {
		if found.State == fhir.NotFound {
			l.Debug("Skip delete because appointment does not exist in hcw@home")
			return OutcomeAbsent, nil
		}
		if err := r.store.DeleteAppointment(ctx, found.Resource); err != nil {
			return OutcomeFailed, err
		}
		l.Info("Appointment deleted from hcw@home")
		return OutcomeDeleted, nil
	}

	appt, err := r.source.Appointment(ctx, uuid)
	if err != nil {
		return OutcomeFailed, err
	}
	if appt == nil {
		l.Info("No appointment found in OpenMRS, skipping")
		return OutcomeSkipped, nil
	}

	if found.State == fhir.NotFound {
		return r.create(ctx, l, uuid, appt)
	}
	return r.update(ctx, l, found.Resource, appt)
}

func (r *Reconciler) create(ctx context.Context, l *slog.Logger, uuid string, appt *models.AppointmentRow) (Outcome, error) {
	if appt.Voided || appt.Status != models.StatusRequested {
		l.Info("Skipping appointment not eligible for hcw@home", "status", appt.Status, "voided", appt.Voided)
		return OutcomeSkipped, nil
	}

	data, err := r.source.Details(ctx, appt)
	if err != nil {
		return OutcomeFailed, err
	}

	remote, err := mapper.BuildAppointment(uuid, data)
	if err != nil {
		return OutcomeFailed, err
	}

	if err := r.store.CreateAppointment(ctx, remote); err != nil {
		return OutcomeFailed, err
	}

	l.Info("Appointment created in hcw@home", "status", remote.Status)
	return OutcomeCreated, nil
}

func (r *Reconciler) update(ctx context.Context, l *slog.Logger, remote *fhir.Appointment, appt *models.AppointmentRow) (Outcome, error) {
	data, err := r.source.Details(ctx, appt)
	if err != nil {
		return OutcomeFailed, err
	}

	if !mapper.DiffAndApply(remote, data) {
		l.Debug("Appointment already up to date in hcw@home")
		return OutcomeUnchanged, nil
	}

	if err := r.store.UpdateAppointment(ctx, remote); err != nil {
		return OutcomeFailed, err
	}

	l.Info("Appointment updated in hcw@home", "status", remote.Status)
	return OutcomeUpdated, nil
}
