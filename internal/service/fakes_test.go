package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	lookup   fhir.Lookup[fhir.Appointment]
	findErr  error
	writeErr error

	created []*fhir.Appointment
	updated []*fhir.Appointment
	deleted []*fhir.Appointment
}

func (f *fakeStore) FindAppointment(context.Context, string) (fhir.Lookup[fhir.Appointment], error) {
	return f.lookup, f.findErr
}

func (f *fakeStore) CreateAppointment(_ context.Context, a *fhir.Appointment) error {
	f.created = append(f.created, a)
	return f.writeErr
}

func (f *fakeStore) UpdateAppointment(_ context.Context, a *fhir.Appointment) error {
	f.updated = append(f.updated, a)
	return f.writeErr
}

func (f *fakeStore) DeleteAppointment(_ context.Context, a *fhir.Appointment) error {
	f.deleted = append(f.deleted, a)
	return f.writeErr
}

func (f *fakeStore) writes() int {
	return len(f.created) + len(f.updated) + len(f.deleted)
}

type fakeSource struct {
	row     *models.AppointmentRow
	data    *models.AppointmentData
	err     error
	details int
}

func (f *fakeSource) Appointment(context.Context, string) (*models.AppointmentRow, error) {
	return f.row, f.err
}

func (f *fakeSource) Details(_ context.Context, appt *models.AppointmentRow) (*models.AppointmentData, error) {
	f.details++
	d := *f.data
	d.Appointment = *appt
	return &d, nil
}

func requestedAppointment(uuid string) (*models.AppointmentRow, *models.AppointmentData) {
	start := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	row := &models.AppointmentRow{ID: 11, UUID: uuid, PatientID: 7, Status: "Requested", Start: &start, End: &end}
	return row, &models.AppointmentData{
		Appointment:   *row,
		PatientGender: "M",
		PatientName:   &models.PersonName{Given: "John", Family: "Doe"},
		PatientEmail:  "john@example.org",
		HasProvider:   true,
		ProviderEmail: "dr@example.org",
	}
}
