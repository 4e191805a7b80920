package mapper

import (
	"testing"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() *models.AppointmentData {
	start := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	return &models.AppointmentData{
		Appointment: models.AppointmentRow{
			ID:        11,
			UUID:      "abc-123",
			PatientID: 7,
			Status:    "Requested",
			Start:     &start,
			End:       &end,
		},
		PatientGender: "F",
		PatientName:   &models.PersonName{Given: "Jane", Middle: "M", Family: "Doe"},
		PatientEmail:  "jane@example.org",
		HasProvider:   true,
		ProviderEmail: "dr.who@example.org",
	}
}

func TestBuildAppointment(t *testing.T) {
	appt, err := BuildAppointment("abc-123", sampleData())
	require.NoError(t, err)

	assert.Equal(t, fhir.ResourceAppointment, appt.ResourceType)
	assert.Equal(t, "abc-123", appt.IdentifierValue())
	assert.Equal(t, fhir.AppointmentProposed, appt.Status)
	assert.Equal(t, time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC), *appt.Start)

	patient := appt.ContainedPerson("#patient")
	require.NotNil(t, patient)
	assert.Equal(t, fhir.GenderFemale, patient.Gender)
	assert.Equal(t, fhir.HumanName{Family: "Doe", Given: []string{"Jane", "M"}}, patient.PrimaryName())
	assert.Equal(t, "jane@example.org", patient.Email())

	practitioner := appt.ContainedPerson("practitioner")
	require.NotNil(t, practitioner)
	assert.Equal(t, "dr.who@example.org", practitioner.Email())

	require.Len(t, appt.Participant, 2)
	assert.Equal(t, "#patient", appt.Participant[0].Actor.Reference)
	assert.Equal(t, "#practitioner", appt.Participant[1].Actor.Reference)
}

func TestBuildAppointment_MissingContacts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *models.AppointmentData)
		field  string
	}{
		{"patient email", func(d *models.AppointmentData) { d.PatientEmail = "" }, "email"},
		{"no provider", func(d *models.AppointmentData) { d.HasProvider = false; d.ProviderEmail = "" }, "provider"},
		{"provider email", func(d *models.AppointmentData) { d.ProviderEmail = "" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sampleData()
			tt.mutate(data)

			_, err := BuildAppointment("abc-123", data)

			var dq *syncerr.DataQualityError
			require.ErrorAs(t, err, &dq)
			assert.Equal(t, tt.field, dq.Field)
		})
	}
}

func TestDiffAndApply_Idempotent(t *testing.T) {
	remote, err := BuildAppointment("abc-123", sampleData())
	require.NoError(t, err)

	data := sampleData()
	data.Appointment.Status = "Missed"

	assert.True(t, DiffAndApply(remote, data))
	assert.Equal(t, fhir.AppointmentNoShow, remote.Status)
	assert.False(t, DiffAndApply(remote, data))
}

func TestDiffAndApply_UnchangedData(t *testing.T) {
	data := sampleData()
	data.PatientName.Family = "Jos\u00e9"
	remote, err := BuildAppointment("abc-123", data)
	require.NoError(t, err)

	// hcw@home echoes times in its own zone and may return decomposed accents
	local := remote.Start.In(time.FixedZone("EAT", 3*3600))
	remote.Start = &local
	remote.Contained[0].Name[0].Family = "Jose\u0301"

	assert.False(t, DiffAndApply(remote, data))
}

func TestDiffAndApply_EachField(t *testing.T) {
	later := time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(d *models.AppointmentData)
		check  func(t *testing.T, a *fhir.Appointment)
	}{
		{"start", func(d *models.AppointmentData) { d.Appointment.Start = &later }, func(t *testing.T, a *fhir.Appointment) {
			assert.Equal(t, later, *a.Start)
		}},
		{"end", func(d *models.AppointmentData) { d.Appointment.End = nil }, func(t *testing.T, a *fhir.Appointment) {
			assert.Nil(t, a.End)
		}},
		{"voided", func(d *models.AppointmentData) { d.Appointment.Voided = true }, func(t *testing.T, a *fhir.Appointment) {
			assert.Equal(t, fhir.AppointmentCancelled, a.Status)
		}},
		{"gender", func(d *models.AppointmentData) { d.PatientGender = "M" }, func(t *testing.T, a *fhir.Appointment) {
			assert.Equal(t, fhir.GenderMale, a.ContainedPerson("patient").Gender)
		}},
		{"name", func(d *models.AppointmentData) { d.PatientName.Family = "Smith" }, func(t *testing.T, a *fhir.Appointment) {
			assert.Equal(t, "Smith", a.ContainedPerson("patient").PrimaryName().Family)
		}},
		{"patient email", func(d *models.AppointmentData) { d.PatientEmail = "jane@new.org" }, func(t *testing.T, a *fhir.Appointment) {
			assert.Equal(t, "jane@new.org", a.ContainedPerson("patient").Email())
		}},
		{"practitioner email", func(d *models.AppointmentData) { d.ProviderEmail = "house@example.org" }, func(t *testing.T, a *fhir.Appointment) {
			assert.Equal(t, "house@example.org", a.ContainedPerson("practitioner").Email())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote, err := BuildAppointment("abc-123", sampleData())
			require.NoError(t, err)
			data := sampleData()
			tt.mutate(data)

			assert.True(t, DiffAndApply(remote, data))
			tt.check(t, remote)
			assert.False(t, DiffAndApply(remote, data))
		})
	}
}

func TestDiffAndApply_RestoresMissingContained(t *testing.T) {
	start := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	remote := &fhir.Appointment{
		ResourceType: fhir.ResourceAppointment,
		ID:           "7",
		Status:       fhir.AppointmentProposed,
		Start:        &start,
		End:          &end,
	}

	assert.True(t, DiffAndApply(remote, sampleData()))
	assert.Equal(t, "jane@example.org", remote.ContainedPerson("patient").Email())
	assert.Equal(t, "dr.who@example.org", remote.ContainedPerson("practitioner").Email())
	assert.Len(t, remote.Participant, 2)
}
