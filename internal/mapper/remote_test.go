package mapper

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/hcw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// invite is an Appointment as hcw@home returns it once the invite has moved on
const invite = `{
  "resourceType": "Appointment",
  "id": "65f1c0de9a",
  "meta": {"versionId": "3", "source": "hcw-athome"},
  "status": %q,
  "description": "Teleconsultation follow-up",
  "comment": "Patient prefers French",
  "minutesDuration": 30,
  "extension": [{"url": "http://hcw-athome.org/fhir/StructureDefinition/invite-link", "valueUrl": "https://hcw.example.org/i/abc"}],
  "identifier": [{"system": "urn:openmrs:appointment", "value": "abc-123", "use": "official"}],
  "start": "2025-10-01T12:00:00+03:00",
  "end": "2025-10-01T12:30:00+03:00",
  "contained": [
    {
      "resourceType": "Patient",
      "id": "patient",
      "gender": "female",
      "birthDate": "1990-04-02",
      "name": [{"family": "Doe", "given": ["Jane", "M"], "prefix": ["Ms"]}],
      "telecom": [
        {"system": "email", "value": "jane@example.org", "rank": 1},
        {"system": "phone", "value": "+41790000000"}
      ]
    },
    {
      "resourceType": "Practitioner",
      "id": "practitioner",
      "telecom": [{"system": "email", "value": "dr.who@example.org"}]
    },
    {"resourceType": "Location", "id": "room", "name": "Virtual room 4"}
  ],
  "participant": [
    {"actor": {"reference": "#patient"}, "status": "accepted", "type": [{"text": "patient"}]},
    {"actor": {"reference": "#practitioner"}, "status": "accepted", "required": "required"}
  ]
}`

func decodeInvite(t *testing.T, remoteStatus string) *fhir.Appointment {
	t.Helper()
	body := hcw.NormalizeAppointmentStatus([]byte(fmt.Sprintf(invite, remoteStatus)))

	var a fhir.Appointment
	require.NoError(t, json.Unmarshal(body, &a))
	return &a
}

func TestDiffAndApply_LeavesInviteLifecycleAlone(t *testing.T) {
	for _, remoteStatus := range []string{"PENDING", "SENT", "ACCEPTED", "READ", "SCHEDULED"} {
		t.Run(remoteStatus, func(t *testing.T) {
			remote := decodeInvite(t, remoteStatus)
			before := remote.Status

			assert.False(t, DiffAndApply(remote, sampleData()))
			assert.Equal(t, before, remote.Status)
		})
	}
}

func TestDiffAndApply_PushesTerminalStatus(t *testing.T) {
	tests := []struct {
		name   string
		status string
		voided bool
		want   string
	}{
		{"cancelled", "Cancelled", false, fhir.AppointmentCancelled},
		{"voided", "Requested", true, fhir.AppointmentCancelled},
		{"missed", "Missed", false, fhir.AppointmentNoShow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := decodeInvite(t, "ACCEPTED")
			data := sampleData()
			data.Appointment.Status = tt.status
			data.Appointment.Voided = tt.voided

			assert.True(t, DiffAndApply(remote, data))
			assert.Equal(t, tt.want, remote.Status)
			assert.False(t, DiffAndApply(remote, data))
		})
	}
}

func TestStatusToPush(t *testing.T) {
	data := sampleData()

	_, ok := StatusToPush(fhir.AppointmentBooked, data.Appointment)
	assert.False(t, ok)

	got, ok := StatusToPush("", data.Appointment)
	assert.True(t, ok)
	assert.Equal(t, fhir.AppointmentProposed, got)

	data.Appointment.Status = "Cancelled"
	_, ok = StatusToPush(fhir.AppointmentCancelled, data.Appointment)
	assert.False(t, ok)
}

func TestDiffAndApply_KeepsUnmodelledRemoteFields(t *testing.T) {
	remote := decodeInvite(t, "SENT")
	data := sampleData()
	data.PatientEmail = "jane@new.org"
	data.PatientName.Family = "Smith"

	require.True(t, DiffAndApply(remote, data))

	body, err := json.Marshal(remote)
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(body, &sent))

	assert.Equal(t, "Teleconsultation follow-up", sent["description"])
	assert.Equal(t, "Patient prefers French", sent["comment"])
	assert.EqualValues(t, 30, sent["minutesDuration"])
	assert.Len(t, sent["extension"], 1)
	assert.Equal(t, fhir.AppointmentPending, sent["status"])
	assert.Equal(t, "hcw-athome", sent["meta"].(map[string]any)["source"])
	assert.Equal(t, "official", sent["identifier"].([]any)[0].(map[string]any)["use"])

	contained := sent["contained"].([]any)
	require.Len(t, contained, 3)

	patient := contained[0].(map[string]any)
	assert.Equal(t, "1990-04-02", patient["birthDate"])
	name := patient["name"].([]any)[0].(map[string]any)
	assert.Equal(t, "Smith", name["family"])
	assert.Equal(t, []any{"Ms"}, name["prefix"])

	telecom := patient["telecom"].([]any)
	require.Len(t, telecom, 2)
	assert.Equal(t, "jane@new.org", telecom[0].(map[string]any)["value"])
	assert.EqualValues(t, 1, telecom[0].(map[string]any)["rank"])
	assert.Equal(t, "+41790000000", telecom[1].(map[string]any)["value"])

	room := contained[2].(map[string]any)
	assert.Equal(t, "Location", room["resourceType"])
	assert.Equal(t, "Virtual room 4", room["name"])

	participants := sent["participant"].([]any)
	assert.Equal(t, []any{map[string]any{"text": "patient"}}, participants[0].(map[string]any)["type"])
	assert.Equal(t, "required", participants[1].(map[string]any)["required"])
}
