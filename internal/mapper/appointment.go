package mapper

import (
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/encoding"
)

// Local ids of the resources contained in a remote appointment
const (
	ContainedPatient      = "patient"
	ContainedPractitioner = "practitioner"
)

// RequireContacts fails when hcw@home cannot send an invite for lack of an email address
func RequireContacts(data *models.AppointmentData) error {
	owner := "appointment " + data.Appointment.UUID
	if data.PatientEmail == "" {
		return &syncerr.DataQualityError{Field: "email", Owner: "patient of " + owner}
	}
	if !data.HasProvider {
		return &syncerr.DataQualityError{Field: "provider", Owner: owner}
	}
	if data.ProviderEmail == "" {
		return &syncerr.DataQualityError{Field: "email", Owner: "provider of " + owner}
	}
	return nil
}

// RemoteStatus is the status hcw@home should show. A voided appointment is always cancelled
func RemoteStatus(appt models.AppointmentRow) string {
	if appt.Voided {
		return fhir.AppointmentCancelled
	}
	return MapStatus(appt.Status)
}

// StatusToPush returns the status an update must write, if any. Once the invite exists hcw@home
// owns its lifecycle (pending, booked, arrived, ...), so only OpenMRS decisions that end the
// consultation are pushed: cancelled (including voided) and noshow.
func StatusToPush(remoteStatus string, appt models.AppointmentRow) (string, bool) {
	local := RemoteStatus(appt)
	switch {
	case remoteStatus == "" && local != Unspecified:
		return local, true
	case local == fhir.AppointmentCancelled, local == fhir.AppointmentNoShow:
		return local, remoteStatus != local
	default:
		return "", false
	}
}

// BuildAppointment assembles a new hcw@home invite for the OpenMRS appointment
func BuildAppointment(uuid string, data *models.AppointmentData) (*fhir.Appointment, error) {
	if err := RequireContacts(data); err != nil {
		return nil, err
	}

	patient := fhir.Person{
		ResourceType: fhir.ResourcePatient,
		ID:           ContainedPatient,
		Gender:       MapGender(data.PatientGender),
		Telecom:      []fhir.ContactPoint{{System: "email", Value: data.PatientEmail}},
	}
	if name, ok := humanName(data.PatientName); ok {
		patient.Name = []fhir.HumanName{name}
	}

	practitioner := fhir.Person{
		ResourceType: fhir.ResourcePractitioner,
		ID:           ContainedPractitioner,
		Telecom:      []fhir.ContactPoint{{System: "email", Value: data.ProviderEmail}},
	}

	return &fhir.Appointment{
		ResourceType: fhir.ResourceAppointment,
		Identifier:   []fhir.Identifier{{Value: uuid}},
		Status:       RemoteStatus(data.Appointment),
		Start:        utc(data.Appointment.Start),
		End:          utc(data.Appointment.End),
		Contained:    []fhir.Person{patient, practitioner},
		Participant: []fhir.AppointmentParticipant{
			{Actor: &fhir.Reference{Reference: "#" + ContainedPatient}, Status: "accepted"},
			{Actor: &fhir.Reference{Reference: "#" + ContainedPractitioner}, Status: "accepted"},
		},
	}, nil
}

// DiffAndApply copies onto remote every field that differs from the OpenMRS data and reports whether anything changed
// Compared: start, end, terminal status (see StatusToPush), patient gender, patient name, patient email, practitioner email
func DiffAndApply(remote *fhir.Appointment, data *models.AppointmentData) bool {
	modified := false

	if !sameInstant(remote.Start, data.Appointment.Start) {
		remote.Start = utc(data.Appointment.Start)
		modified = true
	}
	if !sameInstant(remote.End, data.Appointment.End) {
		remote.End = utc(data.Appointment.End)
		modified = true
	}
	if status, ok := StatusToPush(remote.Status, data.Appointment); ok {
		remote.Status = status
		modified = true
	}

	patient := containedPerson(remote, fhir.ResourcePatient, ContainedPatient)
	if gender := MapGender(data.PatientGender); patient.Gender != gender {
		patient.Gender = gender
		modified = true
	}
	if name, ok := humanName(data.PatientName); ok && !sameName(patient.PrimaryName(), name) {
		if len(patient.Name) == 0 {
			patient.Name = []fhir.HumanName{name}
		} else {
			patient.Name[0].Family = name.Family
			patient.Name[0].Given = name.Given
		}
		modified = true
	}
	if data.PatientEmail != "" && patient.Email() != data.PatientEmail {
		patient.SetEmail(data.PatientEmail)
		modified = true
	}

	if data.ProviderEmail != "" {
		practitioner := containedPerson(remote, fhir.ResourcePractitioner, ContainedPractitioner)
		if practitioner.Email() != data.ProviderEmail {
			practitioner.SetEmail(data.ProviderEmail)
			modified = true
		}
	}

	return modified
}

// containedPerson returns the contained resource, adding it and its participant when hcw@home dropped it
func containedPerson(a *fhir.Appointment, resourceType, id string) *fhir.Person {
	if p := a.ContainedPerson(id); p != nil {
		return p
	}
	for i := range a.Contained {
		if a.Contained[i].ResourceType == resourceType {
			return &a.Contained[i]
		}
	}

	a.Contained = append(a.Contained, fhir.Person{ResourceType: resourceType, ID: id})
	a.Participant = append(a.Participant, fhir.AppointmentParticipant{
		Actor:  &fhir.Reference{Reference: "#" + id},
		Status: "accepted",
	})
	return &a.Contained[len(a.Contained)-1]
}

func humanName(n *models.PersonName) (fhir.HumanName, bool) {
	if n == nil {
		return fhir.HumanName{}, false
	}
	name := fhir.HumanName{Family: encoding.Normalize(n.Family)}
	if g := encoding.Normalize(n.Given); g != "" {
		name.Given = append(name.Given, g)
	}
	if m := encoding.Normalize(n.Middle); m != "" {
		name.Given = append(name.Given, m)
	}
	return name, true
}

func sameName(remote, local fhir.HumanName) bool {
	normalized := fhir.HumanName{Family: encoding.Normalize(remote.Family)}
	for _, g := range remote.Given {
		normalized.Given = append(normalized.Given, encoding.Normalize(g))
	}
	return normalized.Equal(local)
}

// sameInstant compares at second precision, which is all OpenMRS stores
func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
