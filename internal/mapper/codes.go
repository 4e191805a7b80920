package mapper

import (
	"strings"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
)

// Unspecified is returned when a source value has no remote equivalent
const Unspecified = ""

// MapGender converts an OpenMRS gender (M, F, O, U, any case) to a FHIR administrative gender
func MapGender(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "M":
		return fhir.GenderMale
	case "F":
		return fhir.GenderFemale
	case "O":
		return fhir.GenderOther
	case "U":
		return fhir.GenderUnknown
	default:
		return Unspecified
	}
}

// MapStatus converts an OpenMRS appointment status to a FHIR appointment status. Matching is exact
func MapStatus(raw string) string {
	switch raw {
	case "Requested":
		return fhir.AppointmentProposed
	case "WaitList":
		return fhir.AppointmentWaitlist
	case "Scheduled":
		return fhir.AppointmentBooked
	case "CheckedIn":
		return fhir.AppointmentCheckedIn
	case "Completed":
		return fhir.AppointmentFulfilled
	case "Cancelled":
		return fhir.AppointmentCancelled
	case "Missed":
		return fhir.AppointmentNoShow
	default:
		return Unspecified
	}
}
