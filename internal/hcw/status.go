package hcw

import (
	"encoding/json"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
)

// hcw@home reports invite and messaging states instead of FHIR appointment codes
var remoteStatuses = map[string]string{
	"PENDING":              fhir.AppointmentProposed,
	"SENT":                 fhir.AppointmentPending,
	"ACCEPTED":             fhir.AppointmentBooked,
	"ACKNOWLEDGED":         fhir.AppointmentBooked,
	"COMPLETE":             fhir.AppointmentFulfilled,
	"REFUSED":              fhir.AppointmentCancelled,
	"CANCELED":             fhir.AppointmentCancelled,
	"SCHEDULED_FOR_INVITE": fhir.AppointmentBooked,
	"SCHEDULED":            fhir.AppointmentBooked,

	// WhatsApp delivery states
	"QUEUED":              fhir.AppointmentPending,
	"SENDING":             fhir.AppointmentPending,
	"FAILED":              fhir.AppointmentCancelled,
	"DELIVERED":           fhir.AppointmentBooked,
	"PARTIALLY_DELIVERED": fhir.AppointmentBooked,
	"UNDELIVERED":         fhir.AppointmentCancelled,
	"RECEIVING":           fhir.AppointmentBooked,
	"RECEIVED":            fhir.AppointmentBooked,
	"READ":                fhir.AppointmentArrived,
}

// NormalizeStatus maps an hcw@home status to a FHIR appointment status, leaving unknown values untouched
func NormalizeStatus(s string) string {
	if mapped, ok := remoteStatuses[s]; ok {
		return mapped
	}
	return s
}

// NormalizeAppointmentStatus rewrites the status of an Appointment body, or of every Appointment in a Bundle
func NormalizeAppointmentStatus(body []byte) []byte {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}

	changed := false
	switch doc["resourceType"] {
	case fhir.ResourceAppointment:
		changed = fixStatus(doc)
	case "Bundle":
		entries, _ := doc["entry"].([]any)
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if res, ok := entry["resource"].(map[string]any); ok && res["resourceType"] == fhir.ResourceAppointment {
				changed = fixStatus(res) || changed
			}
		}
	}

	if !changed {
		return body
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return body
	}
	return out
}

func fixStatus(res map[string]any) bool {
	status, ok := res["status"].(string)
	if !ok {
		return false
	}
	mapped := NormalizeStatus(status)
	if mapped == status {
		return false
	}
	res["status"] = mapped
	return true
}
