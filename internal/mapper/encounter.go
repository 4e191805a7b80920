package mapper

import (
	"fmt"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
)

// AppointmentIdentifierSystem tags a back-filled encounter with the appointment it came from,
// so the sweep can find it again before writing a second one
const AppointmentIdentifierSystem = "urn:openmrs:hcw-athome:appointment"

// BuildLocalEncounter maps a finished hcw@home consultation into an OpenMRS encounter
// for the patient and provider of the appointment
func BuildLocalEncounter(remote *fhir.Encounter, appt models.EndedAppointment, encounterTypeUUID string) (*fhir.Encounter, error) {
	if appt.PatientUUID == "" {
		return nil, &syncerr.DataQualityError{Field: "patient", Owner: "appointment " + appt.UUID}
	}
	if appt.ProviderUUID == "" {
		return nil, &syncerr.DataQualityError{Field: "provider", Owner: "appointment " + appt.UUID}
	}

	period := &fhir.Period{End: utc(&appt.End)}
	if remote.Period != nil {
		if remote.Period.Start != nil {
			period.Start = utc(remote.Period.Start)
		}
		if remote.Period.End != nil {
			period.End = utc(remote.Period.End)
		}
	}

	return &fhir.Encounter{
		ResourceType: fhir.ResourceEncounter,
		Identifier:   []fhir.Identifier{{System: AppointmentIdentifierSystem, Value: appt.UUID}},
		Status:       "finished",
		Class:        &fhir.Coding{System: "http://terminology.hl7.org/CodeSystem/v3-ActCode", Code: "VR", Display: "virtual"},
		Type: []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{System: "http://fhir.openmrs.org/code-system/encounter-type", Code: encounterTypeUUID}},
		}},
		Subject: &fhir.Reference{
			Reference: fhir.FormatReference(fhir.ResourcePatient, appt.PatientUUID),
			Type:      fhir.ResourcePatient,
		},
		Participant: []fhir.EncounterParticipant{{
			Individual: &fhir.Reference{
				Reference: fhir.FormatReference(fhir.ResourcePractitioner, appt.ProviderUUID),
				Type:      fhir.ResourcePractitioner,
			},
		}},
		Period: period,
	}, nil
}

// EncounterLabel identifies a remote consultation in logs
func EncounterLabel(e *fhir.Encounter) string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s", fhir.ResourceEncounter, e.ID)
}
