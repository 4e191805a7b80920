// Package fhir holds the subset of FHIR R4 resources exchanged with hcw@home and OpenMRS,
// plus a small REST client for them.
package fhir

import (
	"strings"
	"time"
)

const (
	ResourceAppointment  = "Appointment"
	ResourceEncounter    = "Encounter"
	ResourcePatient      = "Patient"
	ResourcePractitioner = "Practitioner"
)

// Appointment status codes
const (
	AppointmentProposed   = "proposed"
	AppointmentPending    = "pending"
	AppointmentBooked     = "booked"
	AppointmentArrived    = "arrived"
	AppointmentFulfilled  = "fulfilled"
	AppointmentCancelled  = "cancelled"
	AppointmentNoShow     = "noshow"
	AppointmentCheckedIn  = "checked-in"
	AppointmentWaitlist   = "waitlist"
	AppointmentEnteredErr = "entered-in-error"
)

// Administrative gender codes
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

type Meta struct {
	VersionID   string     `json:"versionId,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`

	Extras Extras `json:"-"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`

	Extras Extras `json:"-"`
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`

	Extras Extras `json:"-"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`

	Extras Extras `json:"-"`
}

// Equal compares family and given names
func (n HumanName) Equal(o HumanName) bool {
	if n.Family != o.Family || len(n.Given) != len(o.Given) {
		return false
	}
	for i := range n.Given {
		if n.Given[i] != o.Given[i] {
			return false
		}
	}
	return true
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`

	Extras Extras `json:"-"`
}

type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Person is a contained Patient or Practitioner
// Only the fields hcw@home reads are modelled
type Person struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Gender       string         `json:"gender,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`

	Extras Extras `json:"-"`
}

// Email returns the first email contact point
func (p *Person) Email() string {
	for _, t := range p.Telecom {
		if t.System == "email" {
			return t.Value
		}
	}
	return ""
}

// SetEmail replaces the email contact point, adding one when missing
func (p *Person) SetEmail(email string) {
	for i, t := range p.Telecom {
		if t.System == "email" {
			p.Telecom[i].Value = email
			return
		}
	}
	p.Telecom = append(p.Telecom, ContactPoint{System: "email", Value: email})
}

// PrimaryName returns the first name or the zero value
func (p *Person) PrimaryName() HumanName {
	if len(p.Name) == 0 {
		return HumanName{}
	}
	return p.Name[0]
}

type AppointmentParticipant struct {
	Actor  *Reference `json:"actor,omitempty"`
	Status string     `json:"status"`

	Extras Extras `json:"-"`
}

type Appointment struct {
	ResourceType string                   `json:"resourceType"`
	ID           string                   `json:"id,omitempty"`
	Meta         *Meta                    `json:"meta,omitempty"`
	Contained    []Person                 `json:"contained,omitempty"`
	Identifier   []Identifier             `json:"identifier,omitempty"`
	Status       string                   `json:"status"`
	Start        *time.Time               `json:"start,omitempty"`
	End          *time.Time               `json:"end,omitempty"`
	Participant  []AppointmentParticipant `json:"participant,omitempty"`

	Extras Extras `json:"-"`
}

// ContainedPerson finds a contained resource by its local id, with or without the leading '#'
func (a *Appointment) ContainedPerson(id string) *Person {
	id = strings.TrimPrefix(id, "#")
	for i := range a.Contained {
		if strings.TrimPrefix(a.Contained[i].ID, "#") == id {
			return &a.Contained[i]
		}
	}
	return nil
}

// IdentifierValue returns the first identifier value
func (a *Appointment) IdentifierValue() string {
	if len(a.Identifier) == 0 {
		return ""
	}
	return a.Identifier[0].Value
}

type EncounterParticipant struct {
	Type       []CodeableConcept `json:"type,omitempty"`
	Individual *Reference        `json:"individual,omitempty"`
}

type Encounter struct {
	ResourceType string                 `json:"resourceType"`
	ID           string                 `json:"id,omitempty"`
	Meta         *Meta                  `json:"meta,omitempty"`
	Identifier   []Identifier           `json:"identifier,omitempty"`
	Status       string                 `json:"status"`
	Class        *Coding                `json:"class,omitempty"`
	Type         []CodeableConcept      `json:"type,omitempty"`
	Subject      *Reference             `json:"subject,omitempty"`
	Participant  []EncounterParticipant `json:"participant,omitempty"`
	Appointment  []Reference            `json:"appointment,omitempty"`
	Period       *Period                `json:"period,omitempty"`
}

// OperationOutcome is the FHIR error payload
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// FormatReference creates a FHIR reference string from resource type and id
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}
