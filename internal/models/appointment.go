package models

import "time"

// Source table names handled by the engine
const (
	TableAppointment         = "patient_appointment"
	TableAppointmentProvider = "patient_appointment_provider"
)

// OpenMRS appointment status and kind values
const (
	StatusRequested = "Requested"
	KindVirtual     = "Virtual"
)

// AppointmentRow is the relational projection of patient_appointment
type AppointmentRow struct {
	ID        int64
	UUID      string
	PatientID int64
	Status    string
	Start     *time.Time
	End       *time.Time
	Voided    bool
}

// PersonName is the preferred non-voided name of a person
type PersonName struct {
	Given  string
	Middle string
	Family string
}

// AppointmentData is everything read from the source database to build or diff the remote appointment
type AppointmentData struct {
	Appointment   AppointmentRow
	PatientGender string
	PatientName   *PersonName
	PatientEmail  string
	HasProvider   bool
	ProviderEmail string
}

// EndedAppointment is a row picked up by the completion sweep
type EndedAppointment struct {
	UUID         string
	PatientUUID  string
	ProviderUUID string
	End          time.Time
}

// AuthToken is an access token with the instant after which it must be refreshed
type AuthToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// IsExpired reports whether the refresh instant has been reached
func (t *AuthToken) IsExpired(now time.Time) bool {
	return t == nil || !now.Before(t.ExpiresAt)
}
