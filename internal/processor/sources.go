package processor

import (
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
)

// Source describes how events of one table map to an appointment sync
type Source interface {
	Table() string
	// IDColumn names the snapshot column holding the appointment id when the event carries no uuid
	IDColumn() string
	Action(ev models.ChangeEvent) (models.SyncAction, error)
}

// AppointmentSource handles patient_appointment rows
type AppointmentSource struct{}

func (AppointmentSource) Table() string    { return models.TableAppointment }
func (AppointmentSource) IDColumn() string { return "patient_appointment_id" }

func (AppointmentSource) Action(ev models.ChangeEvent) (models.SyncAction, error) {
	return ResolveAction(ev.Operation)
}

// AppointmentProviderSource handles patient_appointment_provider rows
// Any change to the provider list is an update of the parent appointment
type AppointmentProviderSource struct{}

func (AppointmentProviderSource) Table() string    { return models.TableAppointmentProvider }
func (AppointmentProviderSource) IDColumn() string { return "patient_appointment_id" }

func (AppointmentProviderSource) Action(ev models.ChangeEvent) (models.SyncAction, error) {
	if _, err := ResolveAction(ev.Operation); err != nil {
		return 0, err
	}
	return models.ActionUpdate, nil
}
