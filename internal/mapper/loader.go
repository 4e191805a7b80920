package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/db"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
)

const (
	queryAppointment = `SELECT patient_appointment_id, uuid, patient_id, status, start_date_time, end_date_time, voided
		FROM patient_appointment WHERE uuid = ?`

	queryAppointmentUUID = `SELECT uuid FROM patient_appointment WHERE patient_appointment_id = ?`

	queryGender = `SELECT gender FROM person WHERE person_id = ?`

	queryName = `SELECT given_name, middle_name, family_name FROM person_name
		WHERE person_id = ? AND voided = 0 ORDER BY preferred DESC, person_name_id DESC LIMIT 1`

	queryAttributeType = `SELECT person_attribute_type_id FROM person_attribute_type WHERE uuid = ?`

	queryAttribute = `SELECT value FROM person_attribute
		WHERE person_id = ? AND person_attribute_type_id = ? AND voided = 0
		ORDER BY person_attribute_id DESC LIMIT 1`

	queryProviderPerson = `SELECT pr.person_id FROM patient_appointment_provider pap
		JOIN provider pr ON pr.provider_id = pap.provider_id
		WHERE pap.patient_appointment_id = ? AND pap.voided = 0
		ORDER BY pap.patient_appointment_provider_id LIMIT 1`

	queryEnded = `SELECT pa.uuid, pa.end_date_time, pe.uuid AS patient_uuid,
		(SELECT pr.uuid FROM patient_appointment_provider pap
			JOIN provider pr ON pr.provider_id = pap.provider_id
			WHERE pap.patient_appointment_id = pa.patient_appointment_id AND pap.voided = 0
			ORDER BY pap.patient_appointment_provider_id LIMIT 1) AS provider_uuid
		FROM patient_appointment pa
		JOIN person pe ON pe.person_id = pa.patient_id
		WHERE pa.appointment_kind = ? AND pa.status = ? AND pa.voided = 0 AND pa.end_date_time <= ?
		ORDER BY pa.end_date_time`
)

// Querier runs a parameterized read against the OpenMRS database
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]db.Row, error)
}

// Loader reads everything needed to build a remote appointment from OpenMRS
type Loader struct {
	q                 Querier
	emailAttrTypeUUID string
	logger            *slog.Logger

	mu              sync.Mutex
	emailAttrTypeID *int64
}

func NewLoader(q Querier, emailAttrTypeUUID string, logger *slog.Logger) *Loader {
	return &Loader{q: q, emailAttrTypeUUID: emailAttrTypeUUID, logger: logger}
}

// Appointment returns the appointment row, or nil when no row has this uuid
func (l *Loader) Appointment(ctx context.Context, uuid string) (*models.AppointmentRow, error) {
	rows, err := l.q.Query(ctx, queryAppointment, uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment %s: %w", uuid, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0]
	id, _ := r.Int64("patient_appointment_id")
	patientID, _ := r.Int64("patient_id")
	return &models.AppointmentRow{
		ID:        id,
		UUID:      r.String("uuid"),
		PatientID: patientID,
		Status:    r.String("status"),
		Start:     r.Time("start_date_time"),
		End:       r.Time("end_date_time"),
		Voided:    r.Bool("voided"),
	}, nil
}

// AppointmentUUID resolves an appointment id to its uuid, returning "" when absent
func (l *Loader) AppointmentUUID(ctx context.Context, appointmentID int64) (string, error) {
	rows, err := l.q.Query(ctx, queryAppointmentUUID, appointmentID)
	if err != nil {
		return "", fmt.Errorf("failed to look up uuid of appointment %d: %w", appointmentID, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].String("uuid"), nil
}

// Details loads the patient and provider data linked to the appointment
// Absent emails are left blank; callers decide whether that is acceptable
func (l *Loader) Details(ctx context.Context, appt *models.AppointmentRow) (*models.AppointmentData, error) {
	data := &models.AppointmentData{Appointment: *appt}

	rows, err := l.q.Query(ctx, queryGender, appt.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient gender: %w", err)
	}
	if len(rows) > 0 {
		data.PatientGender = rows[0].String("gender")
	}

	rows, err = l.q.Query(ctx, queryName, appt.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient name: %w", err)
	}
	if len(rows) > 0 {
		data.PatientName = &models.PersonName{
			Given:  rows[0].String("given_name"),
			Middle: rows[0].String("middle_name"),
			Family: rows[0].String("family_name"),
		}
	}

	if data.PatientEmail, err = l.email(ctx, appt.PatientID); err != nil {
		return nil, fmt.Errorf("failed to load patient email: %w", err)
	}

	rows, err = l.q.Query(ctx, queryProviderPerson, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment provider: %w", err)
	}
	if len(rows) > 0 {
		if personID, ok := rows[0].Int64("person_id"); ok {
			data.HasProvider = true
			if data.ProviderEmail, err = l.email(ctx, personID); err != nil {
				return nil, fmt.Errorf("failed to load provider email: %w", err)
			}
		}
	}

	return data, nil
}

// EndedAppointments lists virtual appointments still Requested whose end time is at or before now
func (l *Loader) EndedAppointments(ctx context.Context, now time.Time) ([]models.EndedAppointment, error) {
	rows, err := l.q.Query(ctx, queryEnded, models.KindVirtual, models.StatusRequested, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load ended appointments: %w", err)
	}

	out := make([]models.EndedAppointment, 0, len(rows))
	for _, r := range rows {
		end := r.Time("end_date_time")
		if end == nil || end.After(now) {
			continue
		}
		out = append(out, models.EndedAppointment{
			UUID:         r.String("uuid"),
			PatientUUID:  r.String("patient_uuid"),
			ProviderUUID: r.String("provider_uuid"),
			End:          *end,
		})
	}
	return out, nil
}

func (l *Loader) email(ctx context.Context, personID int64) (string, error) {
	typeID, err := l.emailAttributeTypeID(ctx)
	if err != nil {
		return "", err
	}

	rows, err := l.q.Query(ctx, queryAttribute, personID, typeID)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].String("value"), nil
}

// emailAttributeTypeID is looked up once and reused for the life of the process
func (l *Loader) emailAttributeTypeID(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.emailAttrTypeID != nil {
		return *l.emailAttrTypeID, nil
	}

	rows, err := l.q.Query(ctx, queryAttributeType, l.emailAttrTypeUUID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up email attribute type: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("no person attribute type found with uuid %s", l.emailAttrTypeUUID)
	}

	id, ok := rows[0].Int64("person_attribute_type_id")
	if !ok {
		return 0, fmt.Errorf("invalid id for person attribute type %s", l.emailAttrTypeUUID)
	}
	l.emailAttrTypeID = &id
	l.logger.Debug("Resolved email attribute type", "uuid", l.emailAttrTypeUUID, "id", id)

	return id, nil
}
