package hcw

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
)

// Client reads and writes hcw@home invites and consultations
type Client struct {
	session *Session
	logger  *slog.Logger
}

func NewClient(session *Session, logger *slog.Logger) *Client {
	return &Client{session: session, logger: logger.With("component", "hcw_client")}
}

// FindAppointment looks up the invite whose identifier is the OpenMRS appointment uuid
func (c *Client) FindAppointment(ctx context.Context, uuid string) (fhir.Lookup[fhir.Appointment], error) {
	c.logger.Debug("Getting appointment from hcw@home", "identifier", uuid)

	bundle, err := c.session.Client().Search(ctx, fhir.ResourceAppointment, url.Values{"identifier": {uuid}})
	if err != nil {
		return fhir.Lookup[fhir.Appointment]{}, err
	}
	return fhir.Single[fhir.Appointment](bundle)
}

// FindEncounterByAppointment looks up the consultation attached to the invite with the given identifier
func (c *Client) FindEncounterByAppointment(ctx context.Context, uuid string) (fhir.Lookup[fhir.Encounter], error) {
	c.logger.Debug("Getting encounter from hcw@home", "appointment_identifier", uuid)

	bundle, err := c.session.Client().Search(ctx, fhir.ResourceEncounter, url.Values{"appointment.identifier": {uuid}})
	if err != nil {
		return fhir.Lookup[fhir.Encounter]{}, err
	}
	return fhir.Single[fhir.Encounter](bundle)
}

func (c *Client) CreateAppointment(ctx context.Context, a *fhir.Appointment) error {
	out, err := c.session.Client().Create(ctx, fhir.ResourceAppointment, a)
	if err != nil {
		return &syncerr.RemoteCallError{Operation: "create", Err: err}
	}
	if !out.Created {
		return &syncerr.RemoteCallError{Operation: "create", StatusCode: out.StatusCode, Body: out.ServerMessage()}
	}

	c.logger.Debug("Successfully created appointment in hcw@home", "identifier", a.IdentifierValue())
	return nil
}

func (c *Client) UpdateAppointment(ctx context.Context, a *fhir.Appointment) error {
	out, err := c.session.Client().Update(ctx, fhir.ResourceAppointment, a.ID, a)
	if err != nil {
		return &syncerr.RemoteCallError{Operation: "update", Err: err}
	}
	if !out.OK() {
		return &syncerr.RemoteCallError{Operation: "update", StatusCode: out.StatusCode, Body: out.ServerMessage()}
	}

	c.logger.Debug("Successfully updated appointment in hcw@home", "identifier", a.IdentifierValue())
	return nil
}

func (c *Client) DeleteAppointment(ctx context.Context, a *fhir.Appointment) error {
	out, err := c.session.Client().Delete(ctx, fhir.ResourceAppointment, a.ID)
	if err != nil {
		return &syncerr.RemoteCallError{Operation: "delete", Err: err}
	}
	if !out.OK() {
		return &syncerr.RemoteCallError{Operation: "delete", StatusCode: out.StatusCode, Body: out.ServerMessage()}
	}

	c.logger.Debug("Successfully deleted appointment from hcw@home", "identifier", a.IdentifierValue())
	return nil
}
