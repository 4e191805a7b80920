package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/mapper"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/metrics"
)

// EndedAppointmentLister finds appointments whose consultation should be over
type EndedAppointmentLister interface {
	EndedAppointments(ctx context.Context, now time.Time) ([]models.EndedAppointment, error)
}

// EncounterFinder looks up the hcw@home consultation of an appointment
type EncounterFinder interface {
	FindEncounterByAppointment(ctx context.Context, uuid string) (fhir.Lookup[fhir.Encounter], error)
}

// EncounterWriter persists encounters in OpenMRS
type EncounterWriter interface {
	FindEncounterByIdentifier(ctx context.Context, system, value string) (string, error)
	SaveEncounter(ctx context.Context, enc *fhir.Encounter) (string, error)
}

// SweepLedger remembers which appointments already have a local encounter
type SweepLedger interface {
	IsProcessed(ctx context.Context, appointmentUUID string) (bool, error)
	MarkProcessed(ctx context.Context, appointmentUUID, encounterRef string) error
}

// SweepReport summarizes one sweep
type SweepReport struct {
	Scanned   int
	Persisted int
	Recovered int
	Skipped   int
	Failed    int
}

// Sweeper back-fills OpenMRS encounters for finished virtual appointments
type Sweeper struct {
	appointments      EndedAppointmentLister
	encounters        EncounterFinder
	writer            EncounterWriter
	ledger            SweepLedger
	encounterTypeUUID string
	initialDelay      time.Duration
	delay             time.Duration
	now               func() time.Time
	logger            *slog.Logger
}

func NewSweeper(
	appointments EndedAppointmentLister,
	encounters EncounterFinder,
	writer EncounterWriter,
	ledger SweepLedger,
	encounterTypeUUID string,
	initialDelay, delay time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		appointments:      appointments,
		encounters:        encounters,
		writer:            writer,
		ledger:            ledger,
		encounterTypeUUID: encounterTypeUUID,
		initialDelay:      initialDelay,
		delay:             delay,
		now:               time.Now,
		logger:            logger.With("component", "sweeper"),
	}
}

// Run sweeps after the initial delay and then again delay after each sweep finishes
// It blocks until the context is canceled
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Completion sweeper started", "initial_delay", s.initialDelay, "delay", s.delay)

	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper shutting down...")
			return
		case <-timer.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Sweep failed", "error", err)
			}
			timer.Reset(s.delay)
		}
	}
}

// RunOnce performs a single sweep. Only the listing query can fail it; per-appointment errors are logged and counted
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	var report SweepReport

	ended, err := s.appointments.EndedAppointments(ctx, s.now())
	if err != nil {
		return report, err
	}
	report.Scanned = len(ended)

	for _, appt := range ended {
		if ctx.Err() != nil {
			s.logger.Warn("Shutdown signal received, stopping sweep early", "remaining", report.Scanned-report.Persisted-report.Recovered-report.Skipped-report.Failed)
			return report, ctx.Err()
		}

		outcome, err := s.sweepOne(ctx, appt)
		metrics.SweepItems.WithLabelValues(outcome).Inc()

		switch {
		case err != nil:
			report.Failed++
			s.logger.Error("Failed to back-fill encounter",
				"appointment_uuid", appt.UUID,
				"kind", syncerr.Kind(err),
				"error", err,
			)
		case outcome == "persisted":
			report.Persisted++
		case outcome == "recovered":
			report.Recovered++
		default:
			report.Skipped++
		}
	}

	if report.Scanned > 0 {
		s.logger.Info("Sweep cycle telemetry",
			"scanned", report.Scanned,
			"persisted", report.Persisted,
			"recovered", report.Recovered,
			"skipped", report.Skipped,
			"failed", report.Failed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return report, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, appt models.EndedAppointment) (string, error) {
	l := s.logger.With("appointment_uuid", appt.UUID)

	done, err := s.ledger.IsProcessed(ctx, appt.UUID)
	if err != nil {
		return "error", err
	}
	if done {
		l.Debug("Encounter already back-filled")
		return "already_synced", nil
	}

	found, err := s.encounters.FindEncounterByAppointment(ctx, appt.UUID)
	if err != nil {
		return "error", err
	}
	switch found.State {
	case fhir.NotFound:
		// Either not synced to hcw@home yet or the consultation has not happened
		l.Debug("No encounter found in hcw@home")
		return "no_encounter", nil
	case fhir.Ambiguous:
		return "error", &syncerr.RemoteConsistencyError{ResourceType: fhir.ResourceEncounter, Identifier: appt.UUID, Matches: found.Matches}
	}

	local, err := mapper.BuildLocalEncounter(found.Resource, appt, s.encounterTypeUUID)
	if err != nil {
		return "error", err
	}

	// A previous sweep may have written the encounter and then failed to record it
	ref, err := s.writer.FindEncounterByIdentifier(ctx, mapper.AppointmentIdentifierSystem, appt.UUID)
	if err != nil {
		return "error", err
	}
	outcome := "recovered"
	if ref == "" {
		if ref, err = s.writer.SaveEncounter(ctx, local); err != nil {
			return "error", err
		}
		outcome = "persisted"
	}

	if err := s.ledger.MarkProcessed(ctx, appt.UUID, ref); err != nil {
		return "error", err
	}

	l.Info("Encounter back-filled from hcw@home", "remote", mapper.EncounterLabel(found.Resource), "local", ref, "outcome", outcome)
	return outcome, nil
}
