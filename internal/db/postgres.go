package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger records back-filled encounters and rejected events
type PostgresLedger struct {
	q      querier
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresLedger(ctx context.Context, connString string, logger *slog.Logger) (*PostgresLedger, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres not responding: %w", err)
	}

	return &PostgresLedger{q: p, pool: p, logger: logger}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS hcw_encounter_sync (
    appointment_uuid VARCHAR(38) PRIMARY KEY,
    encounter_ref    TEXT NOT NULL,
    synced_at        TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS hcw_sync_failure (
    id             BIGSERIAL PRIMARY KEY,
    correlation_id TEXT NOT NULL,
    table_name     TEXT NOT NULL,
    operation      TEXT NOT NULL,
    identifier     TEXT,
    kind           TEXT NOT NULL,
    error_log      TEXT NOT NULL,
    payload        TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// EnsureSchema creates the ledger tables when missing
func (r *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

// IsProcessed reports whether an encounter was already persisted for the appointment
func (r *PostgresLedger) IsProcessed(ctx context.Context, appointmentUUID string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT EXISTS (SELECT 1 FROM hcw_encounter_sync WHERE appointment_uuid = $1)`

	var exists bool
	if err := r.q.QueryRow(opCtx, query, appointmentUUID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check encounter ledger: %w", err)
	}
	return exists, nil
}

// MarkProcessed records the local encounter created for the appointment
func (r *PostgresLedger) MarkProcessed(ctx context.Context, appointmentUUID, encounterRef string) error {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO hcw_encounter_sync (appointment_uuid, encounter_ref)
		VALUES ($1, $2)
		ON CONFLICT (appointment_uuid) DO NOTHING
	`
	tag, err := r.q.Exec(opCtx, query, appointmentUUID, encounterRef)
	if err != nil {
		return fmt.Errorf("failed to mark appointment as processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Idempotency race detected: appointment already in ledger", "appointment_uuid", appointmentUUID)
	}
	return nil
}

// RecordFailure stores a rejected event for manual follow-up
func (r *PostgresLedger) RecordFailure(ctx context.Context, f models.SyncFailure) error {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var payload any
	if len(f.Payload) > 0 {
		payload = string(f.Payload)
	}

	query := `
		INSERT INTO hcw_sync_failure (correlation_id, table_name, operation, identifier, kind, error_log, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.q.Exec(opCtx, query, f.CorrelationID, f.TableName, f.Operation, f.Identifier, f.Kind, f.ErrorLog, payload); err != nil {
		return fmt.Errorf("failed to record sync failure: %w", err)
	}
	return nil
}

func (r *PostgresLedger) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}
