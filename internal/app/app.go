package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/config"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/db"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/hcw"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/mapper"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/openmrs"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/processor"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/service"
)

// App holds the wired components shared by the daemon and the CLI
type App struct {
	Source     *db.MySQLGateway
	Ledger     *db.PostgresLedger
	Session    *hcw.Session
	Hcw        *hcw.Client
	Loader     *mapper.Loader
	Reconciler *service.Reconciler
	Router     *processor.Router
	Handler    *processor.SyncHandler
	Feedback   *service.FeedbackService
	Sweeper    *service.Sweeper
}

// New connects to both databases and builds the sync pipeline
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	source, err := db.NewMySQLGateway(cfg.SourceDatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("openmrs database: %w", err)
	}

	ledger, err := db.NewPostgresLedger(ctx, cfg.LedgerDatabaseURL, logger)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("ledger database: %w", err)
	}

	if err := ledger.EnsureSchema(ctx); err != nil {
		ledger.Close()
		source.Close()
		return nil, err
	}

	a := Wire(cfg, source, ledger, logger)
	a.Source = source
	a.Ledger = ledger
	return a, nil
}

// Wire builds everything above the database connections
func Wire(cfg *config.Config, source mapper.Querier, ledger Ledger, logger *slog.Logger) *App {
	httpClient := fhir.NewHTTPClient(cfg.HTTPConnectTimeout, cfg.HTTPReadTimeout)

	session := hcw.NewSession(cfg.HcwBackendURL, cfg.HcwUserEmail, cfg.HcwPassword, httpClient, logger)
	hcwClient := hcw.NewClient(session, logger)
	writer := openmrs.NewEncounterWriter(cfg.OpenmrsFhirURL, cfg.OpenmrsUsername, cfg.OpenmrsPassword, httpClient, logger)

	loader := mapper.NewLoader(source, cfg.EmailAttributeTypeUUID, logger)
	reconciler := service.NewReconciler(hcwClient, loader, logger)
	router := processor.NewAppointmentRouter(processor.NewKeyResolver(loader), reconciler, logger)

	return &App{
		Session:    session,
		Hcw:        hcwClient,
		Loader:     loader,
		Reconciler: reconciler,
		Router:     router,
		Handler:    processor.NewSyncHandler(router, logger),
		Feedback:   service.NewFeedbackService(ledger, logger),
		Sweeper: service.NewSweeper(
			loader, hcwClient, writer, ledger,
			cfg.EncounterTypeUUID,
			cfg.SweepInitialDelay, cfg.SweepDelay,
			logger,
		),
	}
}

// Ledger is the bookkeeping store used by the sweeper and the dead-letter path
type Ledger interface {
	service.SweepLedger
	service.FeedbackRepository
}

// Close releases the database connections
func (a *App) Close() {
	if a.Ledger != nil {
		a.Ledger.Close()
	}
	if a.Source != nil {
		a.Source.Close()
	}
}
