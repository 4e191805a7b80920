package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/app"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/broker"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/config"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/infra"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "hcwctl",
		Short:         "Operate the OpenMRS to hcw@home appointment sync by hand",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg = config.Load()
			opts.logger = infra.SetupLogger(opts.cfg)
			slog.SetDefault(opts.logger)
			return opts.cfg.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			infra.CloseLogger()
		},
	}

	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newPublishCommand(opts))
	return cmd
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "reconcile <appointment-uuid>",
		Short: "Apply one create, update or delete to the remote invite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, act, err := parseReconcileArgs(args[0], action)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, func(a *app.App) error {
				outcome, err := a.Reconciler.ReconcileWithOutcome(cmd.Context(), id, act)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", act, id, outcome)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", "u", "sync action (c|u|d)")
	return cmd
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one encounter sweep and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				report, err := a.Sweeper.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d persisted=%d recovered=%d skipped=%d failed=%d\n",
					report.Scanned, report.Persisted, report.Recovered, report.Skipped, report.Failed)
				return nil
			})
		},
	}
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the hcw@home credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No database access needed
			a := app.Wire(opts.cfg, nil, nil, opts.logger)
			if _, err := a.Session.Token(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "login ok")
			return nil
		},
	}
}

func newPublishCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <event.json>",
		Short: "Publish a change event to the event exchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := readEvent(args[0])
			if err != nil {
				return err
			}

			p, err := broker.NewRabbitMQPublisher(opts.cfg.RabbitMQURL, opts.cfg.EventExchange, opts.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			correlationID := uuid.NewString()
			if err := p.Publish(cmd.Context(), correlationID, ev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s as %s\n", broker.RoutingKey(ev), correlationID)
			return nil
		},
	}
}

func withApp(ctx context.Context, opts *rootOptions, fn func(a *app.App) error) error {
	a, err := app.New(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func parseReconcileArgs(id, action string) (string, models.SyncAction, error) {
	if err := uuid.Validate(id); err != nil {
		return "", 0, fmt.Errorf("invalid appointment uuid %q: %w", id, err)
	}
	switch action {
	case "c", "u", "d":
	default:
		return "", 0, fmt.Errorf("invalid action %q: must be one of c, u, d", action)
	}
	act, _ := models.ParseSyncAction(action)
	return id, act, nil
}

func readEvent(path string) (models.ChangeEvent, error) {
	var ev models.ChangeEvent

	raw, err := os.ReadFile(path)
	if err != nil {
		return ev, fmt.Errorf("failed to read event file: %w", err)
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("malformed change event: %w", err)
	}
	if ev.TableName == "" || ev.Operation == "" {
		return ev, fmt.Errorf("change event needs tableName and operation")
	}
	return ev, nil
}
