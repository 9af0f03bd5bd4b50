package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/config"
	"github.com/noah-isme/sma-docs-api/pkg/database"
	"github.com/noah-isme/sma-docs-api/pkg/export"
	"github.com/noah-isme/sma-docs-api/pkg/logger"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

type alertsFlags struct {
	student   string
	lookahead int
}

type exportFlags struct {
	student string
	format  string
	out     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(openServices).ExecuteContext(ctx)
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// services is what the commands need from the compliance engine.
type services interface {
	Alerts(ctx context.Context, studentID string, lookaheadDays int) ([]models.Alert, []string, error)
	ComplianceReport(ctx context.Context, studentID string, format export.Format) (*service.ComplianceReport, error)
	LookaheadDays() int
	Close() error
}

type opener func(ctx context.Context) (services, error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "compliancectl",
		Short:         "Inspect student document compliance from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAlertsCmd(open), newExportCmd(open))
	return root
}

func newAlertsCmd(open opener) *cobra.Command {
	var flags alertsFlags
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print the alert feed of a student as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.student == "" {
				return codeError(2, "--student is required")
			}
			svc, err := open(cmd.Context())
			if err != nil {
				return codeError(3, "wiring services: %s", err)
			}
			defer svc.Close() //nolint:errcheck

			lookahead := flags.lookahead
			if !cmd.Flags().Changed("lookahead") {
				lookahead = svc.LookaheadDays()
			}
			if lookahead < 0 || lookahead > 365 {
				return codeError(2, "--lookahead must be between 0 and 365")
			}
			alerts, warnings, err := svc.Alerts(cmd.Context(), flags.student, lookahead)
			if err != nil {
				return codeError(1, "%s", err)
			}
			printWarnings(cmd.ErrOrStderr(), warnings)
			if alerts == nil {
				alerts = []models.Alert{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(alerts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.student, "student", "", "Student ID")
	f.IntVar(&flags.lookahead, "lookahead", 0, "Days ahead to report expiring documents (defaults to COMPLIANCE_ALERT_LOOKAHEAD_DAYS)")
	return cmd
}

func newExportCmd(open opener) *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a student's compliance report as csv or pdf",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.student == "" {
				return codeError(2, "--student is required")
			}
			svc, err := open(cmd.Context())
			if err != nil {
				return codeError(3, "wiring services: %s", err)
			}
			defer svc.Close() //nolint:errcheck

			report, err := svc.ComplianceReport(cmd.Context(), flags.student, export.Format(flags.format))
			if err != nil {
				return codeError(1, "%s", err)
			}
			printWarnings(cmd.ErrOrStderr(), report.Warnings)

			out := flags.out
			if out == "" {
				out = report.Filename
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(report.Body)
				return err
			}
			if err := os.WriteFile(out, report.Body, 0o644); err != nil {
				return codeError(1, "writing %s: %s", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(report.Body))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.student, "student", "", "Student ID")
	f.StringVar(&flags.format, "format", string(export.FormatCSV), "Output format: csv or pdf")
	f.StringVar(&flags.out, "out", "", "Output file, - for stdout (defaults to the report filename)")
	return cmd
}

func printWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintln(w, "WARN:", warning)
	}
}

// engine wires the read side of the compliance engine straight onto postgres.
// The CLI never caches and never publishes events.
type engine struct {
	*service.ComplianceService
	*service.ExportService
	close func() error
}

func (e *engine) Close() error { return e.close() }

func openServices(ctx context.Context) (services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	students := repository.NewStudentRepository(db)
	compliance := service.NewComplianceService(service.ComplianceServiceParams{
		Students:  students,
		Templates: repository.NewRequirementRepository(db),
		Documents: repository.NewDocumentRepository(db),
		Logger:    logr.Named("compliance"),
		Config: service.ComplianceServiceConfig{
			AlertLookaheadDays: cfg.Compliance.AlertLookaheadDays,
		},
	})
	return &engine{
		ComplianceService: compliance,
		ExportService:     service.NewExportService(compliance, students, logr.Named("export")),
		close: func() error {
			_ = logr.Sync()
			return db.Close()
		},
	}, nil
}
