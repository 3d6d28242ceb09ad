package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"offersync/internal/audit"
	"offersync/internal/config"
	"offersync/internal/reconciler"
	"offersync/internal/report"
	"offersync/pkg/logging"
)

type syncOptions struct {
	resources   []string
	dryRun      bool
	output      string
	concurrency int
}

func newSyncCmd() *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile offer variant membership with the remote API",
		Long: `Reconcile every selected offer so that its remote variant membership
matches the desired membership in the store.

Removals run before additions. Variants the remote rejects are isolated and
reported as skipped; everything else is still applied. A summary is printed
at the end and skipped or failed variants are written to the audit directory.

Examples:
  offersync sync
  offersync sync --resource offer-42 --resource offer-43
  offersync sync --dry-run -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if opts.dryRun {
				return runPlan(ctx, cfg, *opts, cmd.OutOrStdout())
			}
			return runSync(ctx, cfg, *opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&opts.resources, "resource", nil, "reconcile only this resource (remote or local id, repeatable)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "compute the changes without mutating anything")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "report format (table, json, yaml), default from config")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "resources reconciled at once, default from config")
	return cmd
}

// runSync reconciles the selected resources, persists audit artifacts,
// renders the report and writes metrics. It returns an *IncompleteRunError
// when any resource did not reach its desired state.
func runSync(ctx context.Context, cfg config.Config, opts syncOptions, out io.Writer) error {
	format, err := outputFormat(cfg, opts.output)
	if err != nil {
		return err
	}
	if opts.concurrency > 0 {
		cfg.Reconcile.Concurrency = opts.concurrency
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}

	s, err := openSession(ctx, cfg, opts.resources)
	if err != nil {
		return err
	}
	defer s.Close()

	sink, err := s.auditSink()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	started := time.Now()
	logging.Info("Reconciler", "Run %s: %d resources selected", runID, len(s.resources))

	p := newProgress(out, format, "Reconciling", len(s.resources))
	runner := reconciler.NewRunner(s.engine, reconciler.WithProgress(p.Update))
	p.Start()
	results := runner.Run(ctx, s.resources)
	p.Stop()

	// Persist what was done even when the run was interrupted.
	persistCtx := context.WithoutCancel(ctx)
	var errs []error
	if sink != nil {
		records := audit.Records(runID, results, time.Now().UTC())
		if err := sink.Write(persistCtx, records); err != nil {
			logging.Error("Audit", err, "Failed to persist audit records")
			errs = append(errs, fmt.Errorf("write audit: %w", err))
		}
	}
	s.markDone(persistCtx, results)

	summary := report.Aggregate(results, cfg.Report.SampleSize, time.Now().UTC()).WithActivity(s.metrics.GetSummary())
	summary.RunID = runID
	if err := report.Render(out, format, summary); err != nil {
		return err
	}

	if err := s.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logging.Error("Reconciler", err, "Failed to write metrics textfile %s", cfg.Metrics.Textfile)
		errs = append(errs, fmt.Errorf("write metrics: %w", err))
	}

	logging.Info("Reconciler", "Run %s finished in %s: %d/%d resources synced",
		runID, logging.Since(started), summary.Succeeded, summary.Resources)

	if err := errors.Join(errs...); err != nil {
		return err
	}
	if !summary.Success() {
		return &IncompleteRunError{Unfinished: summary.Unfinished, Total: summary.Resources}
	}
	return nil
}
