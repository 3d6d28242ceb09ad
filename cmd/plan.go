package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"offersync/internal/config"
	"offersync/internal/reconciler"
	"offersync/internal/report"
)

func newPlanCmd() *cobra.Command {
	opts := &syncOptions{dryRun: true}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the membership changes a sync would make",
		Long: `Read the desired and remote membership of every selected offer and
print the variants a sync would add and remove. Nothing is mutated.

Examples:
  offersync plan
  offersync plan --resource offer-42 -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPlan(ctx, cfg, *opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&opts.resources, "resource", nil, "plan only this resource (remote or local id, repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "report format (table, json, yaml), default from config")
	return cmd
}

// runPlan prints the difference of every selected resource. Resources whose
// state could not be read make it return an *IncompleteRunError.
func runPlan(ctx context.Context, cfg config.Config, opts syncOptions, out io.Writer) error {
	format, err := outputFormat(cfg, opts.output)
	if err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}

	s, err := openSession(ctx, cfg, opts.resources)
	if err != nil {
		return err
	}
	defer s.Close()

	p := newProgress(out, format, "Planning", len(s.resources))
	p.Start()
	plans := reconciler.NewRunner(s.engine).Plan(ctx, s.resources)
	p.Stop()

	summary := report.AggregatePlans(plans, cfg.Report.SampleSize, time.Now().UTC())
	if err := report.RenderPlan(out, format, summary); err != nil {
		return err
	}
	if summary.Errors > 0 {
		return &IncompleteRunError{Unfinished: summary.Errors, Total: summary.Resources}
	}
	return nil
}
