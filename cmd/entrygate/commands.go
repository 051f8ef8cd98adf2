package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/entrygate/pipeline"
	"github.com/c360studio/entrygate/routing"
	"github.com/c360studio/entrygate/watch"
)

func validateCmd(g *globals) *cobra.Command {
	var (
		asJSON  bool
		watchFS bool
	)

	cmd := &cobra.Command{
		Use:   "validate <entry-dir>...",
		Short: "Validate entry directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app()
			if err != nil {
				return err
			}
			defer app.Close()

			entries := make([]string, 0, len(args))
			for _, a := range args {
				e, err := app.EntryPath(a)
				if err != nil {
					return err
				}
				entries = append(entries, e)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			code, err := validateOnce(ctx, cmd, app, entries, asJSON)
			if err != nil {
				return err
			}
			if !watchFS {
				return exitCode(code)
			}
			return watchEntries(ctx, cmd, app, entries, asJSON, code)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print verdicts as JSON")
	cmd.Flags().BoolVar(&watchFS, "watch", false, "Re-validate when entry files change")
	return cmd
}

func validateOnce(ctx context.Context, cmd *cobra.Command, app *App, entries []string, asJSON bool) (int, error) {
	result, err := app.Orchestrator(nil).ValidateEntries(ctx, entries)
	if err != nil {
		return pipeline.ExitFatal, err
	}
	out := cmd.OutOrStdout()
	if asJSON {
		if len(entries) == 1 {
			err = writeJSON(out, result.Verdicts[result.Entries[0]])
		} else {
			err = writeJSON(out, result.Verdicts)
		}
		if err != nil {
			return pipeline.ExitFatal, err
		}
	} else {
		for _, e := range result.Entries {
			printVerdict(out, result.Verdicts[e])
		}
	}
	return pipeline.ExitCode(result, nil), nil
}

// watchEntries re-validates entries as they change. The exit code is that of
// the most recent validation, starting from code.
func watchEntries(ctx context.Context, cmd *cobra.Command, app *App, entries []string, asJSON bool, code int) error {
	w, err := watch.New(watch.Config{Root: app.root, Entries: entries, Logger: app.logger})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintln(cmd.ErrOrStderr(), "Watching for changes (Ctrl+C to stop)...")
	for ev := range w.Events() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Changed in %s: %s\n", ev.Entry, strings.Join(ev.Files, ", "))
		code, err = validateOnce(ctx, cmd, app, []string{ev.Entry}, asJSON)
		if err != nil {
			return err
		}
	}
	return exitCode(code)
}

func detectChangedCmd(g *globals) *cobra.Command {
	var base, head, format string

	cmd := &cobra.Command{
		Use:   "detect-changed",
		Short: "List entries changed between two revisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "lines" && format != "json" {
				return fmt.Errorf("unknown format %q (want lines or json)", format)
			}
			app, err := g.app()
			if err != nil {
				return err
			}
			defer app.Close()

			det, err := app.Detector()
			if err != nil {
				return err
			}
			ctx, cancel := app.WithTimeout(cmd.Context())
			defer cancel()

			entries, err := det.DetectChangedEntries(ctx, base, head)
			if err != nil {
				if fatal := pipeline.Classify(err); fatal != nil {
					return fatal
				}
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(out, entries)
			}
			for _, e := range entries {
				fmt.Fprintln(out, e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "Base revision")
	cmd.Flags().StringVar(&head, "head", "HEAD", "Head revision")
	cmd.Flags().StringVar(&format, "format", "lines", "Output format (lines, json)")
	_ = cmd.MarkFlagRequired("base")
	return cmd
}

func notifyReviewersCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-reviewers <entry-dir>...",
		Short: "Print the reviewer assignment report for entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app()
			if err != nil {
				return err
			}
			defer app.Close()

			entries := make([]string, 0, len(args))
			for _, a := range args {
				e, err := app.EntryPath(a)
				if err != nil {
					return err
				}
				entries = append(entries, e)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), routing.Report(app.Route(entries)))
			return err
		},
	}
}

func runCmd(g *globals) *cobra.Command {
	var (
		base, head  string
		asJSON      bool
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline for a revision range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app()
			if err != nil {
				return err
			}
			defer app.Close()

			det, err := app.Detector()
			if err != nil {
				return err
			}
			app.ConnectPublisher()

			ctx, cancel := app.WithTimeout(cmd.Context())
			defer cancel()

			result, err := app.Orchestrator(det).Run(ctx, base, head)
			if metricsFile != "" {
				if werr := app.metrics.WriteFile(metricsFile); werr != nil {
					app.logger.Warn("Failed to write metrics", "path", metricsFile, "error", werr)
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else {
				for _, e := range result.Entries {
					printVerdict(out, result.Verdicts[e])
				}
				fmt.Fprintln(out, result.Report)
				printSummary(out, result)
			}
			return exitCode(pipeline.ExitCode(result, nil))
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "Base revision")
	cmd.Flags().StringVar(&head, "head", "HEAD", "Head revision")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the pipeline result as JSON")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	_ = cmd.MarkFlagRequired("base")
	return cmd
}

func exitCode(code int) error {
	if code == pipeline.ExitPass {
		return nil
	}
	return &exitError{code: code}
}
