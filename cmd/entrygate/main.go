// Package main provides the entrygate binary entry point.
// Entrygate gates content submissions: it detects changed entries, validates
// them against the metadata schema and routes them to reviewers.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/entrygate/config"
	"github.com/c360studio/entrygate/pipeline"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "entrygate"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(pipeline.ExitFatal)
		}
	}()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a non-zero exit code for an outcome that was already
// reported, such as a failing verdict.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return pipeline.ExitPass
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return pipeline.ExitFatal
}

// globals holds the persistent flags shared by all commands.
type globals struct {
	configPath string
	repoPath   string
	logLevel   string
	logger     *slog.Logger
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Submission gate for structured content repositories",
		Long: `Entrygate checks contributions to a structured content repository.

It provides:
- Change detection between two revisions
- Entry validation (naming, required files, metadata schema, references, docs)
- Reviewer routing by category with an idempotent report`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.logger = newLogger(cmd.ErrOrStderr(), g.logLevel)
			slog.SetDefault(g.logger)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.repoPath, "repo", "", "Repository path (default: git root of the current directory)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		validateCmd(g),
		detectChangedCmd(g),
		notifyReviewersCmd(g),
		runCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig applies the config layers and the --repo flag.
func (g *globals) loadConfig() (*config.Config, error) {
	loader := config.NewLoader(g.logger)
	if g.repoPath != "" {
		loader.SetWorkDir(g.repoPath)
	}
	cfg, err := loader.Load(g.configPath)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.CodeInvalidConfiguration, "load config", err)
	}
	if g.repoPath != "" {
		cfg.Repo.Path = g.repoPath
	}
	return cfg, nil
}

// app loads configuration and builds the application.
func (g *globals) app() (*App, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, g.logger)
}
