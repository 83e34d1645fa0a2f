// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/term"

	"ferret-seal/internal/config"
	"ferret-seal/internal/help"
	"ferret-seal/internal/logging"
	"ferret-seal/internal/metrics"
	"ferret-seal/internal/observability"
	"ferret-seal/internal/pipeline"
	"ferret-seal/internal/report"
	"ferret-seal/internal/resilience"
	"ferret-seal/internal/security"
	"ferret-seal/internal/storage"
	"ferret-seal/internal/version"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// PasswordEnv is read when --password is not given
const PasswordEnv = "FERRET_SEAL_PASSWORD"

// cliFlags holds command line flag values
type cliFlags struct {
	input       string
	output      string
	password    string
	watermark   string
	font        string
	archiveName string
	workers     int
	format      string
	reportFile  string
	configFile  string
	upload      string
	verify      bool
	noColor     bool
	debug       bool
	quiet       bool
	showVersion bool
	showHelp    bool
}

// usageError marks failures caused by flags or configuration
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one sanitize run and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ferret-seal", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var flags cliFlags
	fs.StringVar(&flags.input, "input", "", "Directory whose files are sanitized")
	fs.StringVar(&flags.output, "output", "", "Directory for sanitized copies and the archive")
	fs.StringVar(&flags.password, "password", "", "Password for PDFs and the archive (or "+PasswordEnv+")")
	fs.StringVar(&flags.watermark, "watermark", "", "Watermark text")
	fs.StringVar(&flags.font, "font", "", "TrueType font for image watermarks")
	fs.StringVar(&flags.archiveName, "archive-name", "", "Archive file name inside the output directory")
	fs.IntVar(&flags.workers, "workers", 0, "Files transformed concurrently")
	fs.StringVar(&flags.format, "format", "", "Report format: "+strings.Join(report.Formats(), ", "))
	fs.StringVar(&flags.reportFile, "report-file", "", "Write the report to a file instead of stdout")
	fs.StringVar(&flags.configFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&flags.upload, "upload", "", "Upload the archive to s3://bucket/prefix/ or file:///dir/")
	fs.BoolVar(&flags.verify, "verify", false, "Re-open the archive, decrypt every member and read back the upload")
	fs.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&flags.quiet, "quiet", false, "Only log warnings and errors")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")
	fs.BoolVar(&flags.showHelp, "help", false, "Show help information")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			help.NewSystem(!isTerminal(stdout)).ShowGeneralHelp(stdout)
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Run 'ferret-seal --help' for usage.")
		return exitUsage
	}

	if flags.showHelp {
		help.NewSystem(flags.noColor || !isTerminal(stdout)).ShowGeneralHelp(stdout)
		return exitOK
	}
	if flags.showVersion {
		fmt.Fprintln(stdout, version.Info())
		return exitOK
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return exitUsage
	}

	// pdfcpu would otherwise create its own config directory on first use
	api.DisableConfigDir()

	err := sanitize(fs, &flags, stdout, stderr)
	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Run 'ferret-seal --help' for usage.")
		return exitUsage
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
}

// sanitize resolves configuration, runs the pipeline and writes the report
func sanitize(fs *flag.FlagSet, flags *cliFlags, stdout, stderr io.Writer) error {
	bootstrap, _ := logging.NewLogger(stderr, logging.Options{Debug: flags.debug, Quiet: flags.quiet})

	cfg, configPath, err := loadConfiguration(flags.configFile, bootstrap)
	if err != nil {
		return &usageError{err: err}
	}
	applyFlags(fs, flags, cfg)
	if err := config.ValidateConfig(cfg); err != nil {
		return &usageError{err: err}
	}

	logger, secrets := logging.NewLogger(stderr, logging.Options{
		Debug: cfg.Logging.Debug,
		Quiet: flags.quiet,
		JSON:  cfg.Logging.Format == "json",
	})
	if configPath != "" {
		logger.Debug("configuration loaded", "path", configPath)
	}

	if flags.input == "" || flags.output == "" {
		return usagef("--input and --output are required")
	}

	password := resolvePassword(flags.password)
	defer password.Clear()
	if password.IsEmpty() {
		return usagef("a password is required (--password or %s)", PasswordEnv)
	}
	secrets.RegisterSecret(password.String())

	level := observability.ObservabilityMetrics
	if cfg.Logging.Debug {
		level = observability.ObservabilityDebug
	}
	observer := observability.NewStandardObserver(level, logger)
	recorder := metrics.NewRecorder()
	observer.AddSink(recorder.ObserveOperation)

	registry, err := pipeline.NewRegistryFromConfig(cfg, password, observer)
	if err != nil {
		return &usageError{err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithObserver(observer),
		pipeline.WithRecorder(recorder),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithArchiveName(cfg.Archive.Name),
		pipeline.WithVerify(cfg.Archive.Verify),
	}
	if cfg.Distribution.Target != "" {
		target, err := storage.ParseTarget(cfg.Distribution.Target)
		if err != nil {
			return &usageError{err: err}
		}
		store, err := storage.NewStore(ctx, target)
		if err != nil {
			return err
		}
		retry := resilience.DefaultRetryConfig()
		retry.MaxRetries = cfg.Distribution.MaxRetries
		opts = append(opts, pipeline.WithDistribution(target, store, retry))
	}

	p, err := pipeline.New(registry, password, opts...)
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx, flags.input, flags.output)

	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
		}
	}

	if res != nil {
		if err := writeReport(cfg, res, stdout, flags.noColor); err != nil {
			logger.Error("failed to write report", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	if runErr != nil {
		return runErr
	}

	if !flags.quiet {
		fmt.Fprintf(stderr, "Protected archive created at %s\n", res.ArchivePath)
		if res.UploadURI != "" {
			fmt.Fprintf(stderr, "Archive uploaded to %s\n", res.UploadURI)
		}
	}
	return nil
}

// loadConfiguration loads the explicit config file, or searches the standard
// locations when none was given. Only an explicit file that fails to load is an error.
func loadConfiguration(configFile string, logger *slog.Logger) (*config.Config, string, error) {
	if configFile == "" {
		cfg, path := config.LoadConfigOrDefault(logger)
		return cfg, path, nil
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, "", err
	}
	return cfg, configFile, nil
}

// applyFlags overrides configuration values with explicitly set flags
func applyFlags(fs *flag.FlagSet, flags *cliFlags, cfg *config.Config) {
	if isFlagSet(fs, "watermark") {
		cfg.Watermark.Text = flags.watermark
	}
	if isFlagSet(fs, "font") {
		cfg.Image.Font = flags.font
	}
	if isFlagSet(fs, "archive-name") {
		cfg.Archive.Name = flags.archiveName
	}
	if isFlagSet(fs, "workers") {
		cfg.Pipeline.Workers = flags.workers
	}
	if isFlagSet(fs, "format") {
		cfg.Report.Format = flags.format
	}
	if isFlagSet(fs, "report-file") {
		cfg.Report.File = flags.reportFile
	}
	if isFlagSet(fs, "upload") {
		cfg.Distribution.Target = flags.upload
	}
	if flags.verify {
		cfg.Archive.Verify = true
	}
	if flags.noColor {
		cfg.Report.Color = false
	}
	if flags.debug || os.Getenv("FERRET_SEAL_DEBUG") != "" {
		cfg.Logging.Debug = true
	}
}

func resolvePassword(flagValue string) *security.SecureString {
	if flagValue != "" {
		return security.NewSecureString(flagValue)
	}
	return security.NewSecureString(os.Getenv(PasswordEnv))
}

// writeReport writes the run report to the configured file or stdout
func writeReport(cfg *config.Config, res *pipeline.Result, stdout io.Writer, noColor bool) error {
	opts := report.Options{
		NoColor:         noColor || !cfg.Report.Color,
		IncludeMappings: cfg.Report.IncludeMappings,
	}

	if cfg.Report.File == "" {
		if !isTerminal(stdout) || os.Getenv("NO_COLOR") != "" {
			opts.NoColor = true
		}
		return report.Write(stdout, cfg.Report.Format, res, opts)
	}

	opts.NoColor = true
	f, err := os.OpenFile(cfg.Report.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := report.Write(f, cfg.Report.Format, res, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// isTerminal checks if w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
