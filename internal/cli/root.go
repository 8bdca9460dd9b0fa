package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/amti/internal/batch"
	"github.com/roach88/amti/internal/config"
	"github.com/roach88/amti/internal/ledger"
	"github.com/roach88/amti/internal/mturk"
)

// ClientFactory builds the Mechanical Turk client for a command.
type ClientFactory func(ctx context.Context, cfg config.Config, live bool, logger *slog.Logger) (mturk.Client, error)

// RootOptions holds global flags for all commands, and the state loaded
// from them before any command runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LedgerPath string
	LogFile    string

	// NewClient overrides the Mechanical Turk client (for testing).
	// If nil, defaults to the aws-sdk-go-v2 client.
	NewClient ClientFactory
	// IDs overrides batch id generation (for testing).
	IDs batch.IDGenerator
	// Now overrides the clock (for testing).
	Now func() time.Time

	cfg     config.Config
	logger  *slog.Logger
	logFile io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the amti CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{})
}

// NewRootCommandWith creates the root command around opts, so tests can
// inject a client factory, id generator and clock.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amti",
		Short: "amti - A Mechanical Turk Interface",
		Long: `A Mechanical Turk Interface.

Create batches of HITs from a definition directory and a JSON Lines data
file, review and save their results, and manage workers and
qualifications.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				err := fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				opts.Format = "text"
				return opts.fail(cmd, &commandError{ErrCodeUsage, err})
			}
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to amti.yaml (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.LedgerPath, "ledger", "", "path to the SQLite ledger (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "append logs to this file instead of stderr")

	// Add subcommands
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewEstimateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReviewCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewExpireCommand(opts))
	cmd.AddCommand(NewExtractCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewCreateQualificationTypeCommand(opts))
	cmd.AddCommand(NewBlockCommand(opts))
	cmd.AddCommand(NewUnblockCommand(opts))
	cmd.AddCommand(NewBlockedCommand(opts))
	cmd.AddCommand(NewNotifyCommand(opts))
	cmd.AddCommand(NewAssociateCommand(opts))
	cmd.AddCommand(NewDisassociateCommand(opts))
	cmd.AddCommand(NewAssociatedCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// Execute runs a root command built by NewRootCommandWith(opts). The log
// file opened during setup is closed whether or not the command succeeded.
func Execute(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (err error) {
	defer func() {
		if cerr := opts.teardown(); err == nil {
			err = cerr
		}
	}()
	return cmd.ExecuteContext(ctx)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setup loads the configuration and configures logging. It runs once,
// before any command.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return o.fail(cmd, &commandError{ErrCodeConfig, err})
	}
	o.cfg = cfg

	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	var w io.Writer = cmd.ErrOrStderr()
	path := o.LogFile
	if path == "" {
		path = cfg.LogFile
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return o.fail(cmd, &commandError{ErrCodeWriteFailed, fmt.Errorf("open log file: %w", err)})
		}
		o.logFile = f
		w = f
	}
	o.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	return nil
}

func (o *RootOptions) teardown() error {
	if o.logFile == nil {
		return nil
	}
	err := o.logFile.Close()
	o.logFile = nil
	return err
}

// Logger returns the configured logger, or a discarding one before setup.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// client builds the Mechanical Turk client for the sandbox or live site.
func (o *RootOptions) client(ctx context.Context, live bool) (mturk.Client, error) {
	factory := o.NewClient
	if factory == nil {
		factory = awsClient
	}
	return factory(ctx, o.cfg, live, o.Logger())
}

func awsClient(ctx context.Context, cfg config.Config, live bool, logger *slog.Logger) (mturk.Client, error) {
	env, name, err := cfg.Env(live)
	if err != nil {
		return nil, err
	}
	logger.Debug("using environment", "environment", name, "endpoint", env.Endpoint)
	return mturk.New(ctx, mturk.Options{
		Region:      env.Region,
		Endpoint:    env.Endpoint,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})
}

// ledgerPath is the --ledger flag, falling back to the config file.
func (o *RootOptions) ledgerPath() string {
	if o.LedgerPath != "" {
		return o.LedgerPath
	}
	return o.cfg.Ledger
}

// openLedger opens the configured ledger. With no ledger configured it
// returns a recorder that drops every event.
func (o *RootOptions) openLedger() (ledger.Recorder, func(), error) {
	path := o.ledgerPath()
	if path == "" {
		return ledger.Nop{}, func() {}, nil
	}
	var opts []ledger.Option
	if o.Now != nil {
		opts = append(opts, ledger.WithClock(o.Now))
	}
	l, err := ledger.Open(path, opts...)
	if err != nil {
		return nil, nil, &commandError{ErrCodeLedger, err}
	}
	return l, func() {
		if err := l.Close(); err != nil {
			o.Logger().Error("error closing ledger", "error", err)
		}
	}, nil
}

// manager builds a batch manager. A nil client is allowed for commands
// that never reach Mechanical Turk.
func (o *RootOptions) manager(cmd *cobra.Command, client mturk.Client, rec ledger.Recorder) *batch.Manager {
	opts := []batch.Option{
		batch.WithLogger(o.Logger()),
		batch.WithOverheadFactor(o.cfg.OverheadFactor),
		batch.WithStdout(cmd.OutOrStdout()),
	}
	if rec != nil {
		opts = append(opts, batch.WithLedger(rec))
	}
	if o.IDs != nil {
		opts = append(opts, batch.WithIDGenerator(o.IDs))
	}
	if o.Now != nil {
		opts = append(opts, batch.WithClock(o.Now))
	}
	return batch.New(o.cfg.Layout, client, opts...)
}

// remote opens the ledger and client a remote command needs. The returned
// function releases them.
func (o *RootOptions) remote(cmd *cobra.Command, live bool) (mturk.Client, ledger.Recorder, func(), error) {
	rec, closeLedger, err := o.openLedger()
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := o.client(cmd.Context(), live)
	if err != nil {
		closeLedger()
		return nil, nil, nil, &commandError{ErrCodeConfig, fmt.Errorf("create Mechanical Turk client: %w", err)}
	}
	return client, rec, closeLedger, nil
}

// fail reports err and returns the ExitError for it.
func (o *RootOptions) fail(cmd *cobra.Command, err error) error {
	return o.formatter(cmd).Fail(err)
}

// addLiveFlag registers --live on a command that talks to Mechanical Turk.
func addLiveFlag(cmd *cobra.Command, live *bool) {
	cmd.Flags().BoolVar(live, "live", false, "use the live Mechanical Turk site instead of the sandbox")
}
