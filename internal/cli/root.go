package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forgo/vitals/internal/config"
	"github.com/forgo/vitals/internal/database"
	"github.com/forgo/vitals/internal/logger"
)

// ManagerFactory builds the Manager a command runs against.
type ManagerFactory func(cfg database.Config, log zerolog.Logger) *database.Manager

// Options wires a root command to its environment.
type Options struct {
	Out        io.Writer
	Err        io.Writer
	LoadConfig func() (*config.Config, error)
	NewManager ManagerFactory
}

// DefaultOptions talks to SurrealDB using the VITALS_ environment.
func DefaultOptions() Options {
	return Options{
		Out:        os.Stdout,
		Err:        os.Stderr,
		LoadConfig: config.Load,
		NewManager: func(cfg database.Config, log zerolog.Logger) *database.Manager {
			return database.NewManager(cfg, database.SurrealDriver{},
				database.WithLogger(log),
				database.WithObserver(database.NewLogObserver(log, 0)),
			)
		},
	}
}

type rootFlags struct {
	timeout time.Duration
	verbose bool
}

// NewRootCommand builds the dbctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "dbctl",
		Short: "Inspect and query the vitals SurrealDB store",
		Long: `dbctl connects with the same VITALS_ environment as the server,
runs one command, and prints the result as JSON.

Exit Codes:
  0  - Success
  1  - General error
  2  - Usage error
  10 - Invalid configuration
  11 - Database connection failed
  12 - Authentication failed
  13 - Query or transaction failed
  14 - Database not healthy`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "Overall deadline for the command")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log database activity to stderr")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	env := &environment{opts: opts, flags: flags}
	root.AddCommand(newHealthCommand(env), newQueryCommand(env))
	return root
}

// Execute runs dbctl against the process environment.
func Execute() error {
	err := NewRootCommand(DefaultOptions()).Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// environment is what every subcommand shares.
type environment struct {
	opts  Options
	flags *rootFlags
}

// connect loads configuration and returns a connected Manager bounded by the
// --timeout deadline. The caller must call the returned cleanup.
func (e *environment) connect(ctx context.Context) (*database.Manager, context.Context, func(), error) {
	cfg, err := e.opts.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	mgrCfg, err := cfg.ManagerConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	log := zerolog.Nop()
	if e.flags.verbose {
		logCfg := cfg.Log
		logCfg.Level = zerolog.DebugLevel.String()
		log = logger.NewWithWriter(logCfg, "dbctl", e.opts.Err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.flags.timeout)
	mgr := e.opts.NewManager(mgrCfg, log)
	cleanup := func() {
		mgr.Disconnect(context.WithoutCancel(ctx))
		cancel()
	}
	return mgr, ctx, cleanup, nil
}

func (e *environment) printJSON(v any) error {
	enc := json.NewEncoder(e.opts.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
