package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgo/vitals/internal/database"
)

type queryFlags struct {
	params []string
	tx     bool
}

func newQueryCommand(env *environment) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query <statement>...",
		Short: "Run SurrealQL statements and print the resulting rows",
		Long: `Run one or more SurrealQL statements. Each --param binds $name for every
statement; values that parse as JSON are sent typed, anything else as a string.

With --tx the statements run in one transaction: all of them apply or none do.

Example:
  dbctl query 'SELECT * FROM alert WHERE severity = $sev' --param sev=critical
  dbctl query --tx 'UPDATE alert:a SET acknowledged = true' 'UPDATE alert:b SET acknowledged = true'`,
		Args: requireStatements,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(flags.params)
			if err != nil {
				return err
			}

			mgr, ctx, cleanup, err := env.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			rows, err := runStatements(ctx, mgr, args, params, flags.tx)
			if err != nil {
				return err
			}
			if rows == nil {
				rows = []database.Row{}
			}
			return env.printJSON(rows)
		},
	}
	cmd.Flags().StringArrayVarP(&flags.params, "param", "p", nil, "Bind a variable as name=value (repeatable)")
	cmd.Flags().BoolVar(&flags.tx, "tx", false, "Run all statements in one transaction")
	return cmd
}

func runStatements(ctx context.Context, mgr *database.Manager, statements []string, params map[string]any, inTx bool) ([]database.Row, error) {
	if !inTx {
		var all []database.Row
		for _, stmt := range statements {
			rows, err := mgr.Execute(ctx, stmt, params)
			if err != nil {
				return nil, err
			}
			all = append(all, rows...)
		}
		return all, nil
	}

	var committed *database.Tx
	err := mgr.Transaction(ctx, func(ctx context.Context, tx *database.Tx) error {
		committed = tx
		for _, stmt := range statements {
			if _, err := tx.Execute(ctx, stmt, params); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Some drivers only report statement results once the block commits.
	return committed.Results(), nil
}

// parseParams turns name=value pairs into query variables.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: --param %q must be name=value", ErrUsage, pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		params[name] = v
	}
	return params, nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: %s accepts no arguments, received %d", ErrUsage, cmd.CommandPath(), len(args))
	}
	return nil
}

func requireStatements(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf(`%w: missing required argument: <statement>

Usage: %s

Example:
  %s 'SELECT * FROM alert'`, ErrUsage, cmd.UseLine(), cmd.CommandPath())
	}
	return nil
}
