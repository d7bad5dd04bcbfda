package cli

import (
	"github.com/spf13/cobra"
)

func newHealthCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the database and print its health status",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, ctx, cleanup, err := env.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			status := mgr.HealthCheck(ctx)
			if err := env.printJSON(status); err != nil {
				return err
			}
			if !status.Healthy() {
				return ErrUnhealthy
			}
			return nil
		},
	}
}
