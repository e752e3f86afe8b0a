package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/config"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/storage/postgres"
)

func newSessionsCommand() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain server-side login sessions",
	}

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		Long: `Delete every session whose expiry has passed. Run it from cron; the
server itself never prunes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)

			pool, err := openPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo, err := postgres.NewRepository(pool)
			if err != nil {
				return err
			}
			n, err := auth.NewSessionManager(repo.Sessions(), cfg.Session.TTL).Prune(cmd.Context())
			if err != nil {
				return err
			}
			metrics.SessionsPruned.Add(float64(n))
			logger.Info().Int64("deleted", n).Msg("expired sessions pruned")
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired session(s)\n", n)
			return nil
		},
	})

	return sessionsCmd
}
