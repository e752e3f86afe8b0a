package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/config"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/storage/postgres"
)

func newAdminCommand() *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var profile users.Profile
	var password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator unless the email is already registered",
		Long: `Create an administrator account. Flags fall back to ADMIN_EMAIL,
ADMIN_PASSWORD and the bootstrap name settings.

Example:
  server admin create --email ops@example.org --password 'long secret'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd.Context(), func(ctx context.Context, cfg config.Config, svc *users.Service) error {
				p := profile
				pw := password
				if p.Email == "" {
					p.Email = cfg.AdminBootstrap.Email
				}
				if pw == "" {
					pw = cfg.AdminBootstrap.Password
				}
				if p.FirstName == "" {
					p.FirstName = cfg.AdminBootstrap.FirstName
				}
				if p.LastName == "" {
					p.LastName = cfg.AdminBootstrap.LastName
				}
				if p.Email == "" || pw == "" {
					return errors.New("--email and --password are required")
				}

				created, err := svc.EnsureAdmin(ctx, p, pw)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s\n", users.NormalizeEmail(p.Email))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already registered; use 'admin promote' to grant the admin role\n", users.NormalizeEmail(p.Email))
				}
				return nil
			})
		},
	}
	create.Flags().StringVar(&profile.Email, "email", "", "administrator email")
	create.Flags().StringVar(&password, "password", "", "administrator password")
	create.Flags().StringVar(&profile.FirstName, "first-name", "", "first name")
	create.Flags().StringVar(&profile.LastName, "last-name", "", "last name")
	adminCmd.AddCommand(create)

	adminCmd.AddCommand(&cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an existing account and reactivate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd.Context(), func(ctx context.Context, _ config.Config, svc *users.Service) error {
				user, err := svc.Promote(ctx, args[0])
				if errors.Is(err, users.ErrUserNotFound) {
					return fmt.Errorf("no account with email %s", users.NormalizeEmail(args[0]))
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now an administrator\n", user.Email)
				return nil
			})
		},
	})

	return adminCmd
}

func withUserService(ctx context.Context, fn func(context.Context, config.Config, *users.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := config.NewLogger(cfg.Logging)

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}
	svc := users.NewService(repo.Users(), auth.NewPasswordHasher(cfg.Auth.BcryptCost), logger)
	return fn(ctx, cfg, svc)
}
