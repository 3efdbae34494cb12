package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/auth"
	"github.com/siahsang/portfolio/internal/config"
	"github.com/siahsang/portfolio/internal/database"
	"github.com/siahsang/portfolio/internal/validator"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, the uploads file server and the site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := configLogger(cfg)
			logger.Info("Starting application...", "env", cfg.Env)

			app, cleanup, err := newApplication(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("Errors starting application", "stack", xerrors.Sprint(err))
				return err
			}
			defer cleanup()

			if err := app.serve(); err != nil {
				logger.Error("Errors running server", "stack", xerrors.Sprint(err))
				return err
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := configLogger(cfg)

			db, err := database.Open(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.Migrate(db, cfg.DBDriver, logger)
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var email, username, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote and reset an existing one",
		Long: `Create an admin account, or promote and reset an existing one.

The password may also be passed through PORTFOLIO_ADMIN_PASSWORD so that it
does not end up in the shell history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PORTFOLIO_ADMIN_PASSWORD")
			}
			if username == "" {
				username, _, _ = strings.Cut(email, "@")
			}

			user := &auth.User{
				Email:             strings.TrimSpace(email),
				Username:          strings.TrimSpace(username),
				PlaintextPassword: password,
			}
			v := validator.New()
			checkEmail(v, user.Email)
			v.CheckNotBlank(user.Username, "username", "must be provided")
			checkPassword(v, user.PlaintextPassword)
			if !v.IsValid() {
				return xerrors.Newf("invalid admin account: %v", v.Errors)
			}
			if err := user.SetPassword(user.PlaintextPassword); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := configLogger(cfg)
			app, cleanup, err := newApplication(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			admin, err := app.core.UpsertAdmin(context.WithoutCancel(cmd.Context()), user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s <%s> ready\n", admin.Username, admin.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&username, "username", "", "admin username (defaults to the email's local part)")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
