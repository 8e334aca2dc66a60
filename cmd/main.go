package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/agentdesk-backend/internal/app"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
	"github.com/yungbote/agentdesk-backend/internal/services"
)

var (
	tokenTTL time.Duration

	rootCmd = &cobra.Command{
		Use:           "agentdesk",
		Short:         "Chat bridge between the dashboard and the agent orchestration service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			return app.Migrate(cfg)
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token [user-id]",
		Short: "Mint a development access token for user-id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			auth, err := services.NewAuthService(logger.NewNop(), cfg.JWTSecretKey)
			if err != nil {
				return err
			}
			tok, err := auth.SignAccessToken(args[0], tokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
)

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "agentdesk: %v\n", err)
		os.Exit(1)
	}
}
