// Package main is the entry point for the deploy-service binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/deployservice/deploy-service/app"
	"github.com/deployservice/deploy-service/config"
	"github.com/deployservice/deploy-service/repositories/memory"
	"github.com/deployservice/deploy-service/routes"
	"github.com/deployservice/deploy-service/services/settings"
	"github.com/deployservice/deploy-service/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deploy-service",
		Short: "Deployment configuration service",
		Long: `Serves deployment settings to authenticated callers.

The settings file named by DEPLOY_SETTINGS_PATH is loaded once at startup;
the server does not listen if it cannot be read, parsed or stored.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(newServeCmd(), newCheckSettingsCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load deployment settings and start the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func newCheckSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-settings",
		Short: "Validate a deployment settings file without serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("path")
			if err != nil {
				return fmt.Errorf("failed to get path flag: %w", err)
			}
			if path == "" {
				return errors.New("no settings file given: use --path or DEPLOY_SETTINGS_PATH")
			}
			return checkSettings(cmd.Context(), cmd.OutOrStdout(), path)
		},
	}

	cmd.Flags().StringP("path", "p", os.Getenv("DEPLOY_SETTINGS_PATH"), "Path to the settings file (JSON or YAML)")
	return cmd
}

// runServe loads configuration and serves until SIGINT or SIGTERM
func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Observability)
	if err != nil {
		return err
	}

	return serve(ctx, cfg, logger)
}

// serve wires dependencies, loads the settings and runs the HTTP server
// until ctx is done.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	if err := deps.LoadSettings(ctx); err != nil {
		logger.Error("failed to load deployment settings, not starting server",
			zap.String("path", cfg.Settings.Path),
			zap.Error(err))
		return fmt.Errorf("startup aborted: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
	}

	srv := &http.Server{
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("deploy-service listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("environment", cfg.Environment))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// checkSettings runs the startup loader against an in-memory store and
// prints a summary of what was loaded, or one line per invalid field.
func checkSettings(ctx context.Context, out io.Writer, path string) error {
	logger := zap.NewNop()
	store := memory.NewSettingsStore(logger)

	if err := settings.NewLoader(store, nil, logger).Load(ctx, path); err != nil {
		printFieldProblems(out, path, utils.GetValidationFields(err))
		return err
	}

	projects, err := store.Projects(ctx)
	if err != nil {
		return err
	}

	var serviceCount, jobCount int
	for _, p := range projects {
		serviceCount += len(p.Services)
		for _, svc := range p.Services {
			jobCount += len(svc.Jobs)
		}
	}

	_, err = fmt.Fprintf(out, "%s: OK (%d projects, %d services, %d jobs)\n",
		path, len(projects), serviceCount, jobCount)
	return err
}

func printFieldProblems(out io.Writer, path string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "%s: INVALID\n", path)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", fields[name])
	}
}
