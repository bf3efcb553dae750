package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terradash/terradash/internal/config"
	"github.com/terradash/terradash/internal/observability"
	"github.com/terradash/terradash/internal/server"
	"github.com/terradash/terradash/internal/server/handlers"
	"github.com/terradash/terradash/pkg/jobstore"
	"github.com/terradash/terradash/pkg/logsink"
	"github.com/terradash/terradash/pkg/provision"
	"github.com/terradash/terradash/pkg/templates"
	"github.com/terradash/terradash/pkg/tfexec"
	"github.com/terradash/terradash/pkg/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API server",
	Long: `Run the HTTP server hosting the provisioning job API.

Examples:
  terradash serve
  terradash serve --config /etc/terradash/terradash.yaml
  TERRADASH_SERVER_PORT=9090 terradash serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	store, err := jobstore.Open(cfg.Paths.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	registry := templates.Builtin()
	// A manifest beside the template sources can extend or override the
	// stock catalog.
	manifest := filepath.Join(cfg.Paths.TemplatesDir, "templates.yaml")
	if _, statErr := os.Stat(manifest); statErr == nil {
		if err := registry.MergeManifest(manifest); err != nil {
			return err
		}
		observability.Logger.Info("merged template manifest", zap.String("path", manifest))
	}

	ws := workspace.NewManager(cfg.Paths.TemplatesDir, cfg.Paths.TemplateJobs, cfg.Paths.CustomJobs)
	logs := logsink.NewFactory(cfg.Paths.LogsDir)
	runner := tfexec.NewRunner(cfg.Terraform.Binary)

	svc := provision.NewService(store, ws, logs, runner, registry, observability.Logger)
	defer svc.Wait()

	h := handlers.New(svc, observability.Logger, cfg.Paths.UploadsDir,
		cfg.Server.MaxUploadBytes, versionInfo.Version)
	srv := server.New(cfg.Server.Host, cfg.Server.Port, h, observability.Logger, server.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(ctx, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			observability.Logger.Info("received signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	return g.Wait()
}
