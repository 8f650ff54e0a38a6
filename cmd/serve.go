package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/storefront/internal/backup"
	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/server"
	"github.com/conneroisu/storefront/internal/version"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the editor server",
	Long: `Start the editor server. It hosts the editor page, the session API,
the preview frames and the websocket that keeps the page in sync.

Examples:
  storefront serve                          # Serve on localhost:8080
  storefront serve --port 9000              # Serve on another port
  storefront serve --render-url http://renderer:3001/api/render`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "Additional origins allowed to open websockets")
	serveCmd.Flags().String("render-url", "", "Render service endpoint")
	serveCmd.Flags().String("ai-url", "", "Generation service endpoint")
	serveCmd.Flags().String("backup-driver", "", "Backup store (memory, file, sqlite, redis)")

	serveCmd.PreRunE = bindFlags(map[string]string{
		"server.port":            "port",
		"server.host":            "host",
		"server.allowed_origins": "allowed-origins",
		"render.url":             "render-url",
		"ai.url":                 "ai-url",
		"backup.driver":          "backup-driver",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backup.Open(cfg.BackupStore())
	if err != nil {
		return err
	}
	defer store.Close()

	pruner, err := backup.NewPruner(store, cfg.Backup.PruneSchedule, cfg.Backup.Retention, logger)
	if err != nil {
		return err
	}
	pruner.Start()
	defer pruner.Stop()

	base, err := sessionOptions(cfg, store, logger)
	if err != nil {
		return err
	}
	sessions := editor.NewManager(base)
	defer sessions.Close()

	srv, err := server.New(sessions, server.Options{
		Addr:           cfg.Addr(),
		AllowedOrigins: append([]string{cfg.HostOrigin()}, cfg.Server.AllowedOrigins...),
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		Catalog:        base.Catalog,
		Version:        version.GetShortVersion(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "Starting storefront editor",
		"url", cfg.HostOrigin(),
		"render", cfg.Render.URL,
		"backup", cfg.Backup.Driver,
		"ai", cfg.AI.URL != "")

	if err := srv.Start(ctx); err != nil {
		return err
	}

	logger.Info(context.Background(), "Server stopped")
	return nil
}
