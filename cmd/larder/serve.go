package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/config"
	"github.com/larderhq/larder/internal/home"
	"github.com/larderhq/larder/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Larder server",
	Long: `Start the Larder HTTP server.

The server opens the embedded job store and runs the extraction lanes.
A default config file is written on first start.

The server provides:
  - POST   /api/extractions      - Submit a PDF for extraction
  - GET    /api/extractions/{id} - Poll a job
  - DELETE /api/extractions/{id} - Cancel a job
  - /health, /ready, /status     - Operational checks

Examples:
  larder serve                   # Start on default port 8080
  larder serve --port 3000       # Start on custom port
  larder serve --host 0.0.0.0    # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Write a default config on first start
		cfgPath := cfgFile
		if cfgPath == "" {
			cfgPath = h.ConfigPath()
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := config.WriteDefault(cfgPath); err != nil {
				return err
			}
			logger.Info("wrote default config", "path", cfgPath)
		}

		cfgMgr, err := config.NewManager(cfgPath)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		host := serveHost
		if host == "" {
			host = cfgMgr.Get().Server.Host
		}
		port := servePort
		if port == "" {
			port = cfgMgr.Get().Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
