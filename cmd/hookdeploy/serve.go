package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hookdeploy/internal/server"
	"hookdeploy/internal/target"
	"hookdeploy/pkg/fileutil"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logFile    string
	host       string
	port       int
	testMode   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server to receive provider webhook requests.

The server listens for push notifications and triggers deployments based on
your target configuration.`,
	RunE: runServe,
}

func init() {
	// Environment variables are read after an optional .env file load,
	// so flag defaults are resolved lazily in runServe.
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to targets.yaml configuration file")
	serveCmd.Flags().StringVar(&logFile, "log", "", "Path to log file")
	serveCmd.Flags().StringVar(&host, "host", "", "Host to bind to")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", false, "Enable test mode (no rate limiting)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Optional .env support for systemd/docker setups
	_ = godotenv.Load()

	if configFile == "" {
		configFile = os.Getenv("HOOKDEPLOY_CONFIG_FILE")
	}
	if logFile == "" {
		logFile = getEnvOrDefault("HOOKDEPLOY_LOG_FILE", "./deployments.log")
	}
	if host == "" {
		host = getEnvOrDefault("HOOKDEPLOY_HOST", "127.0.0.1")
	}
	if port == 0 {
		port = getEnvOrDefaultInt("HOOKDEPLOY_PORT", 5000)
	}

	// Determine config file path
	if configFile == "" {
		searchPaths := fileutil.DefaultConfigPaths("targets.yaml")
		configFile = fileutil.SearchPathsOptional(searchPaths)
		if configFile == "" {
			fmt.Fprintf(os.Stderr, "Error: No configuration file found in default locations:\n")
			for _, path := range searchPaths {
				fmt.Fprintf(os.Stderr, "  - %s\n", path)
			}
			fmt.Fprintf(os.Stderr, "Use --config flag to specify a custom location\n")
			return fmt.Errorf("configuration file not found")
		}
	}

	// Set up logging
	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting hookdeploy")

	// Load configuration
	logger.Info("Loading configuration", "config", configFile)
	_, targets, err := target.LoadConfig(configFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("Configuration validated successfully", "count", len(targets))

	if len(targets) == 0 {
		logger.Warn("No targets configured in config file", "config", configFile)
		logger.Warn("The server will start but won't handle any deployments until targets are added")
	}

	// Create target registry and server
	registry := target.NewRegistry(targets)
	srv := server.NewServer(registry, logger, testMode)

	logger.Info("Starting HTTP server", "host", host, "port", port)

	// Serve until the process is told to stop, then drain connections
	// and let in-flight deployments finish.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(host, port) }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}

	return nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return slog.New(handler), file, nil
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
