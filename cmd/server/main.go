package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	mentorwebui "github.com/career-mentor/mentor-web-ui"
	"github.com/career-mentor/mentor-web-ui/internal/handlers"
	"github.com/career-mentor/mentor-web-ui/internal/services"
	"github.com/career-mentor/mentor-web-ui/internal/telemetry"
	"github.com/spf13/cobra"
)

var version = "dev"

type serveOptions struct {
	configPath string
	port       string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "career-mentor",
		Short:         "career-mentor serves a chat page for talking to an AI career coach about your resume",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "",
		"a config file (default is config.yaml in the user config directory)")
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "port to listen on, overrides the config file")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "verbose/debug output")

	return cmd
}

func serve(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfgPath := opts.configPath
	required := cfgPath != ""
	if cfgPath == "" {
		cfgPath = filepath.Join(defaultConfigDir(), "config.yaml")
	}

	cfg, err := loadConfig(cfgPath, required)
	if err != nil {
		return err
	}
	if opts.port != "" {
		cfg.Port = opts.port
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}

	logger, logCloser, err := telemetry.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	defer logCloser.Close()

	cleanupTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return fmt.Errorf("error initializing telemetry: %w", err)
	}
	defer cleanupTelemetry()

	backend, err := services.NewBackend(cfg.Backend.services(), logger)
	if err != nil {
		return fmt.Errorf("error creating backend client: %w", err)
	}

	store, storeCloser, err := cfg.Store.open(ctx, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("error opening %s session store: %w", cfg.Store.Kind, err)
	}
	defer storeCloser.Close()

	m, err := handlers.NewMain(backend, store, logger, handlers.WithSecureCookies(cfg.SecureCookies))
	if err != nil {
		return fmt.Errorf("error creating handlers: %w", err)
	}

	// Serve static files
	staticFS, err := fs.Sub(mentorwebui.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("error opening static files: %w", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/upload", m.HandleUpload)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/reset", m.HandleReset)
	mux.HandleFunc("/sse/session", m.HandleSSE)
	mux.HandleFunc("/healthz", m.HandleHealth)

	// WriteTimeout is left unset: queries may legitimately take minutes and SSE streams stay open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting",
			slog.String("addr", srv.Addr),
			slog.String("backend", cfg.Backend.URL),
			slog.String("store", cfg.Store.Kind),
			slog.String("version", version))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}

	return nil
}
