package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/horusec-scan/internal/config"
	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
	"github.com/bryanwahyu/horusec-scan/internal/infra/httpserver"
	"github.com/bryanwahyu/horusec-scan/internal/logging"
	"github.com/bryanwahyu/horusec-scan/internal/middleware"
)

// abortGrace is how long aborted scans get to clean up on shutdown.
const abortGrace = 10 * time.Second

// errScanFailed makes the scan command exit 1 after printing the envelope.
var errScanFailed = errors.New("scan failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errScanFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "horusec-scan",
		Short:         "HTTP service that clones a git repository and scans it with Horusec",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default $CONFIG_PATH or config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	})
	root.AddCommand(newScanCmd(&configPath))
	return root
}

func newScanCmd(configPath *string) *cobra.Command {
	var gitKey string
	var analyze bool

	cmd := &cobra.Command{
		Use:   "scan <repo_url>",
		Short: "Scan one repository and print the JSON envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			app, err := build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Scans.Scan(cmd.Context(), domain.Request{RepoURL: args[0], Credential: gitKey, Analyze: analyze})
			out := map[string]any{"success": err == nil}
			if err != nil {
				var se *domain.Error
				switch {
				case !errors.As(err, &se):
					out["error"] = err.Error()
				case se.Diagnostics == nil:
					out["error"] = se.Message
				default:
					out["error"] = se
				}
			} else {
				out["results"] = res.Report.Raw
				if res.ArtifactURL != "" {
					out["artifact_url"] = res.ArtifactURL
				}
				if res.Analysis != "" {
					out["analysis"] = res.Analysis
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if eerr := enc.Encode(out); eerr != nil {
				return eerr
			}
			if err != nil {
				return errScanFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&gitKey, "gitkey", "", "access token spliced into an https repo_url")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "add an AI analysis of the report")
	return cmd
}

func setup(configPath string) (*config.Config, *zap.Logger, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config load error: %w", err)
	}
	log, err := logging.New(cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("logger init error: %w", err)
	}
	return cfg, log, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Janitor != nil {
		go app.Janitor.Run(ctx)
	}

	abortCtx, abort := context.WithCancel(context.Background())
	defer abort()
	app.Scans.Abort = abortCtx

	metrics := middleware.NewMetrics()
	app.Scans.Recorder = metrics

	handler := httpserver.NewRouter(app.Scans, httpserver.Options{
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		APIKeys:            cfg.Server.APIKeys,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimit.RPS,
		RateLimitBurst:     cfg.RateLimit.Burst,
		Checkers:           app.Checkers,
		Metrics:            metrics,
		Log:                log,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Addr()),
			zap.String("engine_mode", cfg.Engine.Mode), zap.String("output_mode", cfg.Engine.OutputMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// scans outlived the shutdown timeout: kill their processes so the
		// deferred cleanup runs before we exit
		log.Warn("shutdown timed out, aborting running scans",
			zap.Error(err), zap.Int("workspaces", app.Workspaces.Active()))
		abort()
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), abortGrace)
		defer cancelDrain()
		if werr := app.Scans.Wait(drainCtx); werr != nil {
			log.Error("scans still running after abort", zap.Error(werr))
		}
		if rerr := app.Workspaces.ReleaseAll(); rerr != nil {
			log.Error("workspace cleanup failed", zap.Error(rerr))
		}
		return err
	}
	return nil
}
