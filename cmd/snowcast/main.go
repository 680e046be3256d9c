package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"snowcast/config"
	"snowcast/forecast"
	"snowcast/frontend"
	qhttp "snowcast/http"
	"snowcast/launcher"
	"snowcast/logging"
	"snowcast/ml"
	"snowcast/monitoring"
	"snowcast/predictor"
	"snowcast/weather"
)

const usage = `usage: snowcast <command> [flags]

commands:
  serve   run the prediction service
  ui      run the form front end against a running service
  run     run both (-mode single|split)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := flags.String("config", defaultConfigPath(), "path to config.yaml")
	mode := flags.String("mode", "single", "deployment mode for run: single or split")
	flags.Parse(args)

	// 1. Load config
	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Run the command until a signal arrives
	switch command {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "ui":
		err = runUI(ctx, cfg, logger)
	case "run":
		switch *mode {
		case "single":
			err = runSingle(ctx, cfg, logger)
		case "split":
			err = runSplit(ctx, cfg, *configPath, logger)
		default:
			err = fmt.Errorf("unknown mode %q", *mode)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		var loadErr *ml.ModelLoadError
		if errors.As(err, &loadErr) {
			logger.Error("failed to load model", zap.String("path", loadErr.Path), zap.Error(loadErr.Err))
		} else {
			logger.Error("snowcast exited with error", zap.String("command", command), zap.Error(err))
		}
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Exiting")
}

// defaultConfigPath looks for config in root even if run from cmd/.
func defaultConfigPath() string {
	configPath := "config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if _, err := os.Stat(filepath.Join("..", "..", configPath)); err == nil {
			return filepath.Join("..", "..", configPath)
		}
	}
	return configPath
}

func loadService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*predictor.Service, *monitoring.PredictionMetrics, *ml.ModelHandle, error) {
	handle, err := ml.LoadModel(cfg.Model.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	info := handle.Info()
	logger.Info("model loaded",
		zap.String("path", info.Path),
		zap.String("model_type", info.ModelType),
		zap.Int("num_features", info.NumFeatures),
	)

	alerts := monitoring.NewAlertSystem(monitoring.AlertConfig{
		WebhookURL: cfg.Alerts.WebhookURL,
		Cooldown:   cfg.Alerts.Cooldown,
		MaxPerHour: cfg.Alerts.MaxPerHour,
	}, logger.Named("alerts"))

	if cfg.Model.Watch {
		watcher, err := ml.NewWatcher(handle, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("watch model: %w", err)
		}
		watcher.OnReload(func(err error) {
			if err == nil {
				alerts.ResolveSource(monitoring.SourceModelReload)
				return
			}
			alerts.SendAlert(&monitoring.Alert{
				Level:    monitoring.Warning,
				Title:    "model reload failed",
				Message:  err.Error(),
				Source:   monitoring.SourceModelReload,
				Metadata: map[string]interface{}{"path": handle.Path()},
			})
		})
		go func() {
			watcher.Run(ctx)
			watcher.Close()
		}()
	}

	metrics := monitoring.NewPredictionMetrics(nil)
	service := predictor.NewService(handle, predictor.ServiceConfig{
		PredictTimeout: cfg.Service.PredictTimeout,
		Metrics:        metrics,
		Alerts:         alerts,
		Logger:         logger,
	})
	return service, metrics, handle, nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	server, err := serviceServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return serve(ctx, logger, server)
}

// serviceServer loads the model and builds the API server without binding its port.
func serviceServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*qhttp.Server, error) {
	service, metrics, handle, err := loadService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	api := qhttp.NewAPI(service, metrics, handle.Info, logger)
	api.SetAlerts(service.Alerts())
	return qhttp.NewServer(serviceServerConfig(cfg), api.Routes(), logger), nil
}

func runUI(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client := predictor.NewClient(cfg.Frontend.ServiceURL, 0)
	if err := launcher.WaitReady(ctx, client, cfg.Launcher.ReadyTimeout, cfg.Launcher.PollInterval); err != nil {
		// submissions report the failure until the service comes up
		logger.Warn("prediction service not ready", zap.String("url", client.BaseURL()), zap.Error(err))
	}
	return serve(ctx, logger, frontendServer(cfg, client, logger))
}

func runSingle(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	service, _, _, err := loadService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return serve(ctx, logger, frontendServer(cfg, service, logger))
}

func runSplit(ctx context.Context, cfg *config.Config, configPath string, logger *zap.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	client := predictor.NewClient(cfg.Frontend.ServiceURL, 0)

	child, err := launcher.Launch(ctx, launcher.Config{
		Command:      exe,
		Args:         []string{"serve", "-config", configPath},
		ReadyTimeout: cfg.Launcher.ReadyTimeout,
		PollInterval: cfg.Launcher.PollInterval,
	}, client, logger)
	if err != nil {
		return err
	}

	server := frontendServer(cfg, client, logger)
	return launcher.Supervise(ctx, child, func(ctx context.Context) error {
		return serve(ctx, logger, server)
	})
}

func frontendServer(cfg *config.Config, p forecast.Predictor, logger *zap.Logger) *qhttp.Server {
	wx := weather.NewClient(weather.Config{
		BaseURL:     cfg.Weather.BaseURL,
		APIKey:      cfg.Weather.APIKey,
		Location:    cfg.Weather.Location,
		DisplayName: cfg.Weather.DisplayName,
		Lang:        cfg.Weather.Lang,
		Timeout:     cfg.Weather.Timeout,
	})
	app := frontend.New(p, wx, frontend.Config{
		Locale:        cfg.Frontend.Locale,
		SubmitTimeout: cfg.Frontend.SubmitTimeout,
		MaxSessions:   cfg.Frontend.MaxSessions,
		SessionTTL:    cfg.Frontend.SessionTTL,
	}, logger.Named("frontend"))

	serverConfig := serviceServerConfig(cfg)
	serverConfig.Addr = cfg.FrontendAddr()
	return qhttp.NewServer(serverConfig, app.Routes(), logger.Named("frontend"))
}

func serviceServerConfig(cfg *config.Config) qhttp.ServerConfig {
	return qhttp.ServerConfig{
		Addr:           cfg.ServiceAddr(),
		Timeout:        cfg.Service.Timeout,
		MaxBodyBytes:   cfg.Service.MaxBodyBytes,
		AllowedOrigins: cfg.Service.AllowedOrigins,
	}
}

// serve runs server until ctx is done or the server fails.
func serve(ctx context.Context, logger *zap.Logger, server *qhttp.Server) error {
	if err := server.Listen(); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down...")
	}

	if err := server.Stop(); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}
	return <-errCh
}
