package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/vigil"
	"github.com/loykin/vigil/internal/config"
	"github.com/loykin/vigil/internal/notify"
)

func runServeCommand(flags *ServeFlags, args []string) error {
	configPath := flags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}
	if configPath == "" {
		return fmt.Errorf("config file required for serve command. Use --config=config.toml or provide as argument")
	}

	cfg, err := vigil.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if len(cfg.Services) == 0 {
		return fmt.Errorf("no services configured in %s", configPath)
	}

	if flags.Daemonize {
		logfile := flags.LogFile
		if logfile == "" {
			logfile = cfg.Server.LogFile
		}
		return daemonize(cfg.Server.PIDFile, logfile)
	}

	logCfg := cfg.Log
	if flags.LogFile != "" {
		logCfg.File = flags.LogFile
	}
	log := logCfg.New()
	slog.SetDefault(log)

	if cfg.Server.PIDFile != "" {
		if err := writePidFile(cfg.Server.PIDFile, os.Getpid()); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = removePidFile(cfg.Server.PIDFile) }()
	}

	st, err := vigil.NewStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	var sinks []vigil.HistorySink
	if cfg.History != nil {
		sink, err := vigil.NewHistorySink(*cfg.History)
		if err != nil {
			return fmt.Errorf("failed to open history sink: %w", err)
		}
		sinks = append(sinks, sink)
		if closer, ok := sink.(io.Closer); ok {
			defer func() { _ = closer.Close() }()
		}
	}

	notifier := buildNotifier(cfg, log)

	if cfg.Metrics.Enabled {
		if err := vigil.RegisterMetricsDefault(); err != nil {
			log.Warn("failed to register metrics", "error", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := vigil.ServeMetrics(cfg.Metrics.Listen); err != nil {
					log.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	sup := vigil.New(vigil.Options{
		Store:    st,
		Notifier: notifier,
		Sinks:    sinks,
		Logger:   log,
		Policy:   cfg.Policy,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, spec := range cfg.Services {
		if err := sup.Add(ctx, spec); err != nil {
			return fmt.Errorf("failed to add service %s: %w", spec.Name, err)
		}
	}
	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	listen := cfg.Server.Listen
	if listen == "" {
		listen = ":8080"
	}
	basePath := cfg.Server.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	server, err := vigil.NewHTTPServer(listen, basePath, sup)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	log.Info("vigil serving", "listen", listen, "base_path", basePath, "services", len(cfg.Services))

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Shutdown()
	return nil
}

func buildNotifier(cfg *config.FileConfig, log *slog.Logger) vigil.Notifier {
	var ns []notify.Notifier
	if tg := cfg.Notifications.Telegram; tg != nil && tg.Token != "" {
		ns = append(ns, notify.Telegram{Token: tg.Token, ChatID: tg.ChatID})
	}
	for _, wh := range cfg.Notifications.Webhooks {
		if wh.URL != "" {
			ns = append(ns, notify.Webhook{URL: wh.URL})
		}
	}
	if len(ns) == 0 {
		return nil
	}
	return notify.Multi{Notifiers: ns, Logger: log}
}
