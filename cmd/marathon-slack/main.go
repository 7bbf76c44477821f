package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marcoreni/marathon-slack/internal/api"
	"github.com/marcoreni/marathon-slack/internal/bridge"
	"github.com/marcoreni/marathon-slack/internal/config"
	"github.com/marcoreni/marathon-slack/internal/filter"
	"github.com/marcoreni/marathon-slack/internal/marathon"
	"github.com/marcoreni/marathon-slack/internal/slack"
)

func main() {
	var (
		listenAddr  string
		configPath  string
		drainWindow time.Duration
		debug       bool
	)

	flag.StringVar(&listenAddr, "listen-addr", ":8080", "The address the health and metrics endpoints bind to.")
	flag.StringVar(&configPath, "config", "", "Path to an optional YAML config file. Environment variables override it.")
	flag.DurationVar(&drainWindow, "drain-window", time.Second, "How long to wait for in-flight deliveries on shutdown.")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging.")
	flag.Parse()

	// Setup logger
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := logConfig.Build()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting marathon-slack",
		zap.String("marathon", cfg.MarathonHost),
		zap.Int("port", cfg.MarathonPort),
		zap.String("webhook", slack.RedactURL(cfg.SlackWebhookURL)),
		zap.Strings("event_types", cfg.ResolvedEventTypes()),
	)

	gate := filter.Config{
		AppIDPatterns: filter.Compile(cfg.ResolvedAppIDPatterns(), logger),
		TaskStatuses:  cfg.ResolvedTaskStatuses(),
	}

	client := marathon.NewClient(marathon.ClientOptions{
		Host:       cfg.MarathonHost,
		Port:       cfg.MarathonPort,
		Protocol:   cfg.MarathonProtocol,
		EventTypes: cfg.ResolvedEventTypes(),
		Logger:     logger,
	})

	sender, err := slack.NewSender(logger, slack.SenderOptions{
		WebhookURL: cfg.SlackWebhookURL,
		Channel:    cfg.SlackChannel,
		BotName:    cfg.SlackBotName,
		IconURL:    cfg.SlackBotImage,
	})
	if err != nil {
		logger.Fatal("Failed to create slack sender", zap.Error(err))
	}

	b := bridge.New(client, sender, logger, bridge.Options{
		EventTypes:  cfg.ResolvedEventTypes(),
		Filter:      gate,
		DrainWindow: drainWindow,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b.Start(ctx)

	// Drain one notification tap into the debug log so operators can trace
	// the bridge's activity without an external consumer.
	go func() {
		for n := range b.Notifications("log") {
			logger.Debug("Notification",
				zap.String("kind", string(n.Kind)),
				zap.Int64("timestamp", n.Timestamp),
				zap.String("message", n.Message),
			)
		}
	}()

	srv := api.NewServer(listenAddr, b, logger)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("HTTP server exited with error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	b.Stop()
}
