package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wabot-dev/wabot/pkg/bot"
	"github.com/wabot-dev/wabot/pkg/config"
	"github.com/wabot-dev/wabot/pkg/logger"
	"github.com/wabot-dev/wabot/pkg/ratelimit"
	"github.com/wabot-dev/wabot/pkg/transport"
	"github.com/wabot-dev/wabot/pkg/transport/wameow"
	"github.com/wabot-dev/wabot/pkg/transport/webdriver"
)

const chatRetryInterval = 5 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runBot(configPath)
		},
	}
}

func runBot(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := buildTransport(ctx, cfg)
	if err != nil {
		return err
	}

	client := bot.New(tr, bot.Options{
		Prefix:       cfg.Bot.CommandPrefix,
		ErrorMode:    bot.ErrorModeFromFlags(cfg.Bot.DebugException, cfg.Bot.DebugTraceback, cfg.Bot.DisableErrorHandling),
		PollInterval: time.Duration(cfg.Bot.PollIntervalMS) * time.Millisecond,
		InputBackoff: time.Duration(cfg.Bot.InputBackoffMS) * time.Millisecond,
		SendLimiter:  ratelimit.New(cfg.RateLimit.MessagesPerMinute, cfg.RateLimit.Burst),
	})

	client.RegisterCommand("ping", func(ctx context.Context, _ []string, _ *bot.Message) error {
		return client.SendMessage(ctx, "pong")
	}, "Replies with pong")

	if cfg.Bot.Chat != "" {
		attachChat(ctx, client, cfg.Bot.Chat)
	}

	err = client.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// attachChat keeps trying to select the configured chat. On a fresh
// webdriver profile the chat list only exists after the QR scan, so the
// first attempts are expected to fail.
func attachChat(ctx context.Context, client *bot.Client, chat string) {
	for {
		err := client.SetChat(ctx, chat)
		if err == nil {
			return
		}
		logger.WarnCF("wabot", "chat not available yet, retrying", map[string]any{
			"chat":  chat,
			"error": err.Error(),
		})
		select {
		case <-ctx.Done():
			return
		case <-time.After(chatRetryInterval):
		}
	}
}

func buildTransport(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport.Driver {
	case "wameow":
		return wameow.Connect(ctx, cfg.Transport.Wameow)
	case "webdriver":
		return webdriver.New(cfg.Transport.Webdriver)
	default:
		return nil, fmt.Errorf("unknown transport driver %q", cfg.Transport.Driver)
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(config.ExpandHome(configPath))
	if err != nil {
		return nil, err
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactionEnabled(cfg.Logging.Redaction)
	if cfg.Logging.File != "" {
		if err := logger.EnableFileLogging(config.ExpandHome(cfg.Logging.File)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
