package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/irfndi/kdp-pulse/internal/config"
)

// botInfoFetcher is the part of the Telegram API used to verify a token
type botInfoFetcher interface {
	GetMe(ctx context.Context) (*tgmodels.User, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var client botInfoFetcher
	if cfg.Telegram.BotToken != "" {
		b, err := bot.New(cfg.Telegram.BotToken, bot.WithSkipGetMe())
		if err != nil {
			fmt.Printf("❌ Failed to create Telegram bot: %v\n", err)
			os.Exit(1)
		}
		client = b
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := validate(ctx, cfg.Telegram.BotToken, client, os.Stdout); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

// validate checks that digest delivery is configured and the bot token is accepted
func validate(ctx context.Context, token string, client botInfoFetcher, out io.Writer) error {
	fmt.Fprintln(out, "🔧 Validating Telegram digest configuration...")

	if token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not configured, digests are disabled")
	}
	fmt.Fprintf(out, "✅ TELEGRAM_BOT_TOKEN is configured (length: %d)\n", len(token))

	if client == nil {
		return errors.New("telegram client is not initialised")
	}

	fmt.Fprintln(out, "🔍 Testing bot API connection...")
	info, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}

	fmt.Fprintln(out, "✅ Bot API connection successful!")
	fmt.Fprintf(out, "   Bot Name: %s\n", info.FirstName)
	fmt.Fprintf(out, "   Bot Username: @%s\n", info.Username)
	fmt.Fprintf(out, "   Bot ID: %d\n", info.ID)
	fmt.Fprintln(out, "\n🎉 Digest delivery is ready")
	return nil
}
