// Package telegram wraps the go-telegram/bot client with the outbound
// operations the webhook needs: sending replies and fetching voice files.
package telegram

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
)

// NewTelegramBot creates a bot instance for webhook use only. It never polls
// and skips the getMe round trip, so construction does no network I/O.
func NewTelegramBot(token, serverURL string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	base := []bot.Option{bot.WithSkipGetMe()}
	if serverURL != "" {
		base = append(base, bot.WithServerURL(strings.TrimRight(serverURL, "/")))
	}

	b, err := bot.New(token, append(base, opts...)...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created", "token_prefix", tokenPrefix(token))
	return b, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
