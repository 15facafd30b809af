package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/veritybot/internal/metrics"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler greets first-time users with the welcome text and prompts
// returning users for content. It never creates a dialog.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, _ *bot.Bot, _ *models.Update) {
	c, ok := conversationFrom(ctx)
	if !ok {
		h.deps.Logger.ErrorContext(ctx, "Start handler called without a conversation")
		return
	}
	metrics.WebhookUpdates.WithLabelValues(kindCommand).Inc()

	if err := c.loadWelcomed(ctx); err != nil {
		c.log.ErrorContext(ctx, "Failed to load welcome state", "error", err)
		c.replyError(ctx)
		return
	}

	c.log.InfoContext(ctx, "Handling /start command", "welcomed", c.welcomed)
	msgs := h.deps.Config.Messages
	if c.welcomed {
		c.reply(ctx, msgs.StartReturning)
		return
	}
	c.reply(ctx, msgs.Welcome)
}
