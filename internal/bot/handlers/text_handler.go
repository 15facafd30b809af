package handlers

import (
	"context"
	"strings"

	"github.com/edgard/veritybot/internal/analysis"
	"github.com/edgard/veritybot/internal/render"
)

func (h *UpdateHandler) handleText(ctx context.Context, c *conversation, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		c.reply(ctx, h.deps.Config.Messages.PromptContent)
		return
	}

	c.ensureWelcome(ctx)

	out, err := h.deps.Analyzer.Analyze(ctx, analysis.Request{
		UserID:   c.userID,
		Text:     trimmed,
		Welcomed: c.welcomed,
	})
	if err != nil {
		c.log.ErrorContext(ctx, "Text analysis failed", "error", err)
		c.replyError(ctx)
		return
	}

	c.replyHTML(ctx, render.Answer(out.Result, ""))
}
