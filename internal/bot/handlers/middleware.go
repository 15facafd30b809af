// Package handlers implements the Telegram webhook: update classification,
// the welcome flow, voice transcription and analysis replies.
package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/veritybot/internal/logger"
	"github.com/edgard/veritybot/internal/metrics"
)

// SecretHeader carries the secret token configured with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// RequireSecret rejects requests whose secret header does not match secret.
// An empty secret disables the check.
func RequireSecret(secret string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(SecretHeader))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				log.WarnContext(r.Context(), "Webhook secret mismatch", "remote_addr", r.RemoteAddr)
				http.Error(w, "Forbidden.", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSender stops updates without a usable sender with the generic error
// reply. Otherwise it attaches the per-update conversation to the context.
func RequireSender(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			msg := update.Message
			if msg == nil {
				return
			}

			c := &conversation{
				deps:   deps,
				log:    logger.FromContext(ctx, deps.Logger),
				chatID: msg.Chat.ID,
			}

			if msg.From == nil || msg.From.ID <= 0 {
				metrics.WebhookUpdates.WithLabelValues(kindNoSender).Inc()
				c.log.WarnContext(ctx, "Update has no usable sender")
				c.replyError(ctx)
				return
			}
			c.userID = msg.From.ID

			next(withConversation(ctx, c), b, update)
		}
	}
}
