package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/veritybot/internal/logger"
	"github.com/edgard/veritybot/internal/metrics"
	"github.com/edgard/veritybot/internal/telegram"
)

// maxUpdateBytes bounds the webhook request body.
const maxUpdateBytes = 1 << 20

// Update kinds used for logging and metrics.
const (
	kindText        = "text"
	kindCommand     = "command"
	kindVoice       = "voice"
	kindAudio       = "audio"
	kindUnsupported = "unsupported"
	kindNoSender    = "no_sender"
)

// UpdateHandler receives Telegram webhook updates and dispatches them
// through a go-telegram bot: registered commands first, everything else to
// the default message handler. Once an update is parsed it always answers
// 200 so Telegram does not redeliver it; failures are reported to the user
// in the chat instead.
type UpdateHandler struct {
	deps       HandlerDeps
	dispatcher *tgbot.Bot
}

// NewUpdateHandler creates the webhook handler. The dispatcher bot only
// routes updates; replies go out through deps.Transport.
func NewUpdateHandler(deps HandlerDeps) (*UpdateHandler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "webhook")

	h := &UpdateHandler{deps: deps}

	b, err := telegram.NewTelegramBot(deps.Config.Telegram.Token, deps.Config.Telegram.ServerURL, deps.Logger,
		tgbot.WithNotAsyncHandlers(),
		tgbot.WithMiddlewares(logger.Middleware(deps.Logger), RequireSender(deps)),
		tgbot.WithDefaultHandler(h.handleMessage),
	)
	if err != nil {
		return nil, err
	}
	registerHandlers(b, RegisterAllCommands(deps))
	h.dispatcher = b

	return h, nil
}

// NewWebhook returns the handler wrapped with the secret check.
func NewWebhook(deps HandlerDeps) (http.Handler, error) {
	h, err := NewUpdateHandler(deps)
	if err != nil {
		return nil, err
	}
	return RequireSecret(deps.Config.Telegram.WebhookSecret, h.deps.Logger)(h), nil
}

func (h *UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// A JSON null leaves update nil and is as unusable as a syntax error.
	var update *models.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&update); err != nil || update == nil {
		h.deps.Logger.WarnContext(r.Context(), "Invalid update body", "error", err)
		http.Error(w, "Invalid update.", http.StatusBadRequest)
		return
	}

	if update.Message == nil {
		writeText(w, "No message.")
		return
	}
	if update.Message.Chat.ID == 0 {
		writeText(w, "No chat.")
		return
	}

	// Replies must still go out if Telegram drops the connection mid-update.
	ctx := context.WithoutCancel(r.Context())
	h.dispatcher.ProcessUpdate(ctx, update)

	writeText(w, "OK")
}

// handleMessage is the default handler for every message no command matched.
func (h *UpdateHandler) handleMessage(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	c, ok := conversationFrom(ctx)
	if !ok {
		h.deps.Logger.ErrorContext(ctx, "Message handler called without a conversation")
		return
	}
	msg := update.Message

	kind := classify(msg)
	metrics.WebhookUpdates.WithLabelValues(kind).Inc()

	if kind == kindUnsupported {
		c.reply(ctx, h.deps.Config.Messages.Unsupported)
		return
	}

	if err := c.loadWelcomed(ctx); err != nil {
		c.log.ErrorContext(ctx, "Failed to load welcome state", "error", err)
		c.replyError(ctx)
		return
	}

	switch kind {
	case kindText:
		h.handleText(ctx, c, msg.Text)
	case kindVoice:
		h.handleVoice(ctx, c, msg.Voice.FileID, msg.Voice.FileSize, true)
	case kindAudio:
		h.handleVoice(ctx, c, msg.Audio.FileID, msg.Audio.FileSize, false)
	}
}

// classify picks the branch for a message. Text wins over media; a voice
// note wins over an audio file.
func classify(msg *models.Message) string {
	switch {
	case msg.Text != "":
		return kindText
	case msg.Voice != nil:
		return kindVoice
	case msg.Audio != nil:
		return kindAudio
	default:
		return kindUnsupported
	}
}

type conversationKey struct{}

func withConversation(ctx context.Context, c *conversation) context.Context {
	return context.WithValue(ctx, conversationKey{}, c)
}

func conversationFrom(ctx context.Context) (*conversation, bool) {
	c, ok := ctx.Value(conversationKey{}).(*conversation)
	return c, ok
}

// conversation is the per-update reply state for one chat.
type conversation struct {
	deps     HandlerDeps
	log      *slog.Logger
	chatID   int64
	userID   int64
	welcomed bool
}

func (c *conversation) loadWelcomed(ctx context.Context) error {
	if err := c.deps.Store.EnsureSchema(ctx); err != nil {
		return err
	}
	last, err := c.deps.Store.LastWelcomed(ctx, c.userID)
	if err != nil {
		return err
	}
	c.welcomed = last != nil && *last
	return nil
}

// ensureWelcome sends the welcome text once per update for users who have
// not seen it.
func (c *conversation) ensureWelcome(ctx context.Context) {
	if c.welcomed {
		return
	}
	c.reply(ctx, c.deps.Config.Messages.Welcome)
	c.welcomed = true
}

func (c *conversation) reply(ctx context.Context, text string) {
	c.deps.Transport.SendMessage(ctx, c.chatID, text, telegram.SendOptions{})
}

func (c *conversation) replyHTML(ctx context.Context, text string) {
	c.deps.Transport.SendMessage(ctx, c.chatID, text, telegram.SendOptions{HTML: true, DisablePreview: true})
}

func (c *conversation) replyError(ctx context.Context) {
	c.reply(ctx, c.deps.Config.Messages.GeneralError)
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
