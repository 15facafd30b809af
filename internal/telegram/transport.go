package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/veritybot/internal/config"
	apperrors "github.com/edgard/veritybot/internal/errors"
)

const service = "telegram"

// SendOptions controls how an outbound message is rendered.
type SendOptions struct {
	HTML           bool
	DisablePreview bool
}

// Transport is the outbound chat surface used by the webhook handler.
type Transport interface {
	// SendMessage delivers text to a chat. Failures are logged and reported
	// only through the boolean result.
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) bool
	// ResolveFileURL turns a file id into a downloadable URL.
	ResolveFileURL(ctx context.Context, fileID string) (string, error)
	// DownloadFile stores the resource at url in a temp file with the given
	// extension. cleanup removes the file and may be called more than once.
	DownloadFile(ctx context.Context, url, ext string) (path string, cleanup func(), err error)
}

// Client implements Transport on top of *bot.Bot. A Client with a nil bot
// drops every send.
type Client struct {
	bot             *bot.Bot
	httpClient      *http.Client
	sendTimeout     time.Duration
	downloadTimeout time.Duration
	maxBytes        int64
	log             *slog.Logger
}

// NewClient creates a transport client. b may be nil when no token is
// configured.
func NewClient(b *bot.Bot, cfg config.TelegramConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		bot:             b,
		httpClient:      &http.Client{},
		sendTimeout:     cfg.SendTimeout,
		downloadTimeout: cfg.DownloadTimeout,
		maxBytes:        cfg.MaxVoiceBytes,
		log:             logger.With("component", "telegram_transport"),
	}
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) bool {
	if c.bot == nil {
		c.log.DebugContext(ctx, "No bot configured, dropping message", "chat_id", chatID)
		return false
	}

	sendCtx, cancel := withTimeout(ctx, c.sendTimeout)
	defer cancel()

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if opts.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	if opts.DisablePreview {
		params.LinkPreviewOptions = &models.LinkPreviewOptions{IsDisabled: bot.True()}
	}

	if _, err := c.bot.SendMessage(sendCtx, params); err != nil {
		c.log.ErrorContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
		return false
	}
	return true
}

func (c *Client) ResolveFileURL(ctx context.Context, fileID string) (string, error) {
	if c.bot == nil {
		return "", apperrors.NewExternalServiceError(service, "bot is not configured", nil)
	}
	if fileID == "" {
		return "", apperrors.NewValidationError("empty file id", nil)
	}

	getCtx, cancel := withTimeout(ctx, c.sendTimeout)
	defer cancel()

	file, err := c.bot.GetFile(getCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", apperrors.NewExternalServiceError(service, "getFile failed", err)
	}
	if file == nil || file.FilePath == "" {
		return "", apperrors.NewExternalServiceError(service, "getFile returned no file path", nil)
	}

	return c.bot.FileDownloadLink(file), nil
}

func (c *Client) DownloadFile(ctx context.Context, url, ext string) (path string, cleanup func(), err error) {
	downloadCtx, cancel := withTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, apperrors.NewExternalServiceError(service, "failed to create download request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, apperrors.NewExternalServiceError(service, "file download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, apperrors.NewExternalServiceError(service, fmt.Sprintf("file download returned HTTP %d", resp.StatusCode), nil)
	}

	f, err := os.CreateTemp("", "tg_voice_*."+sanitizeExt(ext))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup = removeOnce(f.Name())

	body := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBytes+1)
	}

	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		cleanup()
		return "", nil, apperrors.NewExternalServiceError(service, "failed to store downloaded file", copyErr)
	case closeErr != nil:
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	case c.maxBytes > 0 && n > c.maxBytes:
		cleanup()
		return "", nil, apperrors.NewValidationError(fmt.Sprintf("downloaded file exceeds %d bytes", c.maxBytes), nil)
	}

	c.log.DebugContext(ctx, "File downloaded", "path", f.Name(), "bytes", n)
	return f.Name(), cleanup, nil
}

// removeOnce returns an idempotent remover for path.
func removeOnce(path string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("Failed to remove temp file", "path", path, "error", err)
			}
		})
	}
}

// sanitizeExt keeps the extension usable in a temp file pattern.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "ogg"
	}
	return b.String()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
