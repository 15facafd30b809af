package handlers

import (
	"context"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/edgard/veritybot/internal/analysis"
	apperrors "github.com/edgard/veritybot/internal/errors"
	"github.com/edgard/veritybot/internal/metrics"
	"github.com/edgard/veritybot/internal/render"
)

// defaultAudioExt is used for voice notes and for audio files whose path has
// no extension.
const defaultAudioExt = "ogg"

func (h *UpdateHandler) handleVoice(ctx context.Context, c *conversation, fileID string, fileSize int64, isVoice bool) {
	msgs := h.deps.Config.Messages

	if fileID == "" {
		c.log.WarnContext(ctx, "Media message without file id")
		c.replyError(ctx)
		return
	}
	if fileSize > h.deps.Config.Telegram.MaxVoiceBytes {
		c.log.InfoContext(ctx, "Audio rejected as too large", "file_size", fileSize)
		c.reply(ctx, msgs.TooLong)
		return
	}

	c.ensureWelcome(ctx)
	c.reply(ctx, msgs.Transcribing)

	fileURL, err := h.deps.Transport.ResolveFileURL(ctx, fileID)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to resolve file", "error", err)
		c.replyError(ctx)
		return
	}

	ext := defaultAudioExt
	if !isVoice {
		ext = extFromURL(fileURL)
	}

	audioPath, cleanup, err := h.deps.Transport.DownloadFile(ctx, fileURL, ext)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to download file", "error", err)
		if apperrors.IsValidation(err) {
			c.reply(ctx, msgs.TooLong)
			return
		}
		c.replyError(ctx)
		return
	}
	defer cleanup()

	start := time.Now()
	transcript, err := h.deps.Transcriber.Transcribe(ctx, audioPath)
	metrics.ExternalCallDuration.WithLabelValues("transcription").Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.ErrorContext(ctx, "Transcription failed", "error", err)
		c.replyError(ctx)
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		c.reply(ctx, msgs.NotRecognized)
		return
	}

	out, err := h.deps.Analyzer.Analyze(ctx, analysis.Request{
		UserID:   c.userID,
		Text:     transcript,
		Welcomed: c.welcomed,
	})
	if err != nil {
		c.log.ErrorContext(ctx, "Voice analysis failed", "error", err)
		c.replyError(ctx)
		return
	}

	c.replyHTML(ctx, render.Answer(out.Result, transcript))
}

// extFromURL returns the extension of the file path in u without the dot,
// or the default when there is none.
func extFromURL(u string) string {
	p := u
	if parsed, err := url.Parse(u); err == nil {
		p = parsed.Path
	}
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		return ext
	}
	return defaultAudioExt
}
