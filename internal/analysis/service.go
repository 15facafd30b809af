// Package analysis runs a statement through the completion backend, keeps the
// dialog log in the store and validates the structured verdict.
package analysis

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/veritybot/internal/completion"
	"github.com/edgard/veritybot/internal/database"
	apperrors "github.com/edgard/veritybot/internal/errors"
	"github.com/edgard/veritybot/internal/metrics"
	"github.com/edgard/veritybot/internal/render"
)

// Request is one statement to analyze on behalf of a Telegram user.
type Request struct {
	UserID int64
	Text   string
	// Welcomed is recorded on the dialog so later lookups know the user has
	// already seen the welcome text.
	Welcomed bool
}

// Outcome is a successful analysis.
type Outcome struct {
	DialogID int64
	Result   Result
	// Answer is the rendered reply without a transcript header.
	Answer string
}

// Analyzer runs an analysis, locally or on another instance.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Outcome, error)
}

// Service is the in-process Analyzer.
type Service struct {
	store      database.Store
	completion completion.Client
	log        *slog.Logger
}

// NewService creates an in-process analyzer.
func NewService(store database.Store, client completion.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:      store,
		completion: client,
		log:        logger.With("component", "analysis"),
	}
}

// Analyze validates the request, stores the user turn, calls the model,
// stores its raw reply and then validates it. Any failure after the dialog is
// created finalizes the dialog as error and returns the original error.
func (s *Service) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	text := strings.TrimSpace(req.Text)
	if req.UserID <= 0 {
		return nil, apperrors.NewValidationError("telegram_user_id must be a positive integer", nil)
	}
	if text == "" {
		return nil, apperrors.NewValidationError("text must be a non-empty string", nil)
	}

	if err := s.store.EnsureSchema(ctx); err != nil {
		metrics.Analyses.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	dialogID, err := s.store.CreateDialog(ctx, req.UserID, req.Welcomed)
	if err != nil {
		metrics.Analyses.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	log := s.log.With("dialog_id", dialogID, "user_id", req.UserID)

	result, err := s.run(ctx, log, dialogID, text)
	if err != nil {
		s.bestEffortFail(ctx, log, dialogID)
		if apperrors.IsValidation(err) {
			metrics.Analyses.WithLabelValues(metrics.OutcomeValidationError).Inc()
		} else {
			metrics.Analyses.WithLabelValues(metrics.OutcomeError).Inc()
		}
		log.WarnContext(ctx, "Analysis failed", "error", err)
		return nil, err
	}

	metrics.Analyses.WithLabelValues(metrics.OutcomeDone).Inc()
	log.InfoContext(ctx, "Analysis completed", "verdict", result.Verdict, "score", result.Score)
	return &Outcome{
		DialogID: dialogID,
		Result:   result,
		Answer:   render.Answer(result, ""),
	}, nil
}

func (s *Service) run(ctx context.Context, log *slog.Logger, dialogID int64, text string) (Result, error) {
	if _, err := s.store.AddMessage(ctx, dialogID, database.RoleUser, text); err != nil {
		return Result{}, err
	}

	start := time.Now()
	raw, err := s.completion.Analyze(ctx, text)
	metrics.ExternalCallDuration.WithLabelValues("completion").Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, apperrors.NewExternalServiceError("completion", "empty response", nil)
	}

	// The raw reply is logged before validation so malformed output can be
	// inspected later.
	if _, err := s.store.AddMessage(ctx, dialogID, database.RoleAssistant, raw); err != nil {
		return Result{}, err
	}

	result, err := ParseResult(raw)
	if err != nil {
		log.DebugContext(ctx, "Model output rejected", "raw", raw)
		return Result{}, err
	}

	if err := s.store.FinishDialog(ctx, dialogID, database.StatusDone); err != nil {
		return Result{}, err
	}
	return result, nil
}

// bestEffortFail marks the dialog as error. Its own failure is only logged.
func (s *Service) bestEffortFail(ctx context.Context, log *slog.Logger, dialogID int64) {
	// The request context may already be done; finalizing must still happen.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.store.FinishDialog(finishCtx, dialogID, database.StatusError); err != nil {
		log.WarnContext(ctx, "Failed to mark dialog as error", "error", err)
	}
}
