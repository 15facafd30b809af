package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgard/veritybot/internal/database"
	apperrors "github.com/edgard/veritybot/internal/errors"
)

type fakeCompletion struct {
	out   string
	err   error
	calls int
}

func (f *fakeCompletion) Analyze(context.Context, string) (string, error) {
	f.calls++
	return f.out, f.err
}

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "analysis.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_EndToEnd(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	raw := `{"verdict":"truth-leaning","score":18,"signals":[],"summary":"No contradictions detected."}`
	svc := NewService(store, &fakeCompletion{out: raw}, quietLogger())

	out, err := svc.Analyze(ctx, Request{UserID: 42, Text: "  I was at work all day  ", Welcomed: true})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if out.DialogID == 0 || out.Result.Score != 18 || out.Result.Verdict != "truth-leaning" {
		t.Errorf("Analyze() = %+v", out)
	}
	if !strings.Contains(out.Answer, "18 / 100") {
		t.Errorf("Answer = %q, want the score line", out.Answer)
	}

	d, err := store.GetDialog(ctx, out.DialogID)
	if err != nil {
		t.Fatalf("GetDialog() error = %v", err)
	}
	if d.Status != database.StatusDone || !d.Welcomed || d.TelegramUserID != 42 {
		t.Errorf("dialog = %+v, want done and welcomed", d)
	}

	msgs, err := store.ListMessages(ctx, out.DialogID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != database.RoleUser || msgs[0].Content != "I was at work all day" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != database.RoleAssistant || msgs[1].Content != raw {
		t.Errorf("assistant message = %+v", msgs[1])
	}
}

func TestService_InvalidModelOutputIsKept(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	svc := NewService(store, &fakeCompletion{out: "I cannot help with that."}, quietLogger())

	_, err := svc.Analyze(ctx, Request{UserID: 7, Text: "statement"})
	if !apperrors.IsValidation(err) {
		t.Fatalf("Analyze() error = %v, want validation error", err)
	}

	d, err := store.GetDialog(ctx, 1)
	if err != nil || d == nil {
		t.Fatalf("GetDialog() = %v, %v", d, err)
	}
	if d.Status != database.StatusError {
		t.Errorf("dialog status = %q, want error", d.Status)
	}
	msgs, err := store.ListMessages(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "I cannot help with that." {
		t.Errorf("messages = %+v, want the raw assistant output persisted", msgs)
	}
}

func TestService_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		req          Request
		completion   *fakeCompletion
		wantCode     string
		wantDialog   bool
		wantMessages int
	}{
		{
			name:       "zero user id",
			req:        Request{UserID: 0, Text: "hi"},
			completion: &fakeCompletion{},
			wantCode:   apperrors.CodeValidation,
		},
		{
			name:       "blank text",
			req:        Request{UserID: 1, Text: " \n\t"},
			completion: &fakeCompletion{},
			wantCode:   apperrors.CodeValidation,
		},
		{
			name:         "completion failure",
			req:          Request{UserID: 1, Text: "hi"},
			completion:   &fakeCompletion{err: apperrors.NewExternalServiceError("openai", "HTTP 500", nil)},
			wantCode:     apperrors.CodeExternal,
			wantDialog:   true,
			wantMessages: 1,
		},
		{
			name:         "empty completion",
			req:          Request{UserID: 1, Text: "hi"},
			completion:   &fakeCompletion{out: "   "},
			wantCode:     apperrors.CodeExternal,
			wantDialog:   true,
			wantMessages: 1,
		},
		{
			name:         "invalid payload",
			req:          Request{UserID: 1, Text: "hi"},
			completion:   &fakeCompletion{out: `{"verdict":"truth-leaning","score":500,"signals":[],"summary":"x"}`},
			wantCode:     apperrors.CodeValidation,
			wantDialog:   true,
			wantMessages: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newTestStore(t)
			ctx := context.Background()

			_, err := NewService(store, tt.completion, quietLogger()).Analyze(ctx, tt.req)
			if got := apperrors.Code(err); got != tt.wantCode {
				t.Fatalf("Analyze() error = %v (code %s), want code %s", err, got, tt.wantCode)
			}

			d, err := store.GetDialog(ctx, 1)
			if err != nil {
				t.Fatalf("GetDialog() error = %v", err)
			}
			if !tt.wantDialog {
				if d != nil {
					t.Errorf("dialog created for a rejected request: %+v", d)
				}
				if tt.completion.calls != 0 {
					t.Errorf("completion called %d times for a rejected request", tt.completion.calls)
				}
				return
			}
			if d == nil || d.Status != database.StatusError {
				t.Fatalf("dialog = %+v, want status error", d)
			}
			msgs, err := store.ListMessages(ctx, d.ID)
			if err != nil {
				t.Fatalf("ListMessages() error = %v", err)
			}
			if len(msgs) != tt.wantMessages {
				t.Errorf("messages = %d, want %d", len(msgs), tt.wantMessages)
			}
		})
	}
}

type failingSchemaStore struct {
	database.Store
}

func (failingSchemaStore) EnsureSchema(context.Context) error {
	return apperrors.NewPersistenceError("failed to ensure schema", errors.New("disk I/O error"))
}

func TestService_SchemaFailure(t *testing.T) {
	t.Parallel()
	fc := &fakeCompletion{}
	svc := NewService(failingSchemaStore{}, fc, quietLogger())

	_, err := svc.Analyze(context.Background(), Request{UserID: 1, Text: "hi"})
	if !apperrors.IsPersistence(err) {
		t.Errorf("Analyze() error = %v, want persistence error", err)
	}
	if fc.calls != 0 {
		t.Error("completion must not be called when the schema is unavailable")
	}
}
