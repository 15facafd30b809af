package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/edgard/veritybot/internal/errors"
)

func TestRemoteAnalyzer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		wantID    int64
		wantScore int
		wantSigs  int
	}{
		{
			name:      "wrapped response",
			status:    http.StatusOK,
			body:      `{"dialog_id":9,"analysis":{"verdict":"lie-leaning","score":77,"signals":["a"," ","b"],"summary":"s"},"answer":"x"}`,
			wantID:    9,
			wantScore: 77,
			wantSigs:  2,
		},
		{
			name:      "bare result",
			status:    http.StatusOK,
			body:      `{"verdict":"truth-leaning","score":12,"signals":[],"summary":"fine"}`,
			wantScore: 12,
		},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, wantErr: true},
		{name: "not json", status: http.StatusOK, body: `ok`, wantErr: true},
		{name: "invalid analysis", status: http.StatusOK, body: `{"analysis":{"verdict":"x"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/analyze" {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				var got remoteRequest
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if got.TelegramUserID != 5 || got.Text != "hello" || !got.Welcomed {
					t.Errorf("request body = %+v", got)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			a := NewRemoteAnalyzer(srv.URL+"/", 5*time.Second, quietLogger())
			out, err := a.Analyze(context.Background(), Request{UserID: 5, Text: "hello", Welcomed: true})

			if tt.wantErr {
				if !apperrors.IsExternal(err) {
					t.Fatalf("Analyze() error = %v, want external service error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if out.DialogID != tt.wantID || out.Result.Score != tt.wantScore || len(out.Result.Signals) != tt.wantSigs {
				t.Errorf("Analyze() = %+v", out)
			}
			if out.Answer == "" {
				t.Error("Answer should be rendered")
			}
		})
	}
}

func TestRemoteAnalyzer_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemoteAnalyzer(url, time.Second, quietLogger()).Analyze(context.Background(), Request{UserID: 1, Text: "x"})
	if !apperrors.IsExternal(err) {
		t.Errorf("Analyze() error = %v, want external service error", err)
	}
}
