package analysis

import (
	"bytes"
	"encoding/json"
	"strings"

	apperrors "github.com/edgard/veritybot/internal/errors"
	"github.com/edgard/veritybot/internal/render"
)

// Result and Verdict are shared with the renderer.
type (
	Result  = render.Result
	Verdict = render.Verdict
)

const invalidPayload = "invalid analysis payload"

// ParseResult decodes raw model output and checks its structure. The score
// must be a JSON integer in [1,100]; signals must all be strings; summary
// must be non-blank.
func ParseResult(raw string) (Result, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Result{}, apperrors.NewValidationError("invalid JSON", err)
	}
	if dec.More() {
		return Result{}, apperrors.NewValidationError("invalid JSON", nil)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return Result{}, apperrors.NewValidationError(invalidPayload, nil)
	}
	return resultFromObject(obj)
}

func resultFromObject(obj map[string]any) (Result, error) {
	verdictStr, _ := obj["verdict"].(string)
	verdict := Verdict(verdictStr)
	if !verdict.Valid() {
		return Result{}, apperrors.NewValidationError(invalidPayload+": unknown verdict", nil)
	}

	score, ok := integer(obj["score"])
	if !ok || score < 1 || score > 100 {
		return Result{}, apperrors.NewValidationError(invalidPayload+": score must be an integer from 1 to 100", nil)
	}

	rawSignals, ok := obj["signals"].([]any)
	if !ok {
		return Result{}, apperrors.NewValidationError(invalidPayload+": signals must be an array", nil)
	}
	signals := make([]string, 0, len(rawSignals))
	for _, item := range rawSignals {
		s, ok := item.(string)
		if !ok {
			return Result{}, apperrors.NewValidationError(invalidPayload+": signals must be strings", nil)
		}
		signals = append(signals, s)
	}

	summary, _ := obj["summary"].(string)
	if strings.TrimSpace(summary) == "" {
		return Result{}, apperrors.NewValidationError(invalidPayload+": summary is empty", nil)
	}

	return Result{
		Verdict: verdict,
		Score:   score,
		Signals: signals,
		Summary: summary,
	}, nil
}

// integer accepts json.Number values without a fraction or exponent.
func integer(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}

// decodeObject decodes b into a generic object with number preservation.
func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}
