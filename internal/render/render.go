// Package render formats analysis results as Telegram HTML messages.
package render

import (
	"html"
	"strconv"
	"strings"
)

// Verdict is the categorical outcome of an analysis.
type Verdict string

const (
	VerdictTruthLeaning   Verdict = "truth-leaning"
	VerdictLieLeaning     Verdict = "lie-leaning"
	VerdictUndeterminable Verdict = "undeterminable"
)

// Valid reports whether v is one of the known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictTruthLeaning, VerdictLieLeaning, VerdictUndeterminable:
		return true
	}
	return false
}

// Result is a validated analysis verdict.
type Result struct {
	Verdict Verdict  `json:"verdict"`
	Score   int      `json:"score"`
	Signals []string `json:"signals"`
	Summary string   `json:"summary"`
}

const (
	// MaxSignals caps the bullet list in a reply.
	MaxSignals = 6
	// SnippetLimit caps the recognized-speech quote, in runes.
	SnippetLimit = 200
)

// Answer renders r as HTML. A non-empty transcript adds a recognized-speech
// header quoting up to SnippetLimit runes of it.
func Answer(r Result, transcript string) string {
	var lines []string

	if quote := Snippet(transcript, SnippetLimit); quote != "" {
		lines = append(lines,
			"🎧 <i>Recognized:</i>",
			"“"+html.EscapeString(quote)+"”",
			"",
		)
	}

	if r.Verdict == VerdictUndeterminable {
		lines = append(lines, "⚠️ <b>Could not analyze</b>")
	} else {
		lines = append(lines,
			"🧠 <b>Verdict:</b> "+html.EscapeString(string(r.Verdict)),
			"📊 <b>Score:</b> "+strconv.Itoa(clamp(r.Score, 1, 100))+" / 100",
		)
	}

	if signals := visibleSignals(r.Signals); len(signals) > 0 {
		lines = append(lines, "", "❗ <b>Key signals:</b>")
		for _, s := range signals {
			lines = append(lines, "• "+html.EscapeString(s))
		}
	}

	lines = append(lines, "", "📝 <b>Explanation:</b>", html.EscapeString(r.Summary))

	return strings.Join(lines, "\n")
}

// Snippet trims text and cuts it to limit runes, appending an ellipsis when
// anything was dropped.
func Snippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func visibleSignals(signals []string) []string {
	out := make([]string, 0, MaxSignals)
	for _, s := range signals {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
		if len(out) == MaxSignals {
			break
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
