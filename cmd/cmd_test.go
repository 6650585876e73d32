package cmd

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/sourcedesk/sourcedesk/internal/guardrail"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), "sourcedesk") {
		t.Errorf("version output missing binary name: %q", buf.String())
	}
}

func TestRenderAnswerPlain(t *testing.T) {
	a := &guardrail.Answer{
		Response:   "Hold the power button for ten seconds [Source 1].",
		Confidence: 0.91,
		Sources: []guardrail.Source{
			{Index: 1, DocumentTitle: "Device Manual", SectionTitle: "Reset", PageNumber: 12, Similarity: 0.83},
		},
	}

	out := renderAnswer(a, true)
	for _, want := range []string{
		"Hold the power button",
		"## Sources",
		"Device Manual",
		"(p. 12)",
		"0.83",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered answer missing %q:\n%s", want, out)
		}
	}
}

func TestRenderAnswerBlocked(t *testing.T) {
	a := &guardrail.Answer{
		Response: "I don't have enough information in my sources to answer that question confidently.",
		Blocked:  true,
		Reason:   "insufficient_sources",
	}

	out := renderAnswer(a, true)
	if !strings.Contains(out, "insufficient_sources") {
		t.Errorf("blocked answer does not state the reason:\n%s", out)
	}
	if strings.Contains(out, "## Sources") {
		t.Errorf("blocked answer without sources should not list sources:\n%s", out)
	}
}

func TestIngestRequiresArgs(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"ingest"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected an error when no files are given")
	}
}
