package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestText_Passthrough(t *testing.T) {
	t.Parallel()

	content := "How to reset the device.\n\nHold the power button for ten seconds."
	got, err := Text(KindText, []byte(content), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != content {
		t.Errorf("text passthrough modified content")
	}
}

func TestText_Markdown(t *testing.T) {
	t.Parallel()

	content := "# Reset\n\nHold the power button for ten seconds to reset."
	got, err := Text(KindMarkdown, []byte(content), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != content {
		t.Errorf("markdown passthrough modified content")
	}
}

func TestText_InvalidUTF8(t *testing.T) {
	t.Parallel()

	_, err := Text(KindText, []byte{0xff, 0xfe, 0xfd}, 0)
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestText_TooShort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\n\t  "},
		{"below threshold", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Text(KindText, []byte(tt.raw), 50)
			if !errors.Is(err, ErrTextTooShort) {
				t.Errorf("expected ErrTextTooShort, got %v", err)
			}
		})
	}
}

func TestText_UnsupportedKind(t *testing.T) {
	t.Parallel()

	_, err := Text("docx", []byte(strings.Repeat("x", 100)), 10)
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestText_HTML(t *testing.T) {
	t.Parallel()

	page := `<!DOCTYPE html>
<html><head><title>Device Manual</title><script>var x = 1;</script></head>
<body>
<nav><a href="/home">Home</a></nav>
<article>
<h1>Resetting the device</h1>
<p>Hold the power button for ten seconds until the status light blinks twice.</p>
<p>If the light does not blink, unplug the device and wait one minute before
trying again. Contact support if the device still does not respond.</p>
</article>
</body></html>`

	got, err := Text(KindHTML, []byte(page), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Hold the power button for ten seconds") {
		t.Errorf("article text missing from extraction: %q", got)
	}
	if strings.Contains(got, "var x = 1") {
		t.Errorf("script content leaked into extracted text")
	}
}

func TestKindFromExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext    string
		want   string
		wantOK bool
	}{
		{".txt", KindText, true},
		{"txt", KindText, true},
		{".TXT", KindText, true},
		{".md", KindMarkdown, true},
		{".markdown", KindMarkdown, true},
		{".pdf", KindPDF, true},
		{".epub", KindEPUB, true},
		{".html", KindHTML, true},
		{".htm", KindHTML, true},
		{".docx", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := KindFromExtension(tt.ext)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("KindFromExtension(%q) = (%q, %v), want (%q, %v)",
				tt.ext, got, ok, tt.want, tt.wantOK)
		}
	}
}
