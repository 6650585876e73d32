package chunker

import (
	"strings"
	"testing"
)

// reconstruct joins the non-overlap regions of all chunks in order. For a
// correct splitter this recovers the original input exactly.
func reconstruct(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		size := c.EndOffset - c.StartOffset
		b.WriteString(c.Content[len(c.Content)-size:])
	}
	return b.String()
}

func TestSplit_EmptyInput(t *testing.T) {
	t.Parallel()

	if got := Split("", Options{}); got != nil {
		t.Errorf("expected nil chunks for empty input, got %d", len(got))
	}
}

func TestSplit_ShortInput_SingleChunk(t *testing.T) {
	t.Parallel()

	text := "A short document.\n\nWith two paragraphs."
	chunks := Split(text, Options{MaxChars: 2000, OverlapChars: 200})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("chunk content = %q, want full input", chunks[0].Content)
	}
	if chunks[0].SeqIndex != 0 {
		t.Errorf("seq index = %d, want 0", chunks[0].SeqIndex)
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != len(text) {
		t.Errorf("offsets = [%d, %d), want [0, %d)",
			chunks[0].StartOffset, chunks[0].EndOffset, len(text))
	}
}

func TestSplit_LongSingleParagraph(t *testing.T) {
	t.Parallel()

	// 5000-character single-paragraph input with maxChars=2000 and
	// overlapChars=200 must produce chunks of at most 2000 characters, each
	// subsequent chunk starting with the previous chunk's 200-char tail.
	text := strings.Repeat("a", 1000) + strings.Repeat("b", 1000) +
		strings.Repeat("c", 1000) + strings.Repeat("d", 1000) + strings.Repeat("e", 1000)
	chunks := Split(text, Options{MaxChars: 2000, OverlapChars: 200})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Content) > 2000 {
			t.Errorf("chunk %d length %d exceeds max 2000", i, len(c.Content))
		}
		if c.SeqIndex != i {
			t.Errorf("chunk %d has seq index %d", i, c.SeqIndex)
		}
	}

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev[len(prev)-200:]
		if !strings.HasPrefix(chunks[i].Content, tail) {
			t.Errorf("chunk %d does not start with the 200-char tail of chunk %d", i, i-1)
		}
	}

	if got := reconstruct(chunks); got != text {
		t.Errorf("reconstruction mismatch: got %d chars, want %d", len(got), len(text))
	}
}

func TestSplit_ParagraphBoundary_OverlapSeed(t *testing.T) {
	t.Parallel()

	p1 := strings.Repeat("x", 1800)
	p2 := strings.Repeat("y", 500)
	text := p1 + "\n\n" + p2
	chunks := Split(text, Options{MaxChars: 2000, OverlapChars: 200})

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != p1 {
		t.Errorf("first chunk should be exactly the first paragraph")
	}
	wantPrefix := p1[len(p1)-200:]
	if !strings.HasPrefix(chunks[1].Content, wantPrefix) {
		t.Error("second chunk does not begin with the previous chunk's tail")
	}
	if !strings.HasSuffix(chunks[1].Content, "\n\n"+p2) {
		t.Error("second chunk does not contain the paragraph that triggered the split")
	}
	if got := reconstruct(chunks); got != text {
		t.Error("reconstruction mismatch")
	}
}

func TestSplit_ReconstructionProperty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		opts Options
	}{
		{
			name: "many small paragraphs",
			text: strings.Repeat("Lorem ipsum dolor sit amet.\n\n", 400),
			opts: Options{MaxChars: 500, OverlapChars: 50},
		},
		{
			name: "mixed paragraph sizes",
			text: strings.Repeat("z", 3000) + "\n\nshort\n\n" + strings.Repeat("w", 1200),
			opts: Options{MaxChars: 1000, OverlapChars: 100},
		},
		{
			name: "blank lines at edges",
			text: "\n\nleading and trailing\n\n",
			opts: Options{MaxChars: 2000, OverlapChars: 200},
		},
		{
			name: "zero overlap",
			text: strings.Repeat("q", 4500),
			opts: Options{MaxChars: 1500, OverlapChars: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chunks := Split(tt.text, tt.opts)
			if got := reconstruct(chunks); got != tt.text {
				t.Errorf("reconstruction mismatch: got %d chars, want %d", len(got), len(tt.text))
			}
			for i := 1; i < len(chunks); i++ {
				if chunks[i].StartOffset != chunks[i-1].EndOffset {
					t.Errorf("gap between chunk %d and %d: %d != %d",
						i-1, i, chunks[i-1].EndOffset, chunks[i].StartOffset)
				}
			}
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("The quick brown fox.\n\n", 300)
	opts := Options{MaxChars: 800, OverlapChars: 80}

	a := Split(text, opts)
	b := Split(text, opts)

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_SectionTitleDetection(t *testing.T) {
	t.Parallel()

	text := "INTRODUCTION\n\n" +
		strings.Repeat("intro text. ", 100) + "\n\n" +
		"RESET PROCEDURE\n\n" +
		strings.Repeat("hold the button. ", 100)
	chunks := Split(text, Options{MaxChars: 700, OverlapChars: 50})

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].SectionTitle != "INTRODUCTION" {
		t.Errorf("first chunk section = %q, want INTRODUCTION", chunks[0].SectionTitle)
	}
	last := chunks[len(chunks)-1]
	if last.SectionTitle != "RESET PROCEDURE" {
		t.Errorf("last chunk section = %q, want RESET PROCEDURE", last.SectionTitle)
	}
}

func TestSectionTitle_Heuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		para string
		want bool
	}{
		{"CHAPTER ONE", true},
		{"1. GETTING STARTED", true},
		{"A normal sentence here.", false},
		{"", false},
		{"   ", false},
		{"12345", false}, // no letters
		{strings.Repeat("A", 150), false}, // too long
		{"TWO\nLINES", false},
	}

	for _, tt := range tests {
		_, got := sectionTitle(tt.para)
		if got != tt.want {
			t.Errorf("sectionTitle(%q) = %v, want %v", tt.para, got, tt.want)
		}
	}
}

func TestSplit_PageNumberEstimate(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("p", 7000)
	chunks := Split(text, Options{MaxChars: 2000, OverlapChars: 0})

	if chunks[0].PageNumber != 1 {
		t.Errorf("first chunk page = %d, want 1", chunks[0].PageNumber)
	}
	last := chunks[len(chunks)-1]
	if last.PageNumber != last.StartOffset/3000+1 {
		t.Errorf("page estimate = %d, want offset/3000+1", last.PageNumber)
	}
}

func TestSplit_TokenEstimate(t *testing.T) {
	t.Parallel()

	chunks := Split(strings.Repeat("t", 400), Options{MaxChars: 2000, OverlapChars: 200})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].TokenEstimate != 100 {
		t.Errorf("token estimate = %d, want 100", chunks[0].TokenEstimate)
	}
}
