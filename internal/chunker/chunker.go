// Package chunker splits extracted document text into overlapping,
// metadata-tagged segments for embedding and retrieval.
//
// Split is deterministic and side-effect free: identical input always
// produces identical chunks, and no external service is consulted. This
// allows the ingestion pipeline and its tests to exercise chunking without
// mocking anything.
//
// Sizes and offsets are byte counts. For the plain-text corpora this system
// ingests they match character counts; multi-byte runes may land a boundary
// inside a rune, which is acceptable for retrieval purposes.
package chunker

import (
	"strings"
	"unicode"
)

const (
	// DefaultMaxChars is the default maximum chunk size.
	DefaultMaxChars = 2000

	// DefaultOverlapChars is the default overlap copied from the tail of the
	// previous chunk into the next one.
	DefaultOverlapChars = 200

	// charsPerPage estimates page numbers from the running character offset.
	// This is a best-effort display hint, not a guarantee of accuracy.
	charsPerPage = 3000

	// maxSectionTitleLen bounds the section-header heuristic: only short
	// paragraphs can be headers.
	maxSectionTitleLen = 100

	// paragraphSep is the blank-line boundary paragraphs are split on.
	paragraphSep = "\n\n"
)

// Options configures Split.
type Options struct {
	// MaxChars is the maximum chunk size. Zero selects DefaultMaxChars.
	MaxChars int

	// OverlapChars is the overlap between consecutive chunks. Zero is valid
	// (no overlap); negative selects DefaultOverlapChars.
	OverlapChars int
}

func (o Options) withDefaults() Options {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.OverlapChars < 0 {
		o.OverlapChars = DefaultOverlapChars
	}
	if o.OverlapChars >= o.MaxChars {
		o.OverlapChars = o.MaxChars / 10
	}
	return o
}

// Chunk is one bounded slice of document text.
type Chunk struct {
	// SeqIndex is the zero-based position of the chunk within the document.
	SeqIndex int

	// Content is the chunk text, including the overlap region copied from
	// the previous chunk (empty for the first chunk).
	Content string

	// SectionTitle is the most recent heuristically detected section header,
	// or empty if none was seen yet. Best-effort display hint.
	SectionTitle string

	// PageNumber estimates which page the chunk starts on, derived from the
	// character offset. Best-effort display hint.
	PageNumber int

	// StartOffset and EndOffset delimit the non-overlap region of the chunk
	// in the original text. Concatenating these regions in order
	// reconstructs the input exactly.
	StartOffset int
	EndOffset   int

	// TokenEstimate approximates the chunk's token count (len/4).
	TokenEstimate int
}

// Split divides text into ordered chunks covering the entire input with no
// gaps. Paragraphs (blank-line separated) are accumulated into a buffer;
// when the next paragraph would overflow MaxChars the buffer is emitted and
// the next one is seeded with the tail OverlapChars of the emitted chunk.
// A single paragraph larger than MaxChars is hard-split at MaxChars
// boundaries with the same overlap seeding.
//
// Empty input produces zero chunks; callers treat that as an extraction
// failure upstream.
func Split(text string, opts Options) []Chunk {
	if text == "" {
		return nil
	}
	opts = opts.withDefaults()

	s := &splitter{opts: opts}

	offset := 0
	for i, para := range strings.Split(text, paragraphSep) {
		if i > 0 {
			// The separator belongs to the original text; re-attach it to
			// the paragraph so no characters are lost.
			para = paragraphSep + para
		}
		if title, ok := sectionTitle(para); ok {
			s.section = title
		}
		s.add(para, offset)
		offset += len(para)
	}
	s.flush()

	return s.chunks
}

// splitter accumulates paragraphs into chunks.
type splitter struct {
	opts    Options
	chunks  []Chunk
	section string

	buf      strings.Builder
	bufStart int // offset of the buffer's non-overlap region
	overlap  int // length of the overlap prefix currently in buf
}

// add appends one paragraph (with its leading separator) starting at the
// given offset in the original text.
func (s *splitter) add(para string, offset int) {
	if s.buf.Len() == 0 {
		s.bufStart = offset
		s.overlap = 0
	}

	if s.buf.Len() > s.overlap && s.buf.Len()+len(para) > s.opts.MaxChars {
		s.emit(offset)
	}

	// A paragraph that alone exceeds MaxChars is hard-split at MaxChars
	// boundaries; the final window stays in the buffer for accumulation.
	for s.buf.Len()+len(para) > s.opts.MaxChars {
		space := s.opts.MaxChars - s.buf.Len()
		s.buf.WriteString(para[:space])
		para = para[space:]
		offset += space
		s.emit(offset)
	}

	s.buf.WriteString(para)
}

// emit closes the current buffer as a chunk and seeds the next buffer with
// the overlap tail. nextStart is the original-text offset where the next
// chunk's non-overlap region begins.
func (s *splitter) emit(nextStart int) {
	content := s.buf.String()
	s.chunks = append(s.chunks, s.makeChunk(content))

	s.buf.Reset()
	tail := content
	if len(tail) > s.opts.OverlapChars {
		tail = tail[len(tail)-s.opts.OverlapChars:]
	}
	s.buf.WriteString(tail)
	s.overlap = len(tail)
	s.bufStart = nextStart
}

// flush emits any remaining buffered text. A buffer holding only the overlap
// seed is discarded: its content already belongs to the previous chunk.
func (s *splitter) flush() {
	if s.buf.Len() > s.overlap {
		s.chunks = append(s.chunks, s.makeChunk(s.buf.String()))
	}
	s.buf.Reset()
}

func (s *splitter) makeChunk(content string) Chunk {
	return Chunk{
		SeqIndex:      len(s.chunks),
		Content:       content,
		SectionTitle:  s.section,
		PageNumber:    s.bufStart/charsPerPage + 1,
		StartOffset:   s.bufStart,
		EndOffset:     s.bufStart + len(content) - s.overlap,
		TokenEstimate: (len(content) + 3) / 4,
	}
}

// sectionTitle reports whether a paragraph looks like a section header:
// short, contains at least one letter, and no lowercase letters (all-caps
// or punctuation-only headings). Heuristic only, no semantic parsing.
func sectionTitle(para string) (string, bool) {
	trimmed := strings.TrimSpace(para)
	if trimmed == "" || len(trimmed) >= maxSectionTitleLen {
		return "", false
	}
	if strings.ContainsRune(trimmed, '\n') {
		return "", false
	}

	hasLetter := false
	for _, r := range trimmed {
		if unicode.IsLower(r) {
			return "", false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if !hasLetter {
		return "", false
	}
	return trimmed, true
}
