// Package extract turns raw uploaded file bytes into plain text according to
// the document's declared kind.
//
// Plain-text kinds (txt, md) pass through unchanged. Binary kinds (pdf, epub)
// are delegated to go-fitz, HTML to go-readability; parsing correctness of
// those formats is the library's concern, not this package's. Extraction
// either yields non-trivial text or fails with a sentinel error the caller
// can classify.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	readability "github.com/go-shiori/go-readability"
)

var (
	// ErrUnsupportedKind indicates the declared file kind has no extractor.
	ErrUnsupportedKind = errors.New("unsupported file kind")

	// ErrInvalidEncoding indicates a plain-text file is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid text encoding")

	// ErrTextTooShort indicates extraction produced empty or trivial output,
	// usually a corrupt or blank file.
	ErrTextTooShort = errors.New("extracted text too short")
)

// Document kinds accepted by Text.
const (
	KindText     = "txt"
	KindMarkdown = "md"
	KindPDF      = "pdf"
	KindEPUB     = "epub"
	KindHTML     = "html"
)

// KindFromExtension maps a file extension (with or without leading dot) to a
// document kind. Returns false for unsupported extensions.
func KindFromExtension(ext string) (string, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "txt", "text":
		return KindText, true
	case "md", "markdown":
		return KindMarkdown, true
	case "pdf":
		return KindPDF, true
	case "epub":
		return KindEPUB, true
	case "html", "htm":
		return KindHTML, true
	default:
		return "", false
	}
}

// Text extracts plain text from raw file bytes. minLength rejects results
// shorter than the given byte count as ErrTextTooShort, guarding against
// corrupt or empty files silently "succeeding".
func Text(kind string, raw []byte, minLength int) (string, error) {
	var (
		text string
		err  error
	)

	switch kind {
	case KindText, KindMarkdown:
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: %s content is not valid UTF-8", ErrInvalidEncoding, kind)
		}
		text = string(raw)
	case KindPDF, KindEPUB:
		text, err = fitzText(raw)
		if err != nil {
			return "", err
		}
	case KindHTML:
		text, err = htmlText(raw)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	if len(strings.TrimSpace(text)) < minLength {
		return "", fmt.Errorf("%w: got %d significant bytes, need %d",
			ErrTextTooShort, len(strings.TrimSpace(text)), minLength)
	}

	return text, nil
}

// fitzText extracts page texts from a PDF/EPUB and joins them with blank
// lines, which the chunker treats as paragraph boundaries.
func fitzText(raw []byte) (string, error) {
	doc, err := fitz.NewFromMemory(raw)
	if err != nil {
		return "", fmt.Errorf("opening document: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			// A single unreadable page does not fail the document
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}

// htmlText extracts the readable article text from an HTML page, stripping
// navigation, scripts, and other boilerplate. The page URL is unknown by the
// time raw bytes reach extraction, so relative links are resolved against a
// placeholder host; only the text content is kept.
func htmlText(raw []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(raw),
		&url.URL{Scheme: "https", Host: "localhost"})
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	return article.TextContent, nil
}
