package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourcedesk/sourcedesk/internal/app"
	"github.com/sourcedesk/sourcedesk/internal/document"
	"github.com/sourcedesk/sourcedesk/internal/extract"
)

var flagIngestTitle string

// fetchTimeout bounds URL downloads during ingestion.
const fetchTimeout = 30 * time.Second

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-url>...",
	Short: "Register local files or web pages and process them into the corpus",
	Long: `Registers each source, stores its raw bytes, and runs the ingestion
pipeline: text extraction, chunking, embedding, and indexing.

Arguments starting with http:// or https:// are fetched and ingested as
web pages; the readable article text is extracted and boilerplate is
dropped. Sources whose content is already in the corpus are skipped.
Supported file formats: txt, md, pdf, epub, html.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestTitle, "title", "",
		"document title (single source only; defaults to the file name or URL)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if flagIngestTitle != "" && len(args) > 1 {
		return errors.New("--title requires exactly one source")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range args {
		if err := ingestFile(cmd, a, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func ingestFile(cmd *cobra.Command, a *app.App, path string) error {
	var (
		kind  string
		raw   []byte
		title string
		err   error
	)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		kind = extract.KindHTML
		raw, err = fetchPage(cmd.Context(), path)
		if err != nil {
			return err
		}
		title = path
	} else {
		var ok bool
		kind, ok = extract.KindFromExtension(filepath.Ext(path))
		if !ok {
			return fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
		}
		raw, err = os.ReadFile(path)
		if err != nil {
			return err
		}
		title = filepath.Base(path)
	}
	if flagIngestTitle != "" {
		title = flagIngestTitle
	}

	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	ctx := cmd.Context()
	doc, err := a.Documents.Create(ctx, title, hash, kind, int64(len(raw)))
	if errors.Is(err, document.ErrDuplicateContent) {
		cmd.Printf("skipped %s: content already ingested\n", path)
		return nil
	}
	if err != nil {
		return err
	}

	if err := a.Blobs.Put(ctx, doc.ID.String(), raw); err != nil {
		return fmt.Errorf("storing raw file: %w", err)
	}

	result, err := a.Pipeline.Run(ctx, doc.ID)
	if err != nil {
		return err
	}
	cmd.Printf("ingested %s: %d chunks (%s)\n", path, result.Chunks, doc.ID)
	return nil
}

func fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching page: status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}
