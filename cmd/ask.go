package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sourcedesk/sourcedesk/internal/app"
	"github.com/sourcedesk/sourcedesk/internal/guardrail"
)

var flagAskPlain bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the ingested corpus",
	Long: `Runs a single question through the full answer pipeline: retrieval,
generation, and guardrail checks. The answer is rendered as markdown with
its sources listed below it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&flagAskPlain, "plain", false,
		"print the raw answer without terminal styling")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	answer, err := a.Engine.Answer(ctx, guardrail.Query{
		Text:      strings.Join(args, " "),
		SessionID: "cli-" + uuid.NewString(),
	})
	if err != nil {
		return err
	}

	cmd.Print(renderAnswer(answer, flagAskPlain))
	return nil
}

// renderAnswer formats the answer and its source list as markdown and styles
// it for the terminal. Falls back to plain text if the renderer cannot be
// created.
func renderAnswer(a *guardrail.Answer, plain bool) string {
	var b strings.Builder
	b.WriteString(a.Response)
	b.WriteString("\n")

	if len(a.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, s := range a.Sources {
			fmt.Fprintf(&b, "%d. **%s**", s.Index, s.DocumentTitle)
			if s.SectionTitle != "" {
				fmt.Fprintf(&b, " - %s", s.SectionTitle)
			}
			if s.PageNumber > 0 {
				fmt.Fprintf(&b, " (p. %d)", s.PageNumber)
			}
			fmt.Fprintf(&b, " [similarity %.2f]\n", s.Similarity)
		}
	}
	if a.Blocked {
		fmt.Fprintf(&b, "\n*Answer withheld: %s*\n", a.Reason)
	}

	markdown := b.String()
	if plain {
		return markdown
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	styled, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return styled
}
