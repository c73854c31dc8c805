package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/rule"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

var (
	scanInclude string
	scanExclude string
)

var scanCmd = &cobra.Command{
	Use:   "scan <database> [file...]",
	Short: "Scan files with a database",
	Long: `Scan files (or stdin when no file or "-" is given) and report every match.

<database> is a pattern set (set.yaml or builtin:NAME, compiled on the fly),
a catalog entry (catalog:NAME) or a file written by "compile --output".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanInclude, "include", "", "Include patterns whose name matches regex (comma-separated)")
	scanCmd.Flags().StringVar(&scanExclude, "exclude", "", "Exclude patterns whose name matches regex (comma-separated)")
	scanCmd.Flags().Int("workers", 0, "Files scanned concurrently (0 = GOMAXPROCS)")
	scanCmd.Flags().Int("max-matches", 0, "Stop each file after this many matches (0 = unlimited)")
	scanCmd.Flags().Int("block-size", matcher.DefaultBlockSize, "Block size used to split input for vectored databases")
	scanCmd.Flags().Int("context-lines", 0, "Lines of context before/after matches in human output")
}

// scanMatch is one reported match in JSON output.
type scanMatch struct {
	ID    uint32 `json:"id"`
	Label string `json:"label"`
	From  uint64 `json:"from"`
	To    uint64 `json:"to"`
	Text  string `json:"text"`
}

// scanResult is the JSON form of the matches in one input.
type scanResult struct {
	Source  string      `json:"source"`
	Matches []scanMatch `json:"matches"`
}

func runScan(cmd *cobra.Command, args []string) error {
	db, set, err := openDatabase(args[0], scanInclude, scanExclude)
	if err != nil {
		return err
	}

	m, err := matcher.New(db,
		matcher.WithOwnedDatabase(),
		matcher.WithWorkers(cfg.Workers),
		matcher.WithMaxMatches(cfg.MaxMatches),
		matcher.WithBlockSize(cfg.BlockSize),
	)
	if err != nil {
		db.Close()
		return err
	}
	defer m.Close()

	sources := args[1:]
	if len(sources) == 0 {
		sources = []string{"-"}
	}
	inputs := make([][]byte, len(sources))
	for i, src := range sources {
		if inputs[i], err = readInput(cmd, src); err != nil {
			return err
		}
	}

	all, err := m.MatchAll(inputs)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	results := make([]scanResult, len(sources))
	total := 0
	for i, records := range all {
		results[i] = scanResult{Source: sources[i], Matches: make([]scanMatch, len(records))}
		for j, rec := range records {
			results[i].Matches[j] = scanMatch{
				ID:    rec.ID,
				Label: label(set, rec.ID),
				From:  rec.From,
				To:    rec.To,
				Text:  string(span(inputs[i], rec)),
			}
		}
		total += len(records)
	}

	if useJSON(cmd) {
		return writeJSON(cmd, results)
	}
	return outputScanHuman(cmd, results, inputs, total)
}

func readInput(cmd *cobra.Command, src string) ([]byte, error) {
	if src == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src, err)
	}
	return data, nil
}

func label(set *rule.Set, id uint32) string {
	if set == nil {
		return fmt.Sprintf("#%d", id)
	}
	return set.Label(id)
}

// span returns the matched bytes, or nil when the match falls outside
// content.
func span(content []byte, rec types.MatchRecord) []byte {
	if rec.From > rec.To || rec.To > uint64(len(content)) {
		return nil
	}
	return content[rec.From:rec.To]
}

func outputScanHuman(cmd *cobra.Command, results []scanResult, inputs [][]byte, total int) error {
	out := cmd.OutOrStdout()
	st := stylesFor(cmd)

	for i, r := range results {
		if len(r.Matches) == 0 {
			continue
		}
		st.heading.Fprintf(out, "%s\n", r.Source)
		for _, m := range r.Matches {
			fmt.Fprintf(out, "  %s %s %s\n",
				st.label.Sprint(m.Label),
				st.offset.Sprintf("[%d,%d)", m.From, m.To),
				st.match.Sprintf("%q", m.Text))

			if cfg.Context > 0 {
				ctx := matcher.ExtractContext(inputs[i], types.MatchRecord{ID: m.ID, From: m.From, To: m.To}, cfg.Context)
				for _, line := range contextLines(inputs[i], m.To, ctx) {
					st.dim.Fprintf(out, "    | %s\n", line)
				}
			}
		}
	}

	fmt.Fprintf(out, "\nScan complete: %d matches in %d inputs\n", total, len(results))
	return nil
}

// contextLines renders a match with its surrounding lines. end is the
// match end offset in content.
func contextLines(content []byte, end uint64, ctx matcher.Context) []string {
	text := string(ctx.Before) + string(ctx.Match)
	if len(ctx.After) > 0 && end < uint64(len(content)) && content[end] == '\n' {
		text += "\n"
	}
	text += string(ctx.After)
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}
