package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

var exprInfoFlags string

var exprInfoCmd = &cobra.Command{
	Use:   "expr-info <expression>",
	Short: "Analyze a single expression",
	Long:  "Report the match widths and end-of-data behaviour of an expression without building a database",
	Args:  cobra.ExactArgs(1),
	RunE:  runExprInfo,
}

func init() {
	exprInfoCmd.Flags().StringVar(&exprInfoFlags, "flags", "", "Comma-separated flag names (caseless, dotall, multiline, ...)")
}

// parseFlagNames converts "caseless,dotall" into a flag combination.
func parseFlagNames(s string) (types.Flags, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var combo types.Combination
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		bit, ok := types.FlagByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown flag: %s", name)
		}
		combo = append(combo, bit)
	}
	return combo, nil
}

func runExprInfo(cmd *cobra.Command, args []string) error {
	flags, err := parseFlagNames(exprInfoFlags)
	if err != nil {
		return err
	}
	info, err := matcher.ExpressionInfo(args[0], flags)
	if err != nil {
		return err
	}

	if useJSON(cmd) {
		return writeJSON(cmd, info)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Min width:           %d\n", info.MinWidth)
	if info.MaxWidth == types.UnboundedWidth {
		fmt.Fprintf(out, "Max width:           unbounded\n")
	} else {
		fmt.Fprintf(out, "Max width:           %d\n", info.MaxWidth)
	}
	fmt.Fprintf(out, "Unordered matches:   %t\n", info.UnorderedMatches)
	fmt.Fprintf(out, "Matches at EOD:      %t\n", info.MatchesAtEOD)
	fmt.Fprintf(out, "Matches only at EOD: %t\n", info.MatchesOnlyAtEOD)
	return nil
}
