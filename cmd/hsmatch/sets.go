package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hsmatch/pkg/rule"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

var setsCmd = &cobra.Command{
	Use:   "sets",
	Short: "Inspect pattern sets",
}

var setsListCmd = &cobra.Command{
	Use:   "list [set.yaml | builtin:NAME]",
	Short: "List builtin sets, or the patterns of one set",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetsList,
}

func init() {
	setsCmd.AddCommand(setsListCmd)
}

func runSetsList(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		names, err := rule.NewLoader().BuiltinNames()
		if err != nil {
			return fmt.Errorf("listing builtin sets: %w", err)
		}
		if useJSON(cmd) {
			return writeJSON(cmd, names)
		}
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", builtinPrefix, name)
		}
		return nil
	}

	set, err := loadSet(args[0], "", "")
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}
	if useJSON(cmd) {
		return writeJSON(cmd, set)
	}
	return outputSetTable(cmd, set)
}

func outputSetTable(cmd *cobra.Command, set *rule.Set) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if set.Expression != nil {
		fmt.Fprintf(w, "Expression\tFlags\n")
		fmt.Fprintf(w, "%s\t0x%x\n", *set.Expression, types.BitsOf(set.Flags))
		return nil
	}

	fmt.Fprintf(w, "ID\tName\tFlags\tExpression\n")
	fmt.Fprintf(w, "--\t----\t-----\t----------\n")
	for _, p := range set.Patterns {
		var id uint32
		if p.ID != nil {
			id = *p.ID
		}
		fmt.Fprintf(w, "%d\t%s\t0x%x\t%s\n", id, p.Name, types.BitsOf(p.Flags), p.Expression)
	}
	return nil
}
