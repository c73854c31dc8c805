package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/rule"
	"github.com/praetorian-inc/hsmatch/pkg/store"
)

var (
	compileInclude string
	compileExclude string
	compileOutput  string
	compileSave    string
	compileVerify  bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <set.yaml | builtin:NAME>",
	Short: "Compile a pattern set into a database",
	Long: `Compile a pattern set and report the resulting database. The database can
be written to a file with --output or stored in the catalog with --save.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileInclude, "include", "", "Include patterns whose name matches regex (comma-separated)")
	compileCmd.Flags().StringVar(&compileExclude, "exclude", "", "Exclude patterns whose name matches regex (comma-separated)")
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "Write the serialized database to this file")
	compileCmd.Flags().StringVar(&compileSave, "save", "", "Store the database in the catalog under this name")
	compileCmd.Flags().BoolVar(&compileVerify, "verify", false, "Check every pattern against its examples")
}

// compileSummary is the JSON form of a compile result.
type compileSummary struct {
	Set      string                `json:"set"`
	Mode     string                `json:"mode"`
	Patterns int                   `json:"patterns"`
	Size     int                   `json:"size"`
	Info     string                `json:"info"`
	Output   string                `json:"output,omitempty"`
	Saved    string                `json:"saved,omitempty"`
	Failures []rule.ExampleFailure `json:"example_failures,omitempty"`
}

func runCompile(cmd *cobra.Command, args []string) error {
	set, err := loadSet(args[0], compileInclude, compileExclude)
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}

	db, err := matcher.Compile(set.Request())
	if err != nil {
		return err
	}
	defer db.Close()

	summary := compileSummary{Set: set.Name, Mode: db.Mode().String(), Patterns: db.Patterns()}
	if summary.Info, err = db.Info(); err != nil {
		return err
	}
	if summary.Size, err = db.Size(); err != nil {
		return err
	}

	if compileVerify {
		if summary.Failures, err = rule.VerifyExamples(set); err != nil {
			return fmt.Errorf("verifying examples: %w", err)
		}
	}

	if compileOutput != "" {
		blob, err := db.Serialize()
		if err != nil {
			return err
		}
		if err := os.WriteFile(compileOutput, blob, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", compileOutput, err)
		}
		summary.Output = compileOutput
	}

	if compileSave != "" {
		if err := saveToCatalog(compileSave, db); err != nil {
			return err
		}
		summary.Saved = compileSave
	}

	if err := printCompileSummary(cmd, &summary); err != nil {
		return err
	}
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d example checks failed", len(summary.Failures))
	}
	return nil
}

func saveToCatalog(name string, db *matcher.Database) error {
	s, err := openCatalog()
	if err != nil {
		return err
	}
	defer s.Close()

	entry, err := store.EntryFor(name, db)
	if err != nil {
		return err
	}
	if err := s.Put(entry); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	return nil
}

func printCompileSummary(cmd *cobra.Command, summary *compileSummary) error {
	if useJSON(cmd) {
		return writeJSON(cmd, summary)
	}

	out := cmd.OutOrStdout()
	st := stylesFor(cmd)
	name := summary.Set
	if name == "" {
		name = "(unnamed set)"
	}
	st.heading.Fprintf(out, "Compiled %s\n", name)
	fmt.Fprintf(out, "  Patterns: %d\n", summary.Patterns)
	fmt.Fprintf(out, "  Mode:     %s\n", summary.Mode)
	fmt.Fprintf(out, "  Size:     %d bytes\n", summary.Size)
	fmt.Fprintf(out, "  Info:     %s\n", summary.Info)
	if summary.Output != "" {
		fmt.Fprintf(out, "  Written:  %s\n", summary.Output)
	}
	if summary.Saved != "" {
		fmt.Fprintf(out, "  Saved as: %s (%s)\n", summary.Saved, cfg.Catalog)
	}
	for _, f := range summary.Failures {
		st.match.Fprintf(out, "  FAIL %s\n", f)
	}
	return nil
}
