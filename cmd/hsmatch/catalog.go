package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hsmatch/pkg/store"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage stored databases",
	Long:  "Commands for listing, deleting and copying databases saved with \"compile --save\"",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued databases",
	Args:  cobra.NoArgs,
	RunE:  runCatalogList,
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a catalogued database",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogDelete,
}

var catalogCopyCmd = &cobra.Command{
	Use:   "copy <destination>",
	Short: "Copy every entry into another catalog",
	Long:  "Copy every entry of the configured catalog into <destination> (a SQLite path or postgres:// URL)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogCopy,
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogDeleteCmd)
	catalogCmd.AddCommand(catalogCopyCmd)
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	s, err := openCatalog()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List()
	if err != nil {
		return fmt.Errorf("listing catalog: %w", err)
	}
	if entries == nil {
		entries = []*store.Entry{}
	}

	if useJSON(cmd) {
		return writeJSON(cmd, entries)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Name\tBackend\tMode\tPatterns\tSize\tCreated\n")
	fmt.Fprintf(w, "----\t-------\t----\t--------\t----\t-------\n")
	for _, e := range entries {
		patterns := "-"
		if e.Patterns > 0 {
			patterns = fmt.Sprint(e.Patterns)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Name, e.Backend, e.Mode, patterns, e.Size, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runCatalogDelete(cmd *cobra.Command, args []string) error {
	s, err := openCatalog()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(args[0]); err != nil {
		return fmt.Errorf("deleting %s: %w", args[0], err)
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %s\n", args[0])
	}
	return nil
}

func runCatalogCopy(cmd *cobra.Command, args []string) error {
	src, err := openCatalog()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := store.New(store.Config{Path: args[0]})
	if err != nil {
		return fmt.Errorf("opening destination: %w", err)
	}
	defer dst.Close()

	n, err := store.Copy(dst, src)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Copied %d entries to %s\n", n, args[0])
	}
	return nil
}
