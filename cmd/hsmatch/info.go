package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <database>",
	Short: "Describe a database",
	Long: `Print the engine's description of a database. <database> is resolved the
same way as for "scan".`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

type infoOutput struct {
	Mode     string `json:"mode"`
	Patterns int    `json:"patterns,omitempty"`
	Size     int    `json:"size"`
	Info     string `json:"info"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	db, _, err := openDatabase(args[0], "", "")
	if err != nil {
		return err
	}
	defer db.Close()

	out := infoOutput{Mode: db.Mode().String()}
	if db.Patterns() > 0 {
		out.Patterns = db.Patterns()
	}
	if out.Info, err = db.Info(); err != nil {
		return err
	}
	if out.Size, err = db.Size(); err != nil {
		return err
	}

	if useJSON(cmd) {
		return writeJSON(cmd, out)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, out.Info)
	fmt.Fprintf(w, "Size: %d bytes\n", out.Size)
	if out.Patterns > 0 {
		fmt.Fprintf(w, "Patterns: %d\n", out.Patterns)
	}
	return nil
}
