package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
)

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Show the host platform as seen by the engine",
	Args:  cobra.NoArgs,
	RunE:  runPlatform,
}

func runPlatform(cmd *cobra.Command, args []string) error {
	p, err := matcher.CurrentPlatform()
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return writeJSON(cmd, p)
	}
	features := p.FeatureNames()
	if features == "" {
		features = "none"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Tune:         %d\n", p.Tune)
	fmt.Fprintf(out, "CPU features: %s (0x%x)\n", features, p.CPUFeatures)
	return nil
}
