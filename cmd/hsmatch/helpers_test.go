package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// withConfig installs a default config modified by fn for the duration of
// the test. The catalog defaults to a file in a temp dir.
func withConfig(t *testing.T, fn func(c *Config)) {
	t.Helper()
	prev := cfg
	c := DefaultConfig()
	c.Catalog = filepath.Join(t.TempDir(), "catalog.db")
	if fn != nil {
		fn(c)
	}
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &buf
}
