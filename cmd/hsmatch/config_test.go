package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("format", "auto", "")
	cmd.Flags().String("catalog", "hsmatch.db", "")
	cmd.Flags().Int("max-matches", 0, "")
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := loadConfig(configCommand(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: human\nmax_matches: 5\nworkers: 3\ncatalog: from-file.db\n"), 0o644))

	t.Setenv("HSMATCH_CATALOG", "from-env.db")

	cmd := configCommand()
	require.NoError(t, cmd.Flags().Set("max-matches", "9"))

	c, err := loadConfig(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, "human", c.Format)        // file
	assert.Equal(t, 3, c.Workers)             // file, no flag
	assert.Equal(t, "from-env.db", c.Catalog) // env beats file
	assert.Equal(t, 9, c.MaxMatches)          // flag beats file
}

func TestLoadConfig_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hsmatch.yaml"), []byte("context_lines: 2\n"), 0o644))
	t.Chdir(dir)

	c, err := loadConfig(configCommand(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Context)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := loadConfig(configCommand(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cmd := configCommand()
	require.NoError(t, cmd.Flags().Set("format", "xml"))
	_, err = loadConfig(cmd, "")
	assert.ErrorContains(t, err, "unknown output format")
}
