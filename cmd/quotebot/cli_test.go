package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("DATABASE_FILE", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "storage:\n  path: " + filepath.Join(dir, "quotes.db") + "\n  capacity: 2\nlogging:\n  level: ERROR\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	quoteAuthor, quoteCategory = "", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCategoriesSync(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "categories", "sync", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "wisdom\t0")
	assert.Contains(t, out, "motivation\t0")
}

func TestQuotesAddListRandom(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "quotes", "add", "--config", cfg, "--author", "Seneca", "--category", "Wisdom", "Luck", "is", "preparation")
	require.NoError(t, err)
	assert.Contains(t, out, "saved to wisdom")

	_, err = run(t, "quotes", "add", "--config", cfg, "Luck is preparation")
	assert.Error(t, err, "duplicate text is rejected")

	out, err = run(t, "quotes", "list", "--config", cfg, "--category", "wisdom")
	require.NoError(t, err)
	assert.Equal(t, `[wisdom] "Luck is preparation" by Seneca`, strings.TrimSpace(out))

	out, err = run(t, "quotes", "random", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Seneca")
}

func TestQuotesAddEvictsOldest(t *testing.T) {
	cfg := writeConfig(t)
	for _, text := range []string{"a", "b", "c"} {
		_, err := run(t, "quotes", "add", "--config", cfg, "--category", "life", text)
		require.NoError(t, err)
	}
	out, err := run(t, "quotes", "list", "--config", cfg, "--category", "life")
	require.NoError(t, err)
	assert.NotContains(t, out, `"a"`)
	assert.Contains(t, out, `"b"`)
	assert.Contains(t, out, `"c"`)
}

func TestQuotesRandomEmpty(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, "quotes", "random", "--config", cfg)
	assert.ErrorContains(t, err, "no quotes stored")
}

func TestCategoriesSyncFromEnvOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_FILE", filepath.Join(dir, "env.db"))
	t.Setenv("QUOTEBOT_LOG_LEVEL", "ERROR")

	out, err := run(t, "categories", "sync", "--config", filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "wisdom\t0")
	assert.FileExists(t, filepath.Join(dir, "env.db"))
}
