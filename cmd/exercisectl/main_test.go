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
	dataDir, err := filepath.Abs(filepath.Join("..", "..", "data"))
	require.NoError(t, err)

	dir := t.TempDir()
	yaml := `
log:
  level: error
catalog:
  source: file
  root: ` + dataDir + `
embedding:
  provider: hashing
  dimensions: 128
index:
  backend: memory
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIndexCommand(t *testing.T) {
	dir := writeConfig(t)

	out, err := run(t, "index", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog:     43 exercises")
	assert.Contains(t, out, "Index:       43 entries")
	assert.Contains(t, out, "Model:       hashing-128")

	out, err = run(t, "index", "--force", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Index:       43 entries")
}

func TestSearchCommand(t *testing.T) {
	dir := writeConfig(t)

	out, err := run(t, "search", "杠铃", "深蹲", "--top", "3", "--config", dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	for _, line := range lines {
		assert.Contains(t, line, "distance=")
	}

	out, err = run(t, "search", "训练", "--equipment", "kettlebell", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "壶铃摆荡")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)

	_, err = run(t, "search", "--config", dir)
	assert.Error(t, err, "a query is required")
}

func TestRecommendCommand(t *testing.T) {
	dir := writeConfig(t)

	out, err := run(t, "recommend", "--goal", "增肌", "--equipment", "dumbbell", "--n", "4", "--config", dir)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, " | dumbbell | "))

	_, err = run(t, "recommend", "--config", dir)
	assert.Error(t, err, "--goal is required")
}
