package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	assert := require.New(t)
	dir := t.TempDir()
	t.Setenv("ENV", "test")
	t.Setenv("KVDB_PATH", filepath.Join(dir, "searchsync.db"))
	t.Setenv("INDEX_PATH", filepath.Join(dir, "index"))

	_, err := runCommand(t, "search", "--types", "Article", "red")
	assert.Error(err, "searching before the index is built should fail")

	out, err := runCommand(t, "update-index", "--flush")
	assert.NoError(err)
	assert.Contains(out, "pending: 0, processed: 0")

	out, err = runCommand(t, "rebuild-index", "Article")
	assert.NoError(err)
	assert.Contains(out, "Article: 0 indexed")

	_, err = runCommand(t, "rebuild-index", "Nope")
	assert.Error(err)

	out, err = runCommand(t, "search", "--types", "Article", "red", "car")
	assert.NoError(err)
	assert.Contains(out, "Query((model:Article AND (text:red AND text:car)))")
	assert.Contains(out, "about 0 matches")

	_, err = runCommand(t, "search", "--types", "Article", "--sort", "nonexistent", "red")
	assert.Error(err)
}
