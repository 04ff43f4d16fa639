//go:build sqlite

package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunThenInspectWithSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pdevo.db")

	_, err := execute(t, "",
		"run",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--kind", "TitForTat=3",
		"--kind", "AlwaysExploit=3",
		"--generations", "2",
		"--run-id", "run-sqlite",
		"--log-level", "error",
	)
	require.NoError(t, err)

	out, err := execute(t, "", "runs", "--store", "sqlite", "--db-path", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-sqlite")
	assert.Contains(t, out, "completed")

	out, err = execute(t, "", "history", "--store", "sqlite", "--db-path", dbPath, "--latest")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"), "header and two generations:\n%s", out)

	out, err = execute(t, "", "population", "--store", "sqlite", "--db-path", dbPath, "--run-id", "run-sqlite", "--generation", "0", "--members")
	require.NoError(t, err)
	assert.Contains(t, out, "generation 0: AlwaysExploit=3 TitForTat=3")
	assert.Contains(t, out, "with a score of 0")

	out, err = execute(t, "", "population", "--store", "sqlite", "--db-path", dbPath, "--run-id", "run-sqlite", "--generation", "1", "--members")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	for _, line := range lines[1:4] {
		assert.NotRegexp(t, `with a score of 0$`, line, "survivors keep the score they were ranked with")
	}
}
