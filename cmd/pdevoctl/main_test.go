package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdevo/internal/strategy"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PDEVO_STORE", "")
	t.Setenv("PDEVO_SEED", "")
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func TestParseKindCounts(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    map[string]int
		wantErr bool
	}{
		{"single", []string{"TitForTat=3"}, map[string]int{"TitForTat": 3}, false},
		{"repeated names accumulate", []string{"Grudger=1", "Grudger=2"}, map[string]int{"Grudger": 3}, false},
		{"spaces trimmed", []string{" AlwaysExploit = 4 "}, map[string]int{"AlwaysExploit": 4}, false},
		{"zero allowed", []string{"AlwaysComply=0"}, map[string]int{"AlwaysComply": 0}, false},
		{"missing count", []string{"TitForTat"}, nil, true},
		{"empty name", []string{"=2"}, nil, true},
		{"not a number", []string{"TitForTat=many"}, nil, true},
		{"negative", []string{"TitForTat=-1"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKindCounts(tt.entries)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunCommandFixedGenerations(t *testing.T) {
	out, err := execute(t, "",
		"run",
		"--kind", "TitForTat=2",
		"--kind", "AlwaysExploit=2",
		"--generations", "2",
		"--seed", "1",
		"--store", "memory",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "generation 1:")
	assert.Contains(t, out, "generation 2:")
	assert.Contains(t, out, "completed after 2 generations (seed 1)")
}

func TestRunCommandJSON(t *testing.T) {
	out, err := execute(t, "",
		"run", "--json",
		"--kind", "Grudger=2",
		"--generations", "1",
		"--run-id", "run-json",
		"--log-level", "error",
	)
	require.NoError(t, err)

	var summary struct {
		RunID       string
		Generations int
		StopReason  string
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary), out)
	assert.Equal(t, "run-json", summary.RunID)
	assert.Equal(t, 1, summary.Generations)
	assert.Equal(t, "completed", summary.StopReason)
}

func TestRunCommandInteractive(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		prompts int
	}{
		{"next then quit", "N\nQ\n", nil, "declined after 2 generations", 2},
		{"answers are case-insensitive", "n\nq\n", nil, "declined after 2 generations", 2},
		{"empty line quits", "\n", nil, "declined after 1 generations", 1},
		{"unknown answer quits", "x\nN\n", nil, "declined after 1 generations", 1},
		{"end of input quits", "", nil, "declined after 1 generations", 1},
		{"finish runs to the limit", "F\n", []string{"--generations", "3"}, "completed after 3 generations", 1},
		{"limit ends the run without asking", "", []string{"--generations", "1"}, "completed after 1 generations", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--interactive", "--kind", "AlwaysComply=4", "--log-level", "error"}, tt.args...)
			out, err := execute(t, tt.stdin, args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Equal(t, tt.prompts, strings.Count(out, "[N]ext, [Q]uit, [F]inish"))
		})
	}
}

func TestRunCommandPromptsAfterEachGeneration(t *testing.T) {
	out, err := execute(t, "Q\n", "run", "--interactive", "--kind", "AlwaysComply=4", "--log-level", "error")
	require.NoError(t, err)

	generation := strings.Index(out, "generation 1:")
	asked := strings.Index(out, "1 generations done.")
	require.NotEqual(t, -1, generation)
	require.NotEqual(t, -1, asked)
	assert.Less(t, generation, asked, "the first generation runs before the prompt")
}

func TestRunCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "", "run", "--kind", "Nobody=1", "--generations", "1")
	require.ErrorIs(t, err, strategy.ErrKindNotFound)

	_, err = execute(t, "", "run", "--weight", "0.5", "--random-weight", "--generations", "1")
	require.Error(t, err, "conflicting weight flags")

	_, err = execute(t, "", "run", "--kind", "TitForTat", "--generations", "1")
	require.Error(t, err, "malformed --kind")

	_, err = execute(t, "", "run", "--min-rounds", "5", "--max-rounds", "5", "--generations", "1")
	require.Error(t, err, "empty round range")
}

func TestKindsCommand(t *testing.T) {
	out, err := execute(t, "", "kinds")
	require.NoError(t, err)
	for _, want := range []string{"KIND", "TitForTat", "PermanentRetaliation", "Grudger"} {
		assert.Contains(t, out, want)
	}
}

func TestRunsCommandWithEmptyStore(t *testing.T) {
	out, err := execute(t, "", "runs", "--store", "memory")
	require.NoError(t, err)
	assert.Equal(t, "no runs", strings.TrimSpace(out))
}

func TestHistoryCommandRequiresRun(t *testing.T) {
	_, err := execute(t, "", "history", "--store", "memory")
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "", "bogus")
	require.Error(t, err)
}
