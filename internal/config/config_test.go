package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdevo/internal/strategy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.Population[strategy.KindAlwaysExploit]+cfg.Population[strategy.KindTitForTat]+cfg.Population[strategy.KindPermanentRetaliation])
	assert.Equal(t, 0.75, cfg.Weight)
	assert.Equal(t, int64(1), cfg.Seed)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
population:
  TitForTat: 4
  Grudger: 2
min_rounds: 3
max_rounds: 4
random_weight: true
generations: 12
payoffs:
  exploit_comply: 5
store:
  kind: sqlite
  db_path: /tmp/pdevo.db
logging:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, map[string]int{strategy.KindTitForTat: 4, strategy.KindGrudger: 2}, cfg.Population)
	assert.Equal(t, 3, cfg.MinRounds)
	assert.Equal(t, 4, cfg.MaxRounds)
	assert.True(t, cfg.RandomWeight)
	assert.Equal(t, 12, cfg.Generations)
	assert.Equal(t, 5.0, cfg.Payoffs.ExploitComply)
	assert.Equal(t, 7.0, cfg.Payoffs.ComplyComply, "unset payoffs keep their defaults")
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, int64(1), cfg.Seed)
}

func TestLoadFromFileKeepsDefaultPopulation(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "generations: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, Default().Population, cfg.Population)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "min_rounds: [1, 2\n"))
	require.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Generations = 7
	cfg.Metrics.Addr = ":9464"

	data, err := cfg.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *RunConfig)
	}{
		{"unknown kind", func(c *RunConfig) { c.Population["Nope"] = 1 }},
		{"empty kind", func(c *RunConfig) { c.Population[" "] = 1 }},
		{"negative count", func(c *RunConfig) { c.Population[strategy.KindTitForTat] = -1 }},
		{"negative min rounds", func(c *RunConfig) { c.MinRounds = -1 }},
		{"empty round range", func(c *RunConfig) { c.MaxRounds = c.MinRounds }},
		{"weight above one", func(c *RunConfig) { c.Weight = 1.25 }},
		{"negative generations", func(c *RunConfig) { c.Generations = -1 }},
		{"unknown store", func(c *RunConfig) { c.Store.Kind = "badger" }},
		{"sqlite without path", func(c *RunConfig) { c.Store = StoreConfig{Kind: "sqlite"} }},
		{"bad log level", func(c *RunConfig) { c.Logging.Level = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, strategy.ErrConfiguration)
		})
	}
}

func TestValidateIgnoresWeightWhenRandom(t *testing.T) {
	cfg := Default()
	cfg.RandomWeight = true
	cfg.Weight = 4
	require.NoError(t, cfg.Validate())
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	ec := cfg.EngineConfig(nil)
	require.NotNil(t, ec.Weight)
	require.NotNil(t, ec.Seed)
	assert.Equal(t, 0.75, *ec.Weight)
	assert.Equal(t, int64(1), *ec.Seed)
	assert.Equal(t, cfg.Population, ec.Initial)
	assert.Equal(t, 10.0, ec.Payoffs.ExploitComply)
	require.NoError(t, ec.Validate())

	cfg.RandomWeight = true
	cfg.RandomSeed = true
	ec = cfg.EngineConfig(nil)
	assert.Nil(t, ec.Weight)
	assert.Nil(t, ec.Seed)
	assert.True(t, ec.RandomWeight())
}

func TestRandomFlagsOverrideFixedValues(t *testing.T) {
	cfg, err := Parse([]byte("weight: 0.5\nrandom_weight: true\nseed: 9\nrandom_seed: true\n"))
	require.NoError(t, err)
	ec := cfg.EngineConfig(nil)
	assert.Nil(t, ec.Weight, "random_weight wins over weight")
	assert.Nil(t, ec.Seed, "random_seed wins over seed")

	cfg, err = Parse([]byte("weight: 0\nseed: 0\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	ec = cfg.EngineConfig(nil)
	require.NotNil(t, ec.Weight, "a zero weight is fixed, not random")
	assert.Equal(t, 0.0, *ec.Weight)
	require.NotNil(t, ec.Seed)
	assert.Equal(t, int64(0), *ec.Seed)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("PDEVO_LOG_LEVEL", "warn")
	t.Setenv("PDEVO_STORE", "sqlite")
	t.Setenv("PDEVO_DB_PATH", "/tmp/env.db")
	t.Setenv("PDEVO_SEED", "42")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "/tmp/env.db", cfg.Store.DBPath)
	assert.Equal(t, int64(42), cfg.Seed)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadSeed(t *testing.T) {
	t.Setenv("PDEVO_SEED", "soon")
	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
