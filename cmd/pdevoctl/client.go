package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pdevo/internal/config"
	"pdevo/internal/logging"
	"pdevo/pkg/pdevo"
)

// loadConfig reads the optional --config file, applies the environment and
// then the persistent flags.
func loadConfig(cmd *cobra.Command, path string) (*config.RunConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Kind, _ = flags.GetString("store")
	}
	if flags.Changed("db-path") {
		cfg.Store.DBPath, _ = flags.GetString("db-path")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	return cfg, nil
}

func newClient(cfg *config.RunConfig, logger *slog.Logger, reg prometheus.Registerer) (*pdevo.Client, error) {
	return pdevo.New(pdevo.Options{
		StoreKind:  cfg.Store.Kind,
		DBPath:     cfg.Store.DBPath,
		Logger:     logger,
		Registerer: reg,
	})
}

// openReadClient opens the configured store for the read-only commands.
func openReadClient(cmd *cobra.Command) (*pdevo.Client, error) {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	client, err := newClient(cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
