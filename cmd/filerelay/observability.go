package main

import (
	"os"

	"github.com/blockrelay/filerelay/internal/config"
	"github.com/blockrelay/filerelay/pkg/obs"
)

// setupObservability builds the logger and metrics collector a host process
// installs globally, honoring the config's log level and format.
func setupObservability(cfg *config.Config, role string) (*obs.Logger, *obs.Collector, error) {
	level := obs.ParseLevel(cfg.LogLevel)
	format := obs.FormatText
	if cfg.LogFormat == "json" {
		format = obs.FormatJSON
	}

	logger := obs.NewLogger(
		obs.WithOutput(os.Stderr),
		obs.WithLevel(level),
		obs.WithFormat(format),
		obs.WithFields(obs.Fields{"app": "filerelay", "role": role}),
	)
	obs.SetLogger(logger)

	collector := obs.NewCollector(obs.Labels{"role": role})
	obs.SetGlobal(collector)

	return logger, collector, nil
}
