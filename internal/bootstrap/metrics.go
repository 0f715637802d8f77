package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/nexoai/pos-client/config"
	"github.com/nexoai/pos-client/internal/observability/statsd"
)

// BuildMetrics creates the StatsD sink. A disabled config yields a client
// that drops every metric.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init statsd: %w", err)
	}
	if client.Enabled() && logger != nil {
		logger.Info("metrics enabled", "address", cfg.StatsdAddress, "prefix", cfg.Prefix)
	}
	return client, nil
}
