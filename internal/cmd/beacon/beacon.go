// Package beacon parses beacon service flags and launches the service.
package beacon

import (
	"context"
	"flag"

	"github.com/tapinapp/beacon/internal/app"
	entrypoint "github.com/tapinapp/beacon/internal/platform/cmd"
)

// Config holds beacon command configuration.
type Config struct {
	Port int `env:"BEACON_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The beacon HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the beacon HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBeacon, func(context.Context) error {
		return app.Run(ctx, cfg.Port)
	})
}
