package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"libdb.so/stargate"
	"libdb.so/stargate/internal/hw"
	"libdb.so/stargate/internal/link"
)

var (
	config  = "stargate.toml"
	verbose = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	hardware, cleanup, err := buildHardware(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up hardware: %w", err)
	}
	defer cleanup()

	d, err := stargate.NewDaemon(cfg, logger, hardware)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon failed: %w", err)
	}

	return nil
}

func readConfig() (*stargate.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return stargate.ParseConfig(f)
}

// buildHardware turns the configuration into concrete drivers. Missing
// pieces degrade rather than fail where the daemon can still do something
// useful: no trigger means the gate only reacts to the link, and a linked
// role without a link device falls back to standalone.
func buildHardware(cfg *stargate.Config, logger *slog.Logger) (stargate.Hardware, func(), error) {
	var hardware stargate.Hardware
	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch {
	case cfg.Lights.WS281x != nil:
		c := cfg.Lights.WS281x
		lights, err := hw.NewWS281xLights(c.Pin, cfg.Chevrons, c.PixelsPerChevron, c.Brightness, c.Color)
		if err != nil {
			return hardware, cleanup, err
		}
		closers = append(closers, func() { lights.Close() })
		hardware.Lights = lights

	case cfg.Lights.Serial != nil:
		c := cfg.Lights.Serial
		lights, err := hw.NewSerialLights(c.Device, c.Baud, cfg.Chevrons, logger)
		if err != nil {
			return hardware, cleanup, err
		}
		closers = append(closers, func() { lights.Close() })
		hardware.Lights = lights
	}

	if cfg.Trigger.Chip != "" {
		reed, err := hw.NewReedSwitch(cfg.Trigger.Chip, cfg.Trigger.Line, cfg.Trigger.ActiveLow)
		if err != nil {
			return hardware, cleanup, err
		}
		closers = append(closers, func() { reed.Close() })
		hardware.Trigger = reed
	} else {
		logger.Warn("no trigger configured, dialing only via link")
	}

	if cfg.Role != stargate.RoleStandalone {
		if cfg.Link.Device == "" {
			logger.Warn("no link device configured, falling back to standalone",
				"role", cfg.Role)
			cfg.Role = stargate.RoleStandalone
		} else {
			hardware.Link = link.NewSerialTransport(cfg.Link.Device, cfg.Link.Baud, logger)
		}
	}

	return hardware, cleanup, nil
}
