package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plazza/plazza/internal/config"
	"github.com/plazza/plazza/internal/dispatcher"
	"github.com/plazza/plazza/internal/metrics"
	"github.com/plazza/plazza/internal/plazzalog"
	"github.com/plazza/plazza/internal/reception"
)

// newRootCommand builds the top-level "plazza" command: the three
// required positional arguments, the optional --config/--metrics-port
// flags, and the hidden "__kitchen" subcommand a forked child re-exec's
// into.
func newRootCommand() *cobra.Command {
	var configPath string
	var metricsPort int

	root := &cobra.Command{
		Use:   "plazza <multiplier> <cooks_per_kitchen> <restock_time_ms>",
		Short: "Multi-process pizza cooking fleet",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(3)(cmd, args); err != nil {
				return newInitError("usage: plazza <multiplier> <cooks_per_kitchen> <restock_time_ms>\n%v", err)
			}
			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFleet(args, configPath, metricsPort)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "optional YAML tuning file")
	root.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve Prometheus /metrics on this port (0 disables)")

	root.AddCommand(newKitchenCommand())
	return root
}

func runFleet(args []string, configPath string, metricsPort int) error {
	multiplier, err := strconv.ParseFloat(args[0], 64)
	if err != nil || multiplier <= 0 {
		return newInitError("usage: plazza <multiplier> <cooks_per_kitchen> <restock_time_ms>\nmultiplier must be a positive number")
	}
	cooksPerKitchen, err := strconv.Atoi(args[1])
	if err != nil || cooksPerKitchen <= 0 {
		return newInitError("usage: plazza <multiplier> <cooks_per_kitchen> <restock_time_ms>\ncooks_per_kitchen must be a positive integer")
	}
	restockTimeMs, err := strconv.Atoi(args[2])
	if err != nil || restockTimeMs <= 0 {
		return newInitError("usage: plazza <multiplier> <cooks_per_kitchen> <restock_time_ms>\nrestock_time_ms must be a positive integer")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return newInitError("failed to load config %q: %v", configPath, err)
	}
	if metricsPort != 0 {
		cfg.MetricsPort = metricsPort
	}

	exe, err := os.Executable()
	if err != nil {
		return newInitError("failed to resolve executable path: %v", err)
	}

	logFile, err := os.OpenFile("plazza.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return newInitError("failed to open log file: %v", err)
	}
	defer logFile.Close()
	log := plazzalog.New(os.Stdout, logFile)

	var collector *metrics.Collector
	if cfg.MetricsPort != 0 {
		collector = metrics.NewCollector()
		if err := metrics.StartServer(cfg.MetricsPort); err != nil {
			return newInitError("failed to start metrics server: %v", err)
		}
	}

	opts := dispatcher.Options{
		Exe:             exe,
		CooksPerKitchen: cooksPerKitchen,
		Multiplier:      multiplier,
		RestockPeriodMs: restockTimeMs,
		Config:          cfg,
	}
	fleet := dispatcher.New(opts, log, collector)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		fleet.Shutdown()
		os.Exit(0)
	}()

	front := reception.New(os.Stdin, os.Stdout, fleet, multiplier, log)
	front.Run()

	fleet.Shutdown()
	return nil
}
