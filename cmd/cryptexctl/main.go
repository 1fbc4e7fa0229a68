/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// cryptexctl prepares cryptex bundles and personalizes them for a device.
//
// Usage:
//
//	cryptexctl [--config FILE] [--log-level LEVEL] <command> [flags]
//
// Commands: trustcache, bundle, profile, sign, inspect.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/kentakayama/cryptex-over-http/internal/config"
	"github.com/kentakayama/cryptex-over-http/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

type command struct {
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

// environment is what every command gets from the global flags.
type environment struct {
	settings *config.Settings
	logger   *logrus.Logger
}

var commands = map[string]command{
	"trustcache": {"build a trust cache from a directory of signed executables", runTrustCache},
	"bundle":     {"assemble an unsigned cryptex bundle", runBundle},
	"profile":    {"write a device profile for offline signing", runProfile},
	"sign":       {"personalize a bundle for a device", runSign},
	"inspect":    {"describe trust caches, IM4P containers, tickets and plists", runInspect},
}

var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath, logLevel, metricsFile string

	flagSet := pflag.NewFlagSet("cryptexctl", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "configuration file (YAML, JSON or TOML)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides the configuration)")
	flagSet.StringVar(&metricsFile, "metrics-file", "", "write signing metrics in Prometheus text format to this file")
	flagSet.BoolP("help", "h", false, "show help")
	// stop at the command name so its flags reach the command's own FlagSet
	flagSet.SetInterspersed(false)

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(flagSet)
		return nil
	}

	name := flagSet.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		printHelp(flagSet)
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	env := &environment{
		settings: settings,
		logger:   config.NewLogger(settings.LogLevel),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.run(ctx, env, flagSet.Args()[1:]); err != nil {
		return err
	}

	if metricsFile != "" {
		// for the node exporter textfile collector
		reg := prometheus.NewRegistry()
		metrics.RegisterSignerMetrics(reg)
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// parse runs a command's FlagSet; it reports whether the command should go
// on (false after --help).
func parse(flagSet *pflag.FlagSet, args []string) (bool, error) {
	flagSet.BoolP("help", "h", false, "show help")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			flagSet.PrintDefaults()
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", errUsage, err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.PrintDefaults()
		return false, nil
	}
	return true, nil
}

func required(flagSet *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		if !flagSet.Changed(name) {
			return fmt.Errorf("%w: %s: --%s is required", errUsage, flagSet.Name(), name)
		}
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "cryptexctl prepares and personalizes cryptex bundles.\n\nUsage:\n  cryptexctl [flags] <command> [command flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-11s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flagSet.PrintDefaults()
}
