/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// tss-mock runs the development signing authority: it answers personalization
// requests on /TSS/controller with COSE signed development tickets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kentakayama/cryptex-over-http/internal/config"
	"github.com/kentakayama/cryptex-over-http/internal/server"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, addr, keyPath, dbPath, metricsPath, logLevel string

	flagSet := pflag.NewFlagSet("tss-mock", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "configuration file (YAML, JSON or TOML)")
	flagSet.StringVar(&addr, "addr", config.DefaultAuthorityAddr, "listen address")
	flagSet.StringVar(&keyPath, "key", "", "CBOR COSE_Key signing key (default: embedded development key)")
	flagSet.StringVar(&dbPath, "db", ":memory:", "SQLite ticket ledger (empty disables it)")
	flagSet.StringVar(&metricsPath, "metrics-path", config.DefaultMetricsPath, "Prometheus endpoint (empty disables it)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// explicit flags win over the file and the environment
	if flagSet.Changed("addr") {
		settings.AuthorityAddr = addr
	}
	if flagSet.Changed("key") {
		settings.AuthorityKeyPath = keyPath
	}
	if flagSet.Changed("db") {
		settings.AuthorityDBPath = dbPath
	}
	if flagSet.Changed("metrics-path") {
		settings.MetricsPath = metricsPath
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}

	logger := config.NewLogger(settings.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, settings.AuthorityConfig(logger))
	if err != nil {
		return err
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "tss-mock serves development tickets for cryptex bundles.\n\nDo not use its tickets outside of development.\n\nUsage:\n  tss-mock [flags]\n\nFlags:\n")
	flagSet.PrintDefaults()
}
