/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kentakayama/cryptex-over-http/internal/codesign"
	"github.com/kentakayama/cryptex-over-http/internal/signer"
	"github.com/kentakayama/cryptex-over-http/internal/trustcache"
	"github.com/spf13/pflag"
)

func runTrustCache(ctx context.Context, env *environment, args []string) error {
	var root, out string
	var raw bool

	flagSet := pflag.NewFlagSet("trustcache", pflag.ContinueOnError)
	flagSet.StringVar(&root, "root", "", "directory scanned recursively for signed executables")
	flagSet.StringVarP(&out, "out", "o", "", "output file")
	flagSet.BoolVar(&raw, "raw", false, "write the bare trust cache without the IM4P wrapper")
	if ok, err := parse(flagSet, args); !ok || err != nil {
		return err
	}
	if err := required(flagSet, "root", "out"); err != nil {
		return err
	}

	data, err := trustcache.BuildFileFromPath(ctx, root, codesign.NewInspector(env.logger), !raw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write trust cache: %w", err)
	}
	env.logger.WithField("out", out).Info("wrote trust cache")
	return nil
}

func runBundle(ctx context.Context, env *environment, args []string) error {
	var opts signer.PrepareOptions
	var out string

	flagSet := pflag.NewFlagSet("bundle", pflag.ContinueOnError)
	flagSet.StringVar(&opts.Identifier, "identifier", "", "cryptex identifier (CFBundleIdentifier)")
	flagSet.StringVar(&opts.Version, "version", "", "cryptex version (CFBundleVersion)")
	flagSet.StringVar(&opts.DMGPath, "dmg", "", "disk image holding the cryptex content")
	flagSet.StringVar(&opts.Root, "root", "", "directory scanned for signed executables")
	flagSet.BoolVar(&opts.Raw, "raw", false, "store the trust cache without the IM4P wrapper")
	flagSet.StringVarP(&out, "out", "o", "", "bundle directory to create")
	if ok, err := parse(flagSet, args); !ok || err != nil {
		return err
	}
	if err := required(flagSet, "identifier", "version", "dmg", "root", "out"); err != nil {
		return err
	}

	s := signer.NewWithClient(nil, nil, env.logger)
	info, err := s.Prepare(ctx, out, opts, codesign.NewInspector(env.logger))
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", info.Identifier, info.Version)
	fmt.Printf("  %-11s %x\n", "info plist", info.InfoPlistDigest)
	fmt.Printf("  %-11s %x\n", "disk image", info.DMGDigest)
	fmt.Printf("  %-11s %x\n", "trust cache", info.TrustCacheDigest)
	return nil
}
