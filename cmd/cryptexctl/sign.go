/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/kentakayama/cryptex-over-http/internal/signer"
	"github.com/kentakayama/cryptex-over-http/internal/tss"
	"github.com/spf13/pflag"
)

func runProfile(_ context.Context, env *environment, args []string) error {
	var device tss.DeviceInfo
	var nonceHex, out string

	flagSet := pflag.NewFlagSet("profile", pflag.ContinueOnError)
	flagSet.Uint64Var(&device.BoardID, "board-id", 0, "ApBoardID")
	flagSet.Uint64Var(&device.ChipID, "chip-id", 0, "ApChipID")
	flagSet.Uint64Var(&device.ECID, "ecid", 0, "ApECID (unique chip ID)")
	flagSet.StringVar(&nonceHex, "nonce", "", "cryptex nonce, hex encoded")
	flagSet.StringVarP(&out, "out", "o", "", "profile file to write")
	if ok, err := parse(flagSet, args); !ok || err != nil {
		return err
	}
	if err := required(flagSet, "board-id", "chip-id", "ecid", "nonce", "out"); err != nil {
		return err
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return fmt.Errorf("%w: --nonce: %v", errUsage, err)
	}
	device.Nonce = nonce

	profile, err := tss.Profile(&device)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, profile, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	env.logger.WithField("out", out).Info("wrote device profile")
	return nil
}

func runSign(ctx context.Context, env *environment, args []string) error {
	var bundle, profile string
	var opts signer.SignOptions

	flagSet := pflag.NewFlagSet("sign", pflag.ContinueOnError)
	flagSet.StringVarP(&bundle, "bundle", "b", "", "bundle directory")
	flagSet.StringVarP(&profile, "device", "d", "", "device profile written by the profile command")
	flagSet.StringVar(&env.settings.TSSURL, "url", env.settings.TSSURL, "signing authority base URL")
	flagSet.StringVar(&env.settings.LedgerPath, "ledger", env.settings.LedgerPath, "SQLite ticket ledger (empty disables it)")
	flagSet.BoolVar(&opts.Force, "force", false, "replace an existing ticket")
	if ok, err := parse(flagSet, args); !ok || err != nil {
		return err
	}
	if err := required(flagSet, "bundle", "device"); err != nil {
		return err
	}

	s, err := signer.New(ctx, env.settings.SignerConfig(env.logger))
	if err != nil {
		return err
	}
	defer s.Close()

	ticket, err := s.Sign(ctx, bundle, tss.ProfileSource{Path: profile}, opts)
	if err != nil {
		return err
	}
	fmt.Printf("ticket: %d bytes\n", len(ticket))
	return nil
}
