/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/kentakayama/cryptex-over-http/internal/authority"
	"github.com/kentakayama/cryptex-over-http/internal/img4"
	"github.com/kentakayama/cryptex-over-http/internal/plist"
	"github.com/kentakayama/cryptex-over-http/internal/trustcache"
	"github.com/kentakayama/cryptex-over-http/internal/util"
	"github.com/spf13/pflag"
	"github.com/veraison/go-cose"
)

func runInspect(_ context.Context, _ *environment, args []string) error {
	var keyPath string

	flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	flagSet.StringVar(&keyPath, "key", "", "COSE_Key to verify development tickets against")
	if ok, err := parse(flagSet, args); !ok || err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		return fmt.Errorf("%w: inspect: no files given", errUsage)
	}

	var key *cose.Key
	if keyPath != "" {
		raw, err := os.ReadFile(keyPath)
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		key = &cose.Key{}
		if err := cbor.Unmarshal(raw, key); err != nil {
			return fmt.Errorf("decode key: %w", err)
		}
	}

	for _, path := range flagSet.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s:\n", path)
		if err := describe(os.Stdout, data, key); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// describe tries the formats a bundle component can have, most specific
// first.
func describe(w io.Writer, data []byte, key *cose.Key) error {
	if c, err := img4.Decode(data); err == nil {
		fmt.Fprintf(w, "  %s/%s (%s), %d byte payload\n", c.Type, c.Subtype, c.Description, len(c.Payload))
		if c.Subtype == img4.TypeTrustCache {
			return describe(w, c.Payload, key)
		}
		return nil
	}

	if tc, err := trustcache.Parse(data); err == nil {
		fmt.Fprintf(w, "  trust cache v%d %s, %d entries\n", tc.Version, tc.UUID, len(tc.Entries))
		if !tc.Canonical() {
			fmt.Fprintf(w, "  warning: entries are not in canonical order\n")
		}
		for _, e := range tc.Entries {
			fmt.Fprintf(w, "    %x flags=%d\n", e.Hash, e.Flags)
		}
		return nil
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(data); err == nil {
		fmt.Fprintf(w, "  COSE_Sign1 ticket, kid %x\n", msg.Headers.Unprotected[cose.HeaderLabelKeyID])
		if key != nil {
			if _, err := authority.Verify(data, key); err != nil {
				fmt.Fprintf(w, "  signature: INVALID (%v)\n", err)
			} else {
				fmt.Fprintf(w, "  signature: valid\n")
			}
		}
		pretty, err := util.RenderCBORPretty(msg.Payload)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, pretty)
		return nil
	}

	if d, err := plist.UnmarshalDict(data); err == nil {
		fmt.Fprintf(w, "  property list, %d keys\n", d.Len())
		for _, k := range d.Keys() {
			v, _ := d.Get(k)
			fmt.Fprintf(w, "    %s (%s)\n", k, v.Kind())
		}
		return nil
	}

	fmt.Fprintf(w, "  %d bytes, unrecognized format\n", len(data))
	return nil
}
