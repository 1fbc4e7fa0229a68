/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package signer

import (
	"context"
	"fmt"
	"os"

	"github.com/kentakayama/cryptex-over-http/internal/config"
	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/img4"
	"github.com/kentakayama/cryptex-over-http/internal/ledger"
	"github.com/kentakayama/cryptex-over-http/internal/metrics"
	"github.com/kentakayama/cryptex-over-http/internal/trustcache"
	"github.com/kentakayama/cryptex-over-http/internal/tss"
	"github.com/sirupsen/logrus"
)

// TicketClient requests a ticket for a cryptex on a device.
type TicketClient interface {
	Sign(ctx context.Context, info *cryptex.Info, device *tss.DeviceInfo) ([]byte, error)
}

// Signer prepares cryptex bundles and personalizes them for devices.
type Signer struct {
	client TicketClient
	ledger *ledger.Ledger
	logger *logrus.Logger
}

// New builds a Signer talking to the configured signing authority. The
// ledger is opened only when cfg.LedgerPath is set.
func New(ctx context.Context, cfg config.SignerConfig) (*Signer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.TSS.Logger == nil {
		cfg.TSS.Logger = logger
	}
	client, err := tss.NewClient(cfg.TSS)
	if err != nil {
		return nil, err
	}

	var l *ledger.Ledger
	if cfg.LedgerPath != "" {
		if l, err = ledger.Open(ctx, cfg.LedgerPath, logger); err != nil {
			return nil, err
		}
	}
	return NewWithClient(client, l, logger), nil
}

// NewWithClient builds a Signer on top of an existing client. l may be nil.
func NewWithClient(client TicketClient, l *ledger.Ledger, logger *logrus.Logger) *Signer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Signer{
		client: client,
		ledger: l,
		logger: logger,
	}
}

func (s *Signer) Close() error {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Close()
}

// PrepareOptions describes an unsigned bundle to assemble.
type PrepareOptions struct {
	Identifier string
	Version    string
	// DMGPath is the disk image to embed.
	DMGPath string
	// Root is scanned for signed executables to admit in the trust cache.
	Root string
	// Raw skips the IM4P wrapping of the trust cache.
	Raw bool
}

// Prepare builds the trust cache and writes an unsigned bundle into dir.
func (s *Signer) Prepare(ctx context.Context, dir string, opts PrepareOptions, provider trustcache.CDHashProvider) (*cryptex.Info, error) {
	dmg, err := os.ReadFile(opts.DMGPath)
	if err != nil {
		return nil, fmt.Errorf("read disk image: %w", err)
	}
	if len(dmg) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDMG, opts.DMGPath)
	}

	tc, err := trustcache.BuildFromPath(ctx, opts.Root, provider)
	if err != nil {
		return nil, err
	}
	metrics.TrustCacheEntries.Observe(float64(len(tc.Entries)))

	encoded := tc.Marshal()
	if !opts.Raw {
		encoded = img4.WrapTrustCache(encoded)
	}

	b := cryptex.NewBundle(opts.Identifier, opts.Version, dmg, encoded)
	if err := cryptex.WriteBundle(dir, b); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"identifier": opts.Identifier,
		"version":    opts.Version,
		"entries":    len(tc.Entries),
		"uuid":       tc.UUID.String(),
	}).Info("prepared cryptex bundle")
	return b.Info()
}

// SignOptions controls a personalization.
type SignOptions struct {
	// Force replaces a ticket already present in the bundle.
	Force bool
}

// Sign personalizes the bundle in dir for the device behind src and stores
// the ticket next to the other components.
func (s *Signer) Sign(ctx context.Context, dir string, src tss.DeviceSource, opts SignOptions) ([]byte, error) {
	b, err := cryptex.ReadBundle(dir)
	if err != nil {
		return nil, err
	}
	if b.Signed() && !opts.Force {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySigned, dir)
	}
	info, err := b.Info()
	if err != nil {
		return nil, err
	}
	device, err := tss.DeviceInfoFromSource(ctx, src)
	if err != nil {
		return nil, err
	}

	ticket, err := s.client.Sign(ctx, info, device)
	if err != nil {
		return nil, err
	}
	if err := cryptex.WriteTicket(dir, ticket); err != nil {
		return nil, err
	}

	if s.ledger != nil {
		_, err := s.ledger.Record(ctx, &ledger.Entry{
			ECID:             device.ECID,
			ChipID:           device.ChipID,
			BoardID:          device.BoardID,
			Identifier:       info.Identifier,
			Version:          info.Version,
			InfoPlistDigest:  info.InfoPlistDigest,
			DMGDigest:        info.DMGDigest,
			TrustCacheDigest: info.TrustCacheDigest,
			Nonce:            device.Nonce,
			Ticket:           ticket,
		})
		if err != nil {
			// the ticket is already on disk
			s.logger.WithError(err).Warn("failed to record ticket")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"identifier": info.Identifier,
		"ecid":       fmt.Sprintf("0x%x", device.ECID),
		"size":       len(ticket),
	}).Info("personalized cryptex bundle")
	return ticket, nil
}
