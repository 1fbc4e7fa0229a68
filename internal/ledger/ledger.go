/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kentakayama/cryptex-over-http/internal/domain"
	"github.com/kentakayama/cryptex-over-http/internal/domain/model"
	"github.com/kentakayama/cryptex-over-http/internal/domain/service"
	"github.com/kentakayama/cryptex-over-http/internal/infra/sqlite"
	"github.com/sirupsen/logrus"
)

// Ledger records which tickets were issued for which cryptex and device.
type Ledger struct {
	db        *sql.DB
	devices   service.DeviceRepository
	cryptexes service.CryptexRepository
	tickets   service.TicketRepository
	keys      service.SigningKeyRepository
	logger    *logrus.Logger
}

// Entry is one issued ticket together with what it personalizes.
type Entry struct {
	ECID    uint64
	ChipID  uint64
	BoardID uint64

	Identifier       string
	Version          string
	InfoPlistDigest  []byte
	DMGDigest        []byte
	TrustCacheDigest []byte

	Nonce        []byte
	Ticket       []byte
	SigningKeyID *int64
}

// Open opens (and creates if needed) the SQLite ledger at path.
func Open(ctx context.Context, path string, logger *logrus.Logger) (*Ledger, error) {
	db, err := sqlite.InitDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(db, logger), nil
}

func New(db *sql.DB, logger *logrus.Logger) *Ledger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Ledger{
		db:        db,
		devices:   sqlite.NewDeviceRepository(db),
		cryptexes: sqlite.NewCryptexRepository(db),
		tickets:   sqlite.NewTicketRepository(db),
		keys:      sqlite.NewSigningKeyRepository(db),
		logger:    logger,
	}
}

func (l *Ledger) Close() error {
	return sqlite.CloseDB(l.db)
}

// Record stores e, creating the device and cryptex rows on first sight.
func (l *Ledger) Record(ctx context.Context, e *Entry) (*model.Ticket, error) {
	if e == nil || len(e.Ticket) == 0 {
		return nil, errors.New("ledger: empty ticket")
	}
	now := time.Now().UTC().Truncate(time.Second)

	device, err := l.ensureDevice(ctx, e, now)
	if err != nil {
		return nil, err
	}
	cx, err := l.ensureCryptex(ctx, e, now)
	if err != nil {
		return nil, err
	}

	t := &model.Ticket{
		DeviceID:     device.ID,
		CryptexID:    cx.ID,
		SigningKeyID: e.SigningKeyID,
		Nonce:        e.Nonce,
		Ticket:       e.Ticket,
		CreatedAt:    now,
	}
	id, err := l.tickets.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	t.ID = id

	l.logger.WithFields(logrus.Fields{
		"ecid":       fmt.Sprintf("0x%x", e.ECID),
		"identifier": e.Identifier,
		"ticket_id":  id,
	}).Debug("recorded ticket")
	return t, nil
}

// LatestTicket returns the newest ticket recorded for the device and the
// cryptex with the given digests, or nil when there is none.
func (l *Ledger) LatestTicket(ctx context.Context, ecid uint64, infoPlistDigest, dmgDigest, trustCacheDigest []byte) (*model.Ticket, error) {
	device, err := l.devices.FindByECID(ctx, ecid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cx, err := l.cryptexes.FindByDigests(ctx, infoPlistDigest, dmgDigest, trustCacheDigest)
	if err != nil || cx == nil {
		return nil, err
	}
	return l.tickets.FindLatest(ctx, device.ID, cx.ID)
}

// TicketCount returns how many tickets were recorded for a device.
func (l *Ledger) TicketCount(ctx context.Context, ecid uint64) (int, error) {
	device, err := l.devices.FindByECID(ctx, ecid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return l.tickets.CountByDevice(ctx, device.ID)
}

// EnsureSigningKey registers a signing key and returns its row id. A key
// already present is returned as is unless it has expired.
func (l *Ledger) EnsureSigningKey(ctx context.Context, kid, publicKey []byte, validity time.Duration) (int64, error) {
	existing, err := l.keys.FindByKID(ctx, kid)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	if existing != nil {
		if now.After(existing.ExpiredAt) {
			return 0, fmt.Errorf("signing key %x: %w", kid, domain.ErrExpired)
		}
		return existing.ID, nil
	}
	return l.keys.Create(ctx, &model.SigningKey{
		KID:       kid,
		PublicKey: publicKey,
		CreatedAt: now,
		ExpiredAt: now.Add(validity),
	})
}

// SigningKey returns the stored public key for kid, or nil when unknown.
func (l *Ledger) SigningKey(ctx context.Context, kid []byte) (*model.SigningKey, error) {
	return l.keys.FindByKID(ctx, kid)
}

func (l *Ledger) ensureDevice(ctx context.Context, e *Entry, now time.Time) (*model.Device, error) {
	device, err := l.devices.FindByECID(ctx, e.ECID)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	device = &model.Device{
		ECID:      e.ECID,
		ChipID:    e.ChipID,
		BoardID:   e.BoardID,
		CreatedAt: now,
	}
	if device.ID, err = l.devices.Create(ctx, device); err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}
	return device, nil
}

func (l *Ledger) ensureCryptex(ctx context.Context, e *Entry, now time.Time) (*model.Cryptex, error) {
	cx, err := l.cryptexes.FindByDigests(ctx, e.InfoPlistDigest, e.DMGDigest, e.TrustCacheDigest)
	if err != nil {
		return nil, err
	}
	if cx != nil {
		return cx, nil
	}
	cx = &model.Cryptex{
		Identifier:       e.Identifier,
		Version:          e.Version,
		InfoPlistDigest:  e.InfoPlistDigest,
		DMGDigest:        e.DMGDigest,
		TrustCacheDigest: e.TrustCacheDigest,
		CreatedAt:        now,
	}
	if cx.ID, err = l.cryptexes.Create(ctx, cx); err != nil {
		return nil, fmt.Errorf("create cryptex: %w", err)
	}
	return cx, nil
}
