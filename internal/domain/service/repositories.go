/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"

	"github.com/kentakayama/cryptex-over-http/internal/domain/model"
)

// DeviceRepository defines the interface for device persistence.
type DeviceRepository interface {
	FindByECID(ctx context.Context, ecid uint64) (*model.Device, error)
	Create(ctx context.Context, d *model.Device) (int64, error)
}

// CryptexRepository defines the interface for cryptex persistence.
type CryptexRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Cryptex, error)
	FindByDigests(ctx context.Context, infoPlistDigest, dmgDigest, trustCacheDigest []byte) (*model.Cryptex, error)
	ListByIdentifier(ctx context.Context, identifier string) ([]*model.Cryptex, error)
	Create(ctx context.Context, c *model.Cryptex) (int64, error)
}

// TicketRepository defines the interface for ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, t *model.Ticket) (int64, error)
	FindByID(ctx context.Context, id int64) (*model.Ticket, error)
	FindLatest(ctx context.Context, deviceID, cryptexID int64) (*model.Ticket, error)
	CountByDevice(ctx context.Context, deviceID int64) (int, error)
}

// SigningKeyRepository defines the interface for ticket signing key persistence.
type SigningKeyRepository interface {
	Create(ctx context.Context, key *model.SigningKey) (int64, error)
	FindByKID(ctx context.Context, kid []byte) (*model.SigningKey, error)
}
