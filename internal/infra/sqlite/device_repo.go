/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kentakayama/cryptex-over-http/internal/domain"
	"github.com/kentakayama/cryptex-over-http/internal/domain/model"
)

type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new instance of DeviceRepository.
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// ECIDs are stored big endian as an 8-byte BLOB since they may exceed the
// signed 64-bit INTEGER range.
func ecidKey(ecid uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, ecid)
}

func (r *DeviceRepository) FindByECID(ctx context.Context, ecid uint64) (*model.Device, error) {
	const query = `
		SELECT id, ecid, chip_id, board_id, created_at
		FROM devices
		WHERE ecid = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, ecidKey(ecid))
	var (
		d       model.Device
		rawECID []byte
		chipID  int64
		boardID int64
	)
	if err := row.Scan(&d.ID, &rawECID, &chipID, &boardID, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(rawECID) != 8 {
		return nil, fmt.Errorf("device %d: ecid has %d bytes", d.ID, len(rawECID))
	}
	d.ECID = binary.BigEndian.Uint64(rawECID)
	d.ChipID = uint64(chipID)
	d.BoardID = uint64(boardID)

	return &d, nil
}

func (r *DeviceRepository) Create(ctx context.Context, d *model.Device) (int64, error) {
	const query = `
		INSERT INTO devices (ecid, chip_id, board_id, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query, ecidKey(d.ECID), int64(d.ChipID), int64(d.BoardID), d.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	return id, err
}
