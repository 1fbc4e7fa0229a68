/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kentakayama/cryptex-over-http/internal/domain/model"
)

// TicketRepository handles ticket persistence.
type TicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket and returns the inserted id.
func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) (int64, error) {
	const q = `
		INSERT INTO tickets (device_id, cryptex_id, signing_key_id, nonce, ticket, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q, t.DeviceID, t.CryptexID, t.SigningKeyID, t.Nonce, t.Ticket, t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByID returns a ticket by its ID.
func (r *TicketRepository) FindByID(ctx context.Context, id int64) (*model.Ticket, error) {
	const q = `
		SELECT id, device_id, cryptex_id, signing_key_id, nonce, ticket, created_at
		FROM tickets
		WHERE id = ?
		LIMIT 1
	`
	return scanTicket(r.db.QueryRowContext(ctx, q, id))
}

// FindLatest returns the most recent ticket for a device and cryptex.
func (r *TicketRepository) FindLatest(ctx context.Context, deviceID, cryptexID int64) (*model.Ticket, error) {
	const q = `
		SELECT id, device_id, cryptex_id, signing_key_id, nonce, ticket, created_at
		FROM tickets
		WHERE device_id = ? AND cryptex_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return scanTicket(r.db.QueryRowContext(ctx, q, deviceID, cryptexID))
}

// CountByDevice returns how many tickets were recorded for a device.
func (r *TicketRepository) CountByDevice(ctx context.Context, deviceID int64) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM tickets
		WHERE device_id = ?
	`
	var n int
	if err := r.db.QueryRowContext(ctx, q, deviceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func scanTicket(row *sql.Row) (*model.Ticket, error) {
	var (
		t            model.Ticket
		signingKeyID sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.DeviceID, &t.CryptexID, &signingKeyID, &t.Nonce, &t.Ticket, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	if signingKeyID.Valid {
		t.SigningKeyID = &signingKeyID.Int64
	}
	return &t, nil
}
