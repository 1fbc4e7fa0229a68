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

// SigningKeyRepository handles ticket signing key persistence.
type SigningKeyRepository struct {
	db *sql.DB
}

func NewSigningKeyRepository(db *sql.DB) *SigningKeyRepository {
	return &SigningKeyRepository{db: db}
}

// Create inserts a new signing key and returns the inserted id.
func (r *SigningKeyRepository) Create(ctx context.Context, key *model.SigningKey) (int64, error) {
	const q = `
		INSERT INTO signing_keys (kid, public_key, created_at, expired_at)
		VALUES (?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q, key.KID, key.PublicKey, key.CreatedAt, key.ExpiredAt)
	if err != nil {
		return 0, fmt.Errorf("insert signing_key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByKID returns a signing key by KID, expired or not.
func (r *SigningKeyRepository) FindByKID(ctx context.Context, kid []byte) (*model.SigningKey, error) {
	const q = `
		SELECT id, kid, public_key, created_at, expired_at
		FROM signing_keys
		WHERE kid = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, kid)
	var key model.SigningKey
	if err := row.Scan(&key.ID, &key.KID, &key.PublicKey, &key.CreatedAt, &key.ExpiredAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan signing_key: %w", err)
	}
	return &key, nil
}
