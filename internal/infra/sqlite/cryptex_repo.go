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

// CryptexRepository handles cryptex persistence.
type CryptexRepository struct {
	db *sql.DB
}

func NewCryptexRepository(db *sql.DB) *CryptexRepository {
	return &CryptexRepository{db: db}
}

func (r *CryptexRepository) FindByID(ctx context.Context, id int64) (*model.Cryptex, error) {
	const q = `
		SELECT id, identifier, version, info_plist_digest, dmg_digest, trust_cache_digest, created_at
		FROM cryptexes
		WHERE id = ?
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// FindByDigests returns the cryptex whose three artifacts hash to the given
// digests.
func (r *CryptexRepository) FindByDigests(ctx context.Context, infoPlistDigest, dmgDigest, trustCacheDigest []byte) (*model.Cryptex, error) {
	const q = `
		SELECT id, identifier, version, info_plist_digest, dmg_digest, trust_cache_digest, created_at
		FROM cryptexes
		WHERE info_plist_digest = ? AND dmg_digest = ? AND trust_cache_digest = ?
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, q, infoPlistDigest, dmgDigest, trustCacheDigest))
}

// ListByIdentifier returns every recorded version of a cryptex, newest first.
func (r *CryptexRepository) ListByIdentifier(ctx context.Context, identifier string) ([]*model.Cryptex, error) {
	const q = `
		SELECT id, identifier, version, info_plist_digest, dmg_digest, trust_cache_digest, created_at
		FROM cryptexes
		WHERE identifier = ?
		ORDER BY id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, identifier)
	if err != nil {
		return nil, fmt.Errorf("query cryptexes: %w", err)
	}
	defer rows.Close()

	var out []*model.Cryptex
	for rows.Next() {
		var c model.Cryptex
		if err := rows.Scan(&c.ID, &c.Identifier, &c.Version, &c.InfoPlistDigest, &c.DMGDigest, &c.TrustCacheDigest, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("cryptex scan: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cryptex rows: %w", err)
	}
	return out, nil
}

// Create inserts a new cryptex and returns the inserted id.
func (r *CryptexRepository) Create(ctx context.Context, c *model.Cryptex) (int64, error) {
	const q = `
		INSERT INTO cryptexes (identifier, version, info_plist_digest, dmg_digest, trust_cache_digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q, c.Identifier, c.Version, c.InfoPlistDigest, c.DMGDigest, c.TrustCacheDigest, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *CryptexRepository) scanOne(row *sql.Row) (*model.Cryptex, error) {
	var c model.Cryptex
	if err := row.Scan(&c.ID, &c.Identifier, &c.Version, &c.InfoPlistDigest, &c.DMGDigest, &c.TrustCacheDigest, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("cryptex scan: %w", err)
	}
	return &c, nil
}
