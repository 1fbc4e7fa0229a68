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

	_ "github.com/mattn/go-sqlite3"
)

// InitDB initializes the SQLite database and creates necessary tables.
func InitDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	if dbPath == ":memory:" {
		// every connection would otherwise open its own empty database
		db.SetMaxOpenConns(1)
	}

	// Connection-level pragmas to improve concurrency and reliability.
	// These are executed per-connection; setting them here ensures sensible defaults.
	// NOTE: Some pragmas are persistent per DB file (journal_mode) and return a row.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA synchronous: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA busy_timeout: %w", err)
	}

	// Create tables and indexes
	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// createSchema creates all necessary database tables.
func createSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	-- Enable foreign keys
	PRAGMA foreign_keys = ON;

	-- Devices table, one row per ECID
	CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ecid BLOB UNIQUE NOT NULL,
		chip_id INTEGER NOT NULL,
		board_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Ticket signing keys table
	CREATE TABLE IF NOT EXISTS signing_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kid BLOB UNIQUE NOT NULL,
		public_key BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expired_at TIMESTAMP NOT NULL
	);

	-- Create index on kid for faster lookups
	CREATE INDEX IF NOT EXISTS idx_signing_keys_kid ON signing_keys(kid);
	CREATE INDEX IF NOT EXISTS idx_signing_keys_expired_at ON signing_keys(expired_at);

	-- Cryptexes table, identified by the digests of their three artifacts
	CREATE TABLE IF NOT EXISTS cryptexes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identifier TEXT NOT NULL,
		version TEXT NOT NULL,
		info_plist_digest BLOB NOT NULL,
		dmg_digest BLOB NOT NULL,
		trust_cache_digest BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (info_plist_digest, dmg_digest, trust_cache_digest)
	);

	-- Create index on identifier for faster lookups
	CREATE INDEX IF NOT EXISTS idx_cryptexes_identifier ON cryptexes(identifier);

	-- Tickets table
	CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		cryptex_id INTEGER NOT NULL,
		signing_key_id INTEGER NULLABLE, -- unknown when the ticket came from a remote authority
		nonce BLOB NOT NULL,
		ticket BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		-- table constraints (placed after column definitions for compatibility)
		FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE,
		FOREIGN KEY (cryptex_id) REFERENCES cryptexes(id) ON DELETE CASCADE,
		FOREIGN KEY (signing_key_id) REFERENCES signing_keys(id) ON DELETE SET NULL
	);

	-- Composite index to accelerate "find latest ticket for a device and cryptex"
	CREATE INDEX IF NOT EXISTS idx_tickets_device_cryptex ON tickets(device_id, cryptex_id, created_at);
	`

	// Execute schema using transaction
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CloseDB closes the database connection.
func CloseDB(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
