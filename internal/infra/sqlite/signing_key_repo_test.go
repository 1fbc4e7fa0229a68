/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/kentakayama/cryptex-over-http/internal/domain/model"
)

func TestSigningKey_CreateFindByKID_OK(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)

	keyRepo := NewSigningKeyRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	key := &model.SigningKey{
		KID:       []byte("key-1"),
		PublicKey: []byte("pub-key-1"),
		CreatedAt: now,
		ExpiredAt: now.Add(1 * time.Hour),
	}

	id, err := keyRepo.Create(ctx, key)
	if err != nil {
		t.Fatalf("Create key error: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero id")
	}

	got, err := keyRepo.FindByKID(ctx, key.KID)
	if err != nil {
		t.Fatalf("FindByKID error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected key, got nil")
	}
	if !bytes.Equal(got.PublicKey, key.PublicKey) {
		t.Fatalf("public key mismatch: want %x got %x", key.PublicKey, got.PublicKey)
	}
	if !got.ExpiredAt.Equal(key.ExpiredAt) {
		t.Fatalf("expired_at mismatch: want %v got %v", key.ExpiredAt, got.ExpiredAt)
	}

	if _, err := keyRepo.Create(ctx, key); err == nil {
		t.Fatalf("expected duplicate kid to be rejected")
	}
}

func TestSigningKey_FindByKID_NotFound(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)

	keyRepo := NewSigningKeyRepository(db)

	got, err := keyRepo.FindByKID(ctx, []byte("missing"))
	if err != nil {
		t.Fatalf("FindByKID error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
