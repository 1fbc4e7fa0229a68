/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// SigningKey represents a ticket signing key of the development authority.
// PublicKey holds the CBOR encoded COSE_Key.
type SigningKey struct {
	ID        int64
	KID       []byte
	PublicKey []byte
	CreatedAt time.Time
	ExpiredAt time.Time
}
