/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Ticket is a personalized ticket for one cryptex on one device.
type Ticket struct {
	ID           int64
	DeviceID     int64
	CryptexID    int64
	SigningKeyID *int64
	Nonce        []byte
	Ticket       []byte
	CreatedAt    time.Time
}
