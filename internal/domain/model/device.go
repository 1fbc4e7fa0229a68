/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Device is a personalization target identified by its ECID.
type Device struct {
	ID        int64
	ECID      uint64
	ChipID    uint64
	BoardID   uint64
	CreatedAt time.Time
}
