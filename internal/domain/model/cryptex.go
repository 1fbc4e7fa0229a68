/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Cryptex is a signed artifact set, identified by its three SHA-384 digests.
type Cryptex struct {
	ID               int64
	Identifier       string
	Version          string
	InfoPlistDigest  []byte
	DMGDigest        []byte
	TrustCacheDigest []byte
	CreatedAt        time.Time
}
