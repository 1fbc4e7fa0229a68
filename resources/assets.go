/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package resources

import (
	_ "embed"
)

var (
	// development signing authority key, never use it for production tickets
	//go:embed authority_priv.cbor
	AuthorityCoseKeyBytes []byte
)
