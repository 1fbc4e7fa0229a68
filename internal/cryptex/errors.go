/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cryptex

import "errors"

var (
	ErrBundleNotFound      = errors.New("cryptex bundle directory not found")
	ErrBundleIncomplete    = errors.New("cryptex bundle is missing a component")
	ErrInfoPlistKeyMissing = errors.New("info plist key missing")
)
