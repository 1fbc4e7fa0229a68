/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package plist

import "errors"

var (
	ErrInvalidValue    = errors.New("invalid property list value")
	ErrMalformed       = errors.New("malformed property list")
	ErrNotADict        = errors.New("property list root is not a dictionary")
	ErrUnsupportedType = errors.New("unsupported property list type")
)
