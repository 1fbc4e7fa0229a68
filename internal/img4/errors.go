/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package img4

import "errors"

var (
	ErrMalformed     = errors.New("malformed IM4P container")
	ErrTruncated     = errors.New("truncated IM4P container")
	ErrUnexpectedTag = errors.New("unexpected DER tag")
	ErrBadLength     = errors.New("unsupported DER length")
	ErrNotIM4P       = errors.New("not an IM4P container")
)
