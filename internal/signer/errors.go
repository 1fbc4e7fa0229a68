/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package signer

import "errors"

var (
	ErrAlreadySigned = errors.New("bundle already carries a ticket")
	ErrEmptyDMG      = errors.New("disk image is empty")
)
