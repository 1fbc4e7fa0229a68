/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package codesign

import "errors"

var (
	ErrNotMachO            = errors.New("not a Mach-O file")
	ErrUnsigned            = errors.New("no embedded code signature")
	ErrMalformedSignature  = errors.New("malformed code signature")
	ErrUnsupportedHashType = errors.New("unsupported code directory hash type")
)
