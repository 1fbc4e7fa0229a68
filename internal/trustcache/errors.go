/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package trustcache

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed          = errors.New("malformed trust cache")
	ErrUnsupportedVersion = errors.New("unsupported trust cache version")

	// ErrDirectory matches every failure to scan the input directory.
	ErrDirectory           = errors.New("trust cache input directory")
	ErrDirectoryNotFound   = fmt.Errorf("%w: not found", ErrDirectory)
	ErrNotADirectory       = fmt.Errorf("%w: not a directory", ErrDirectory)
	ErrDirectoryUnreadable = fmt.Errorf("%w: unreadable", ErrDirectory)
)
