/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package trustcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kentakayama/cryptex-over-http/internal/img4"
)

// CDHashProvider returns the primary code directory hash of a file. A file
// that carries no code signature yields ok == false and no error.
type CDHashProvider interface {
	CDHash(path string) (cdhash []byte, ok bool, err error)
}

// BuildFromPath walks root recursively and collects the primary CDHash of
// every signed regular file. Symbolic links are followed only when they point
// at a regular file. Any error aborts the scan and no partial trust cache is
// returned.
func BuildFromPath(ctx context.Context, root string, provider CDHashProvider) (*TrustCache, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryUnreadable, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, root)
	}

	var entries []Entry
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDirectoryUnreadable, path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			if d.Type()&fs.ModeSymlink == 0 {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
		}

		cdhash, ok, err := provider.CDHash(path)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", path, err)
		}
		if !ok {
			return nil
		}
		entries = append(entries, EntryFromCDHash(cdhash))
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return New(entries), nil
}

// BuildFileFromPath is BuildFromPath followed by serialization, optionally
// wrapped in an IM4P container.
func BuildFileFromPath(ctx context.Context, root string, provider CDHashProvider, wrapIM4P bool) ([]byte, error) {
	tc, err := BuildFromPath(ctx, root, provider)
	if err != nil {
		return nil, err
	}
	raw := tc.Marshal()
	if wrapIM4P {
		return img4.WrapTrustCache(raw), nil
	}
	return raw, nil
}
