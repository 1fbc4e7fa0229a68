/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cryptex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File names inside a cryptex bundle directory.
const (
	FileTrustCache = "ltrs"
	FileInfoPlist  = "c411"
	FileTicket     = "im4m"
	FileDMG        = "cpxd"
)

// Bundle holds the four components of a cryptex bundle. Ticket stays nil
// until the bundle has been signed.
type Bundle struct {
	TrustCache []byte
	InfoPlist  []byte
	Ticket     []byte
	DMG        []byte
}

// NewBundle assembles an unsigned bundle, synthesizing the info plist.
func NewBundle(identifier, version string, dmg, trustCache []byte) *Bundle {
	return &Bundle{
		TrustCache: trustCache,
		InfoPlist:  InfoPlist(identifier, version),
		DMG:        dmg,
	}
}

// Info parses the bundle's info plist and digests the components as stored.
func (b *Bundle) Info() (*Info, error) {
	identifier, version, err := ParseInfoPlist(b.InfoPlist)
	if err != nil {
		return nil, err
	}
	info := NewInfoFromDigests(identifier, version, Digest(b.InfoPlist), Digest(b.DMG), Digest(b.TrustCache))
	info.InfoPlist = clone(b.InfoPlist)
	return info, nil
}

func (b *Bundle) Signed() bool {
	return len(b.Ticket) > 0
}

// WriteBundle creates dir if needed and writes every non-nil component.
func WriteBundle(dir string, b *Bundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{FileTrustCache, b.TrustCache},
		{FileInfoPlist, b.InfoPlist},
		{FileTicket, b.Ticket},
		{FileDMG, b.DMG},
	}
	for _, f := range files {
		if f.data == nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

// WriteTicket stores a ticket into an existing bundle directory.
func WriteTicket(dir string, ticket []byte) error {
	if err := requireDir(dir); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, FileTicket), ticket, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", FileTicket, err)
	}
	return nil
}

// ReadBundle loads a bundle directory. The trust cache, info plist and disk
// image are required, the ticket is optional.
func ReadBundle(dir string) (*Bundle, error) {
	if err := requireDir(dir); err != nil {
		return nil, err
	}

	var b Bundle
	required := []struct {
		name string
		dst  *[]byte
	}{
		{FileTrustCache, &b.TrustCache},
		{FileInfoPlist, &b.InfoPlist},
		{FileDMG, &b.DMG},
	}
	for _, r := range required {
		data, err := os.ReadFile(filepath.Join(dir, r.name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrBundleIncomplete, r.name)
			}
			return nil, fmt.Errorf("read %s: %w", r.name, err)
		}
		*r.dst = data
	}

	ticket, err := os.ReadFile(filepath.Join(dir, FileTicket))
	switch {
	case err == nil:
		b.Ticket = ticket
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", FileTicket, err)
	}
	return &b, nil
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBundleNotFound, dir)
		}
		return fmt.Errorf("stat bundle: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBundleNotFound, dir)
	}
	return nil
}
