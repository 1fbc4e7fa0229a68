/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package trustcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/kentakayama/cryptex-over-http/internal/img4"
	"github.com/kentakayama/cryptex-over-http/internal/util"
)

// Trust Cache Format (version 1, little endian)
// 0x00 -> version
// 0x04 -> UUID (16 bytes)
// 0x14 -> number of entries
// 0x18 -> entries, 20 bytes of hash followed by 2 bytes of flags each
const (
	Version      uint32 = 1
	HashSize            = 20
	DefaultFlags uint16 = 2

	headerSize = 4 + 16 + 4
	entrySize  = HashSize + 2
)

type Entry struct {
	Hash  [HashSize]byte
	Flags uint16
}

// EntryFromHash builds an entry with DefaultFlags. The hash must be exactly
// HashSize bytes long.
func EntryFromHash(hash []byte) Entry {
	if len(hash) != HashSize {
		panic(fmt.Sprintf("trustcache: hash must be %d bytes, got %d", HashSize, len(hash)))
	}
	e := Entry{Flags: DefaultFlags}
	copy(e.Hash[:], hash)
	return e
}

// EntryFromCDHash truncates a code directory hash (SHA-256, SHA-384, ...) to
// its first HashSize bytes.
func EntryFromCDHash(cdhash []byte) Entry {
	if len(cdhash) < HashSize {
		panic(fmt.Sprintf("trustcache: cdhash must be at least %d bytes, got %d", HashSize, len(cdhash)))
	}
	return EntryFromHash(cdhash[:HashSize])
}

// Compare orders entries by unsigned lexicographic comparison of the hash.
// Flags do not take part in the ordering.
func Compare(a, b Entry) int {
	return bytes.Compare(a.Hash[:], b.Hash[:])
}

type TrustCache struct {
	Version uint32
	UUID    uuid.UUID
	Entries []Entry
}

// New canonicalizes entries (duplicates removed with the first occurrence
// kept, then sorted ascending) under a freshly generated random UUID.
func New(entries []Entry) *TrustCache {
	return NewWithUUID(entries, uuid.New())
}

func NewWithUUID(entries []Entry, id uuid.UUID) *TrustCache {
	canonical := util.Unique(entries, func(e Entry) [HashSize]byte { return e.Hash })
	slices.SortFunc(canonical, Compare)
	return &TrustCache{
		Version: Version,
		UUID:    id,
		Entries: canonical,
	}
}

// NewFromHashes builds a trust cache from raw 20-byte hashes, each getting
// DefaultFlags.
func NewFromHashes(hashes [][]byte) *TrustCache {
	entries := make([]Entry, 0, len(hashes))
	for _, h := range hashes {
		entries = append(entries, EntryFromHash(h))
	}
	return New(entries)
}

// Build returns the serialized trust cache for hashes, wrapped in an IM4P
// container when wrapIM4P is set.
func Build(hashes [][]byte, wrapIM4P bool) []byte {
	raw := NewFromHashes(hashes).Marshal()
	if wrapIM4P {
		return img4.WrapTrustCache(raw)
	}
	return raw
}

func (tc *TrustCache) Marshal() []byte {
	out := make([]byte, 0, headerSize+entrySize*len(tc.Entries))
	out = binary.LittleEndian.AppendUint32(out, tc.Version)
	out = append(out, tc.UUID[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(tc.Entries)))
	for _, e := range tc.Entries {
		out = append(out, e.Hash[:]...)
		out = binary.LittleEndian.AppendUint16(out, e.Flags)
	}
	return out
}

// Parse decodes a raw (not IM4P wrapped) version 1 trust cache. Entries are
// returned in stored order.
func Parse(data []byte) (*TrustCache, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformed, len(data))
	}
	version := binary.LittleEndian.Uint32(data[0:4])
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	tc := &TrustCache{Version: version}
	copy(tc.UUID[:], data[4:20])

	count := binary.LittleEndian.Uint32(data[20:24])
	body := data[headerSize:]
	if uint64(len(body)) != uint64(count)*entrySize {
		return nil, fmt.Errorf("%w: %d entries declared, %d bytes of entries present", ErrMalformed, count, len(body))
	}

	tc.Entries = make([]Entry, count)
	for i := range tc.Entries {
		rec := body[i*entrySize : (i+1)*entrySize]
		copy(tc.Entries[i].Hash[:], rec[:HashSize])
		tc.Entries[i].Flags = binary.LittleEndian.Uint16(rec[HashSize:])
	}
	return tc, nil
}

// Contains reports whether hash (truncated to HashSize) is present. The
// entries must be in canonical order.
func (tc *TrustCache) Contains(hash []byte) bool {
	if len(hash) < HashSize {
		return false
	}
	var key Entry
	copy(key.Hash[:], hash[:HashSize])
	_, found := slices.BinarySearchFunc(tc.Entries, key, Compare)
	return found
}

// Canonical reports whether the entries are strictly ascending, which also
// rules out duplicates.
func (tc *TrustCache) Canonical() bool {
	for i := 1; i < len(tc.Entries); i++ {
		if Compare(tc.Entries[i-1], tc.Entries[i]) >= 0 {
			return false
		}
	}
	return true
}
