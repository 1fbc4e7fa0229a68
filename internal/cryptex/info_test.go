/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cryptex

import (
	"crypto/sha512"
	"errors"
	"testing"

	"github.com/kentakayama/cryptex-over-http/internal/plist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInfo_Deterministic(t *testing.T) {
	a := NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	b := NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))

	assert.Equal(t, a, b)
	assert.Len(t, a.InfoPlistDigest, DigestSize)
	assert.Len(t, a.DMGDigest, DigestSize)
	assert.Len(t, a.TrustCacheDigest, DigestSize)

	dmg := sha512.Sum384([]byte("dmg"))
	assert.Equal(t, dmg[:], a.DMGDigest)
	infoPlist := sha512.Sum384(a.InfoPlist)
	assert.Equal(t, infoPlist[:], a.InfoPlistDigest)
}

func TestNewInfo_DigestChangesWithInputs(t *testing.T) {
	base := NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	other := NewInfo("com.example.cryptex", "1.1", []byte("dmg"), []byte("tc"))

	assert.NotEqual(t, base.InfoPlistDigest, other.InfoPlistDigest)
	assert.Equal(t, base.DMGDigest, other.DMGDigest)
}

func TestNewInfoFromDigests(t *testing.T) {
	digest := make([]byte, DigestSize)
	info := NewInfoFromDigests("id", "2", digest, digest, digest)

	assert.Nil(t, info.InfoPlist)
	assert.Equal(t, digest, info.DMGDigest)

	digest[0] = 0xff
	assert.Equal(t, byte(0x00), info.DMGDigest[0])
}

func TestInfoPlist_Content(t *testing.T) {
	encoded := InfoPlist("com.example.cryptex", "1.0")

	d, err := plist.UnmarshalDict(encoded)
	require.Nil(t, err)
	assert.Equal(t, []string{"CFBundleIdentifier", "CFBundleVersion"}, d.Keys())

	id, version, err := ParseInfoPlist(encoded)
	require.Nil(t, err)
	assert.Equal(t, "com.example.cryptex", id)
	assert.Equal(t, "1.0", version)
}

func TestParseInfoPlist_MissingKey(t *testing.T) {
	var d plist.Dict
	d.Set("CFBundleIdentifier", plist.String("x"))
	encoded, err := plist.MarshalDict(d)
	require.Nil(t, err)

	_, _, err = ParseInfoPlist(encoded)
	assert.True(t, errors.Is(err, ErrInfoPlistKeyMissing))
}
