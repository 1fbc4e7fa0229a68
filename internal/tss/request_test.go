/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tss

import (
	"errors"
	"testing"

	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/plist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevice() *DeviceInfo {
	return &DeviceInfo{
		ProductionMode: true,
		SecurityMode:   true,
		BoardID:        0x0c,
		ChipID:         0x8101,
		ECID:           0x001a2b3c4d5e6f70,
		SecurityDomain: DefaultSecurityDomain,
		Nonce:          []byte{0xaa, 0xbb, 0xcc, 0xdd},
	}
}

func TestBuildRequest_Keys(t *testing.T) {
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	req := BuildRequest(info, testDevice())

	assert.ElementsMatch(t, []string{
		"@ApImg4Ticket", "@BBTicket", "@HostPlatformInfo", "@VersionInfo",
		"Ap,CryptexInfoPlist", "ApBoardID", "ApChipID", "ApECID", "ApNonce",
		"ApProductionMode", "ApSecurityDomain", "ApSecurityMode",
		"CryptexDMG", "LoadableTrustCache", "SepNonce",
	}, req.Keys())

	v, _ := req.GetString("@VersionInfo")
	assert.Equal(t, "libauthinstall-850.0.1.0.1", v)
	v, _ = req.GetString("@HostPlatformInfo")
	assert.Equal(t, "mac", v)

	ecid, ok := req.GetUint64(KeyApECID)
	require.True(t, ok)
	assert.Equal(t, uint64(0x001a2b3c4d5e6f70), ecid)

	sep, ok := req.GetData(KeySepNonce)
	require.True(t, ok)
	assert.Equal(t, make([]byte, 20), sep)

	nonce, _ := req.GetData(KeyApNonce)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, nonce)

	domain, _ := req.GetUint64(KeyApSecurityDomain)
	assert.Equal(t, uint64(1), domain)
}

func TestBuildRequest_Components(t *testing.T) {
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	device := testDevice()
	device.SecurityMode = false
	req := BuildRequest(info, device)

	cases := []struct {
		key    string
		digest []byte
	}{
		{KeyCryptexInfoPlist, info.InfoPlistDigest},
		{KeyCryptexDMG, info.DMGDigest},
		{KeyLoadableTrustCache, info.TrustCacheDigest},
	}
	for _, c := range cases {
		comp, ok := req.GetDict(c.key)
		require.True(t, ok, c.key)
		digest, _ := comp.GetData(KeyDigest)
		assert.Equal(t, c.digest, digest, c.key)
		epro, _ := comp.GetBool(KeyEPRO)
		assert.True(t, epro, c.key)
		esec, ok := comp.GetBool(KeyESEC)
		require.True(t, ok, c.key)
		assert.False(t, esec, c.key)
		trusted, _ := comp.GetBool(KeyTrusted)
		assert.True(t, trusted, c.key)
	}

	dmg, _ := req.GetDict(KeyCryptexDMG)
	name, ok := dmg.GetString(KeyName)
	require.True(t, ok)
	assert.Equal(t, "com.example.cryptex", name)

	infoPlist, _ := req.GetDict(KeyCryptexInfoPlist)
	_, ok = infoPlist.Get(KeyName)
	assert.False(t, ok)
}

func TestBuildRequest_EncodesDeterministically(t *testing.T) {
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	a, err := plist.MarshalDict(BuildRequest(info, testDevice()))
	require.Nil(t, err)
	b, err := plist.MarshalDict(BuildRequest(info, testDevice()))
	require.Nil(t, err)
	assert.Equal(t, a, b)

	decoded, err := plist.UnmarshalDict(a)
	require.Nil(t, err)
	assert.True(t, decoded.Equal(BuildRequest(info, testDevice())))
}

func TestParseRequest_RoundTrip(t *testing.T) {
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	device := testDevice()

	encoded, err := plist.MarshalDict(BuildRequest(info, device))
	require.Nil(t, err)
	decoded, err := plist.UnmarshalDict(encoded)
	require.Nil(t, err)

	gotInfo, gotDevice, err := ParseRequest(decoded)
	require.Nil(t, err)
	assert.Equal(t, device, gotDevice)
	assert.Equal(t, "com.example.cryptex", gotInfo.Identifier)
	assert.Equal(t, info.InfoPlistDigest, gotInfo.InfoPlistDigest)
	assert.Equal(t, info.DMGDigest, gotInfo.DMGDigest)
	assert.Equal(t, info.TrustCacheDigest, gotInfo.TrustCacheDigest)
}

func without(d plist.Dict, key string) plist.Dict {
	var out plist.Dict
	for _, k := range d.Keys() {
		if k == key {
			continue
		}
		v, _ := d.Get(k)
		out.Set(k, v)
	}
	return out
}

func TestParseRequest_Missing(t *testing.T) {
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	req := BuildRequest(info, testDevice())

	for _, key := range []string{
		KeyApBoardID, KeyApChipID, KeyApECID, KeyApNonce, KeyApSecurityDomain,
		KeyApProductionMode, KeyApSecurityMode,
		KeyCryptexInfoPlist, KeyCryptexDMG, KeyLoadableTrustCache,
	} {
		_, _, err := ParseRequest(without(req, key))
		assert.True(t, errors.Is(err, ErrMalformedRequest), key)
	}
}

func TestParseRequest_BadDigest(t *testing.T) {
	info := cryptex.NewInfoFromDigests("com.example.cryptex", "1.0", make([]byte, 48), make([]byte, 32), make([]byte, 48))
	_, _, err := ParseRequest(BuildRequest(info, testDevice()))
	assert.True(t, errors.Is(err, ErrMalformedRequest))
}
