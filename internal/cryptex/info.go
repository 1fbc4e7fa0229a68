/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cryptex

import (
	"crypto"
	_ "crypto/sha512"
	"fmt"

	"github.com/kentakayama/cryptex-over-http/internal/plist"
)

// DigestSize is the length of a SHA-384 digest.
const DigestSize = 48

const (
	keyBundleIdentifier = "CFBundleIdentifier"
	keyBundleVersion    = "CFBundleVersion"
)

// Info describes a cryptex by identity and the digests of its three signed
// artifacts.
type Info struct {
	Identifier string
	Version    string
	// InfoPlist is nil when the Info was built from precomputed digests.
	InfoPlist        []byte
	InfoPlistDigest  []byte
	DMGDigest        []byte
	TrustCacheDigest []byte
}

func NewInfoFromDigests(identifier, version string, infoPlistDigest, dmgDigest, trustCacheDigest []byte) *Info {
	return &Info{
		Identifier:       identifier,
		Version:          version,
		InfoPlistDigest:  clone(infoPlistDigest),
		DMGDigest:        clone(dmgDigest),
		TrustCacheDigest: clone(trustCacheDigest),
	}
}

// NewInfo synthesizes the info plist for identifier and version and digests
// it together with the disk image and the trust cache file as given.
func NewInfo(identifier, version string, dmg, trustCache []byte) *Info {
	infoPlist := InfoPlist(identifier, version)
	return &Info{
		Identifier:       identifier,
		Version:          version,
		InfoPlist:        infoPlist,
		InfoPlistDigest:  Digest(infoPlist),
		DMGDigest:        Digest(dmg),
		TrustCacheDigest: Digest(trustCache),
	}
}

// InfoPlist returns the XML serialization of
// {CFBundleIdentifier: identifier, CFBundleVersion: version}.
func InfoPlist(identifier, version string) []byte {
	var d plist.Dict
	d.Set(keyBundleIdentifier, plist.String(identifier))
	d.Set(keyBundleVersion, plist.String(version))
	encoded, err := plist.MarshalDict(d)
	if err != nil {
		// both values are strings and always encodable
		panic(fmt.Sprintf("cryptex: encode info plist: %v", err))
	}
	return encoded
}

// ParseInfoPlist extracts the identifier and version from an info plist.
func ParseInfoPlist(data []byte) (identifier, version string, err error) {
	d, err := plist.UnmarshalDict(data)
	if err != nil {
		return "", "", fmt.Errorf("decode info plist: %w", err)
	}
	identifier, ok := d.GetString(keyBundleIdentifier)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInfoPlistKeyMissing, keyBundleIdentifier)
	}
	version, ok = d.GetString(keyBundleVersion)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInfoPlistKeyMissing, keyBundleVersion)
	}
	return identifier, version, nil
}

// Digest returns the SHA-384 digest of data.
func Digest(data []byte) []byte {
	h := crypto.SHA384.New()
	h.Write(data)
	return h.Sum(nil)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
