/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tss

import (
	"fmt"

	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/plist"
)

const (
	HostPlatformInfo = "mac"
	VersionInfo      = "libauthinstall-850.0.1.0.1"
	sepNonceSize     = 20
)

// Request and reply keys.
const (
	KeyApImg4Ticket       = "ApImg4Ticket"
	KeyCryptexInfoPlist   = "Ap,CryptexInfoPlist"
	KeyCryptexDMG         = "CryptexDMG"
	KeyLoadableTrustCache = "LoadableTrustCache"
	KeyApBoardID          = "ApBoardID"
	KeyApChipID           = "ApChipID"
	KeyApECID             = "ApECID"
	KeyApNonce            = "ApNonce"
	KeyApProductionMode   = "ApProductionMode"
	KeyApSecurityDomain   = "ApSecurityDomain"
	KeyApSecurityMode     = "ApSecurityMode"
	KeySepNonce           = "SepNonce"
	KeyDigest             = "Digest"
	KeyName               = "Name"
	KeyEPRO               = "EPRO"
	KeyESEC               = "ESEC"
	KeyTrusted            = "Trusted"
)

// BuildRequest assembles the personalization request for a cryptex on a
// device.
func BuildRequest(info *cryptex.Info, device *DeviceInfo) plist.Dict {
	var req plist.Dict
	req.Set("@ApImg4Ticket", plist.Bool(true))
	req.Set("@BBTicket", plist.Bool(true))
	req.Set("@HostPlatformInfo", plist.String(HostPlatformInfo))
	req.Set("@VersionInfo", plist.String(VersionInfo))

	req.Set(KeyCryptexInfoPlist, plist.DictValue(component(info.InfoPlistDigest, device)))
	req.Set(KeyApBoardID, plist.Uint(device.BoardID))
	req.Set(KeyApChipID, plist.Uint(device.ChipID))
	req.Set(KeyApECID, plist.Uint(device.ECID))
	req.Set(KeyApNonce, plist.Data(device.Nonce))
	req.Set(KeyApProductionMode, plist.Bool(device.ProductionMode))
	req.Set(KeyApSecurityDomain, plist.Uint(device.SecurityDomain))
	req.Set(KeyApSecurityMode, plist.Bool(device.SecurityMode))

	dmg := component(info.DMGDigest, device)
	dmg.Set(KeyName, plist.String(info.Identifier))
	req.Set(KeyCryptexDMG, plist.DictValue(dmg))

	req.Set(KeyLoadableTrustCache, plist.DictValue(component(info.TrustCacheDigest, device)))
	req.Set(KeySepNonce, plist.Data(make([]byte, sepNonceSize)))
	return req
}

func component(digest []byte, device *DeviceInfo) plist.Dict {
	var c plist.Dict
	c.Set(KeyDigest, plist.Data(digest))
	c.Set(KeyEPRO, plist.Bool(device.ProductionMode))
	c.Set(KeyESEC, plist.Bool(device.SecurityMode))
	c.Set(KeyTrusted, plist.Bool(true))
	return c
}

// ParseRequest recovers the cryptex digests and device identity from a
// request built by BuildRequest. The returned Info carries no version; the
// request does not transmit one.
func ParseRequest(req plist.Dict) (*cryptex.Info, *DeviceInfo, error) {
	device := &DeviceInfo{}
	var ok bool
	if device.BoardID, ok = req.GetUint64(KeyApBoardID); !ok {
		return nil, nil, missing(KeyApBoardID)
	}
	if device.ChipID, ok = req.GetUint64(KeyApChipID); !ok {
		return nil, nil, missing(KeyApChipID)
	}
	if device.ECID, ok = req.GetUint64(KeyApECID); !ok {
		return nil, nil, missing(KeyApECID)
	}
	if device.Nonce, ok = req.GetData(KeyApNonce); !ok {
		return nil, nil, missing(KeyApNonce)
	}
	if device.SecurityDomain, ok = req.GetUint64(KeyApSecurityDomain); !ok {
		return nil, nil, missing(KeyApSecurityDomain)
	}
	if device.ProductionMode, ok = req.GetBool(KeyApProductionMode); !ok {
		return nil, nil, missing(KeyApProductionMode)
	}
	if device.SecurityMode, ok = req.GetBool(KeyApSecurityMode); !ok {
		return nil, nil, missing(KeyApSecurityMode)
	}

	infoDigest, err := componentDigest(req, KeyCryptexInfoPlist)
	if err != nil {
		return nil, nil, err
	}
	dmgDigest, err := componentDigest(req, KeyCryptexDMG)
	if err != nil {
		return nil, nil, err
	}
	tcDigest, err := componentDigest(req, KeyLoadableTrustCache)
	if err != nil {
		return nil, nil, err
	}
	dmg, _ := req.GetDict(KeyCryptexDMG)
	identifier, ok := dmg.GetString(KeyName)
	if !ok {
		return nil, nil, missing(KeyCryptexDMG + "." + KeyName)
	}

	return cryptex.NewInfoFromDigests(identifier, "", infoDigest, dmgDigest, tcDigest), device, nil
}

func componentDigest(req plist.Dict, key string) ([]byte, error) {
	c, ok := req.GetDict(key)
	if !ok {
		return nil, missing(key)
	}
	digest, ok := c.GetData(KeyDigest)
	if !ok {
		return nil, missing(key + "." + KeyDigest)
	}
	if len(digest) != cryptex.DigestSize {
		return nil, fmt.Errorf("%w: %s.%s is %d bytes", ErrMalformedRequest, key, KeyDigest, len(digest))
	}
	return digest, nil
}

func missing(key string) error {
	return fmt.Errorf("%w: %s missing", ErrMalformedRequest, key)
}
