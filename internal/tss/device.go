/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tss

import (
	"context"
	"fmt"
	"os"

	"github.com/kentakayama/cryptex-over-http/internal/plist"
)

// Device property keys.
const (
	PropBoardID      = "BoardId"
	PropChipID       = "ChipID"
	PropUniqueChipID = "UniqueChipID"
	PropCryptexNonce = "CryptexNonce"
)

// DefaultSecurityDomain is the security domain of application processors.
const DefaultSecurityDomain = 1

// DeviceInfo is the identity of the device a ticket is personalized for.
type DeviceInfo struct {
	ProductionMode bool // EPRO
	SecurityMode   bool // ESEC
	BoardID        uint64
	ChipID         uint64
	ECID           uint64
	SecurityDomain uint64
	Nonce          []byte
}

// DeviceSource exposes the device properties and the cryptex nonce handed
// out by the device's image mounter.
type DeviceSource interface {
	Properties(ctx context.Context) (plist.Dict, error)
	CryptexNonce(ctx context.Context) ([]byte, error)
}

// DeviceInfoFromSource reads the identity of a production-fused device. Each
// missing property has its own error.
func DeviceInfoFromSource(ctx context.Context, src DeviceSource) (*DeviceInfo, error) {
	props, err := src.Properties(ctx)
	if err != nil {
		return nil, fmt.Errorf("read device properties: %w", err)
	}

	boardID, ok := props.GetUint64(PropBoardID)
	if !ok {
		return nil, ErrNoApBoardID
	}
	chipID, ok := props.GetUint64(PropChipID)
	if !ok {
		return nil, ErrNoApChipID
	}
	ecid, ok := props.GetUint64(PropUniqueChipID)
	if !ok {
		return nil, ErrNoApECID
	}

	nonce, err := src.CryptexNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cryptex nonce: %w", err)
	}

	return &DeviceInfo{
		ProductionMode: true,
		SecurityMode:   true,
		BoardID:        boardID,
		ChipID:         chipID,
		ECID:           ecid,
		SecurityDomain: DefaultSecurityDomain,
		Nonce:          nonce,
	}, nil
}

// ProfileSource serves device properties from a property list file, for
// signing without a connected device. The cryptex nonce is taken from the
// CryptexNonce key of the same file.
type ProfileSource struct {
	Path string
}

func (p ProfileSource) Properties(ctx context.Context) (plist.Dict, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return plist.Dict{}, err
	}
	return plist.UnmarshalDict(data)
}

func (p ProfileSource) CryptexNonce(ctx context.Context) ([]byte, error) {
	props, err := p.Properties(ctx)
	if err != nil {
		return nil, err
	}
	nonce, ok := props.GetData(PropCryptexNonce)
	if !ok || len(nonce) == 0 {
		return nil, ErrNoCryptexNonce
	}
	return nonce, nil
}

// Profile serializes info in the ProfileSource format.
func Profile(info *DeviceInfo) ([]byte, error) {
	var d plist.Dict
	d.Set(PropBoardID, plist.Uint(info.BoardID))
	d.Set(PropChipID, plist.Uint(info.ChipID))
	d.Set(PropUniqueChipID, plist.Uint(info.ECID))
	d.Set(PropCryptexNonce, plist.Data(info.Nonce))
	return plist.MarshalDict(d)
}
