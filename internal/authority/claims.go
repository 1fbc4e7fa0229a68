/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package authority

import (
	"bytes"
	"fmt"

	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/tss"
	"github.com/veraison/eat"
)

// Claims is the signed payload of a development ticket. Standard EAT labels
// are used for the nonce and issue time, the rest lives in the private use
// range.
type Claims struct {
	Nonce            *eat.Nonce `cbor:"10,keyasint,omitempty"`
	IssuedAt         int64      `cbor:"6,keyasint"`
	ECID             uint64     `cbor:"-70000,keyasint"`
	ChipID           uint64     `cbor:"-70001,keyasint"`
	BoardID          uint64     `cbor:"-70002,keyasint"`
	SecurityDomain   uint64     `cbor:"-70003,keyasint"`
	ProductionMode   bool       `cbor:"-70004,keyasint"`
	SecurityMode     bool       `cbor:"-70005,keyasint"`
	Name             string     `cbor:"-70006,keyasint"`
	InfoPlistDigest  []byte     `cbor:"-70007,keyasint"`
	DMGDigest        []byte     `cbor:"-70008,keyasint"`
	TrustCacheDigest []byte     `cbor:"-70009,keyasint"`
}

func newClaims(info *cryptex.Info, device *tss.DeviceInfo, issuedAt int64) (*Claims, error) {
	var nonce eat.Nonce
	nonce.Add(device.Nonce)
	if err := nonce.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadNonce, err)
	}
	return &Claims{
		Nonce:            &nonce,
		IssuedAt:         issuedAt,
		ECID:             device.ECID,
		ChipID:           device.ChipID,
		BoardID:          device.BoardID,
		SecurityDomain:   device.SecurityDomain,
		ProductionMode:   device.ProductionMode,
		SecurityMode:     device.SecurityMode,
		Name:             info.Identifier,
		InfoPlistDigest:  info.InfoPlistDigest,
		DMGDigest:        info.DMGDigest,
		TrustCacheDigest: info.TrustCacheDigest,
	}, nil
}

// DeviceNonce returns the single nonce bound into the ticket.
func (c *Claims) DeviceNonce() []byte {
	if c.Nonce == nil || c.Nonce.Len() != 1 {
		return nil
	}
	return c.Nonce.GetI(0)
}

// Matches reports whether the ticket personalizes info for device.
func (c *Claims) Matches(info *cryptex.Info, device *tss.DeviceInfo) error {
	switch {
	case c.ECID != device.ECID, c.ChipID != device.ChipID, c.BoardID != device.BoardID:
		return fmt.Errorf("%w: device identity", ErrTicketMismatch)
	case !bytes.Equal(c.DeviceNonce(), device.Nonce):
		return fmt.Errorf("%w: nonce", ErrTicketMismatch)
	case !bytes.Equal(c.InfoPlistDigest, info.InfoPlistDigest),
		!bytes.Equal(c.DMGDigest, info.DMGDigest),
		!bytes.Equal(c.TrustCacheDigest, info.TrustCacheDigest):
		return fmt.Errorf("%w: digests", ErrTicketMismatch)
	}
	return nil
}
