/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package authority

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/ledger"
	"github.com/kentakayama/cryptex-over-http/internal/plist"
	"github.com/kentakayama/cryptex-over-http/internal/tss"
	"github.com/kentakayama/cryptex-over-http/resources"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veraison/go-cose"
)

func testDevice() *tss.DeviceInfo {
	return &tss.DeviceInfo{
		ProductionMode: true,
		SecurityMode:   true,
		BoardID:        0x0c,
		ChipID:         0x8101,
		ECID:           0x001a2b3c4d5e6f70,
		SecurityDomain: tss.DefaultSecurityDomain,
		Nonce:          []byte("0123456789abcdef0123"),
	}
}

func testInfo() *cryptex.Info {
	return cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("trust cache"))
}

func newTestAuthority(t *testing.T, l *ledger.Ledger) *Authority {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a, err := New(resources.AuthorityCoseKeyBytes, l, logger)
	require.Nil(t, err)
	require.Nil(t, a.Init(context.Background()))
	return a
}

func TestNew_EmbeddedKey(t *testing.T) {
	a := newTestAuthority(t, nil)
	assert.Len(t, a.KID(), 32)

	_, hasD := a.PublicKey().Params[cose.KeyLabelEC2D]
	assert.False(t, hasD)
	_, hasD = a.key.Params[cose.KeyLabelEC2D]
	assert.True(t, hasD)
}

func TestNew_BadKey(t *testing.T) {
	_, err := New([]byte{0xff}, nil, nil)
	assert.True(t, errors.Is(err, ErrKeyLoad))

	// the public half alone cannot sign
	a := newTestAuthority(t, nil)
	public, err := cbor.Marshal(a.PublicKey())
	require.Nil(t, err)
	_, err = New(public, nil, nil)
	assert.True(t, errors.Is(err, ErrKeyLoad))
}

func TestIssue_Verify(t *testing.T) {
	a := newTestAuthority(t, nil)
	info := testInfo()
	device := testDevice()

	ticket, err := a.Issue(context.Background(), tss.BuildRequest(info, device))
	require.Nil(t, err)

	claims, err := a.Verify(ticket)
	require.Nil(t, err)
	assert.Equal(t, device.ECID, claims.ECID)
	assert.Equal(t, device.ChipID, claims.ChipID)
	assert.Equal(t, device.BoardID, claims.BoardID)
	assert.Equal(t, "com.example.cryptex", claims.Name)
	assert.Equal(t, device.Nonce, claims.DeviceNonce())
	assert.NotZero(t, claims.IssuedAt)

	_, err = VerifyFor(ticket, a.PublicKey(), info, device)
	assert.Nil(t, err)

	other := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("other dmg"), []byte("trust cache"))
	_, err = VerifyFor(ticket, a.PublicKey(), other, device)
	assert.True(t, errors.Is(err, ErrTicketMismatch))

	moved := testDevice()
	moved.ECID++
	_, err = VerifyFor(ticket, a.PublicKey(), info, moved)
	assert.True(t, errors.Is(err, ErrTicketMismatch))
}

func TestIssue_BadNonce(t *testing.T) {
	a := newTestAuthority(t, nil)
	device := testDevice()
	device.Nonce = []byte{0x01, 0x02}

	_, err := a.Issue(context.Background(), tss.BuildRequest(testInfo(), device))
	assert.True(t, errors.Is(err, ErrBadNonce))
}

func TestVerify_WrongKey(t *testing.T) {
	a := newTestAuthority(t, nil)
	ticket, err := a.Issue(context.Background(), tss.BuildRequest(testInfo(), testDevice()))
	require.Nil(t, err)

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)
	pub, err := priv.PublicKey.ECDH()
	require.Nil(t, err)
	point := pub.Bytes()
	other := &cose.Key{
		Type:      cose.KeyTypeEC2,
		Algorithm: cose.AlgorithmES256,
		Params: map[any]any{
			cose.KeyLabelEC2Curve: cose.CurveP256,
			cose.KeyLabelEC2X:     point[1:33],
			cose.KeyLabelEC2Y:     point[33:],
		},
	}
	_, err = Verify(ticket, other)
	assert.True(t, errors.Is(err, ErrKIDMismatch))

	_, err = Verify([]byte("not cose"), a.PublicKey())
	assert.True(t, errors.Is(err, ErrNotATicket))
}

func TestVerify_Tampered(t *testing.T) {
	a := newTestAuthority(t, nil)
	ticket, err := a.Issue(context.Background(), tss.BuildRequest(testInfo(), testDevice()))
	require.Nil(t, err)

	ticket[len(ticket)-1] ^= 0xff
	_, err = a.Verify(ticket)
	assert.NotNil(t, err)
}

func TestResolve(t *testing.T) {
	a := newTestAuthority(t, nil)
	ctx := context.Background()

	body, err := plist.MarshalDict(tss.BuildRequest(testInfo(), testDevice()))
	require.Nil(t, err)
	ticket, err := tss.ParseReply(a.Resolve(ctx, body))
	require.Nil(t, err)
	_, err = a.Verify(ticket)
	assert.Nil(t, err)

	_, err = tss.ParseReply(a.Resolve(ctx, []byte("garbage")))
	var bad *tss.BadStatusError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, StatusMalformedRequest, bad.Code)
	assert.Equal(t, "Malformed%20request", bad.Message)

	var incomplete plist.Dict
	incomplete.Set(tss.KeyApECID, plist.Uint(1))
	body, err = plist.MarshalDict(incomplete)
	require.Nil(t, err)
	_, err = tss.ParseReply(a.Resolve(ctx, body))
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, StatusMalformedRequest, bad.Code)
}

func TestIssue_RecordsInLedger(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	l, err := ledger.Open(ctx, ":memory:", logger)
	require.Nil(t, err)
	defer l.Close()

	a := newTestAuthority(t, l)
	require.NotNil(t, a.keyID)

	key, err := l.SigningKey(ctx, a.KID())
	require.Nil(t, err)
	require.NotNil(t, key)
	var stored cose.Key
	require.Nil(t, cbor.Unmarshal(key.PublicKey, &stored))

	info := testInfo()
	device := testDevice()
	ticket, err := a.Issue(ctx, tss.BuildRequest(info, device))
	require.Nil(t, err)

	// the recorded public key verifies the ticket
	_, err = Verify(ticket, &stored)
	assert.Nil(t, err)

	latest, err := l.LatestTicket(ctx, device.ECID, info.InfoPlistDigest, info.DMGDigest, info.TrustCacheDigest)
	require.Nil(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ticket, latest.Ticket)
	require.NotNil(t, latest.SigningKeyID)
	assert.Equal(t, *a.keyID, *latest.SigningKeyID)
}
