/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package authority

import (
	"context"
	"crypto"
	"crypto/rand"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/ledger"
	"github.com/kentakayama/cryptex-over-http/internal/metrics"
	"github.com/kentakayama/cryptex-over-http/internal/plist"
	"github.com/kentakayama/cryptex-over-http/internal/tss"
	"github.com/sirupsen/logrus"
	"github.com/veraison/go-cose"
)

// Reply statuses of the development authority.
const (
	StatusOK               = tss.StatusOK
	StatusUnknownError     = 1
	StatusMalformedRequest = 100
)

// KeyValidity is how long a registered signing key stays valid in the ledger.
const KeyValidity = 365 * 24 * time.Hour

// Authority issues development tickets: COSE_Sign1 over the request's
// digests, device identity and nonce. It is not a replacement for a
// production signing service.
type Authority struct {
	key       *cose.Key
	publicKey *cose.Key
	kid       []byte
	ledger    *ledger.Ledger
	keyID     *int64
	logger    *logrus.Logger
	now       func() time.Time
}

// New loads the CBOR encoded private COSE_Key. l may be nil, in which case
// issued tickets are not recorded.
func New(keyBytes []byte, l *ledger.Ledger, logger *logrus.Logger) (*Authority, error) {
	var key cose.Key
	if err := cbor.Unmarshal(keyBytes, &key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyLoad, err)
	}
	if _, ok := key.Params[cose.KeyLabelEC2D]; !ok {
		return nil, fmt.Errorf("%w: not a private key", ErrKeyLoad)
	}

	// the public half is what gets published and recorded
	public := key
	public.Params = maps.Clone(key.Params)
	delete(public.Params, cose.KeyLabelEC2D)

	kid, err := public.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyLoad, err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Authority{
		key:       &key,
		publicKey: &public,
		kid:       kid,
		ledger:    l,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Init registers the signing key in the ledger, if there is one.
func (a *Authority) Init(ctx context.Context) error {
	if a.ledger == nil {
		return nil
	}
	encoded, err := cbor.Marshal(a.publicKey)
	if err != nil {
		return err
	}
	id, err := a.ledger.EnsureSigningKey(ctx, a.kid, encoded, KeyValidity)
	if err != nil {
		return err
	}
	a.keyID = &id
	a.logger.WithField("kid", fmt.Sprintf("%x", a.kid)).Info("registered ticket signing key")
	return nil
}

func (a *Authority) KID() []byte {
	return a.kid
}

// PublicKey returns the COSE_Key tickets verify against.
func (a *Authority) PublicKey() *cose.Key {
	return a.publicKey
}

// Issue signs a ticket for the request.
func (a *Authority) Issue(ctx context.Context, req plist.Dict) ([]byte, error) {
	info, device, err := tss.ParseRequest(req)
	if err != nil {
		return nil, err
	}
	claims, err := newClaims(info, device, a.now().Unix())
	if err != nil {
		return nil, err
	}
	ticket, err := a.sign(claims)
	if err != nil {
		return nil, err
	}

	if a.ledger != nil {
		_, err := a.ledger.Record(ctx, &ledger.Entry{
			ECID:             device.ECID,
			ChipID:           device.ChipID,
			BoardID:          device.BoardID,
			Identifier:       info.Identifier,
			InfoPlistDigest:  info.InfoPlistDigest,
			DMGDigest:        info.DMGDigest,
			TrustCacheDigest: info.TrustCacheDigest,
			Nonce:            device.Nonce,
			Ticket:           ticket,
			SigningKeyID:     a.keyID,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
		}
	}

	a.logger.WithFields(logrus.Fields{
		"ecid":       fmt.Sprintf("0x%x", device.ECID),
		"identifier": info.Identifier,
	}).Info("issued cryptex ticket")
	return ticket, nil
}

// Resolve answers one raw signing request body with a reply in the
// STATUS=..&MESSAGE=.. grammar. It never fails; errors become statuses.
func (a *Authority) Resolve(ctx context.Context, body []byte) []byte {
	status, reply := a.resolve(ctx, body)
	metrics.TicketIssuedCount.WithLabelValues(strconv.Itoa(status)).Inc()
	return reply
}

func (a *Authority) resolve(ctx context.Context, body []byte) (int, []byte) {
	req, err := plist.UnmarshalDict(body)
	if err != nil {
		a.logger.WithError(err).Warn("failed to decode signing request")
		return a.failure(StatusMalformedRequest, "Malformed request")
	}

	ticket, err := a.Issue(ctx, req)
	if err != nil {
		if errors.Is(err, tss.ErrMalformedRequest) || errors.Is(err, ErrBadNonce) {
			a.logger.WithError(err).Warn("rejected signing request")
			return a.failure(StatusMalformedRequest, "Malformed request")
		}
		a.logger.WithError(err).Error("failed to issue ticket")
		return a.failure(StatusUnknownError, "Internal error")
	}

	reply, err := tss.TicketReply(ticket)
	if err != nil {
		a.logger.WithError(err).Error("failed to encode reply")
		return a.failure(StatusUnknownError, "Internal error")
	}
	return StatusOK, reply
}

func (a *Authority) failure(status int, message string) (int, []byte) {
	// a reply without a document cannot fail to encode
	reply, _ := tss.FormatReply(status, message, nil)
	return status, reply
}

func (a *Authority) sign(claims *Claims) ([]byte, error) {
	signer, err := a.key.Signer()
	if err != nil {
		return nil, err
	}
	alg, err := a.key.AlgorithmOrDefault()
	if err != nil {
		return nil, err
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: alg,
		},
		Unprotected: cose.UnprotectedHeader{
			cose.HeaderLabelKeyID: a.kid,
		},
	}

	payload, err := cbor.Marshal(claims)
	if err != nil {
		return nil, err
	}
	return cose.Sign1(rand.Reader, signer, headers, payload, nil)
}

// Verify checks a ticket issued by this authority.
func (a *Authority) Verify(ticket []byte) (*Claims, error) {
	return Verify(ticket, a.publicKey)
}

// Verify checks ticket against key and returns its claims.
func Verify(ticket []byte, key *cose.Key) (*Claims, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(ticket); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotATicket, err)
	}

	kid, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, err
	}
	if got, ok := msg.Headers.Unprotected[cose.HeaderLabelKeyID].([]byte); !ok || string(got) != string(kid) {
		return nil, ErrKIDMismatch
	}

	verifier, err := key.Verifier()
	if err != nil {
		return nil, err
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, err
	}

	var claims Claims
	if err := cbor.Unmarshal(msg.Payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotATicket, err)
	}
	return &claims, nil
}

// VerifyFor additionally checks that the ticket personalizes info for device.
func VerifyFor(ticket []byte, key *cose.Key, info *cryptex.Info, device *tss.DeviceInfo) (*Claims, error) {
	claims, err := Verify(ticket, key)
	if err != nil {
		return nil, err
	}
	if err := claims.Matches(info, device); err != nil {
		return nil, err
	}
	return claims, nil
}
