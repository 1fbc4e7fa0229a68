/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tss

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyReply         = errors.New("empty reply from signing authority")
	ErrDecodeFailure      = errors.New("reply is not valid UTF-8 text")
	ErrBadReplyStart      = errors.New("reply does not match STATUS=..&MESSAGE=.. grammar")
	ErrInvalidStatus      = errors.New("reply status is not an integer")
	ErrBadStatus          = errors.New("signing authority rejected the request")
	ErrNoBody             = errors.New("reply has no REQUEST_STRING body")
	ErrReplyNotADocument  = errors.New("reply body is not a property list dictionary")
	ErrNoSignatureInReply = errors.New("reply has no ApImg4Ticket")

	ErrTransport = errors.New("signing transport failure")

	ErrNoApBoardID    = errors.New("device property BoardId missing")
	ErrNoApChipID     = errors.New("device property ChipID missing")
	ErrNoApECID       = errors.New("device property UniqueChipID missing")
	ErrNoCryptexNonce = errors.New("device cryptex nonce missing")

	ErrMalformedRequest = errors.New("malformed signing request")
)

// BadStatusError carries a non-zero reply status. Message is the raw,
// still percent-encoded, MESSAGE field.
type BadStatusError struct {
	Code    int
	Message string
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("signing authority returned status %d: %s", e.Code, e.Message)
}

func (e *BadStatusError) Is(target error) bool {
	return target == ErrBadStatus
}
