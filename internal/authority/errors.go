/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package authority

import "errors"

var (
	ErrKeyLoad           = errors.New("failed to load the authority signing key")
	ErrBadNonce          = errors.New("device nonce is not a valid EAT nonce")
	ErrKIDMismatch       = errors.New("ticket kid does not match the verification key")
	ErrNotATicket        = errors.New("not a development ticket")
	ErrTicketMismatch    = errors.New("ticket does not personalize the expected cryptex or device")
	ErrLedgerUnavailable = errors.New("ticket ledger unavailable")
)
