/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// TSSConfig captures the tunables of the signing authority client.
type TSSConfig struct {
	BaseURL     string
	UserAgent   string
	InsecureTLS bool
	Timeout     time.Duration
	Logger      *logrus.Logger
}

// SignerConfig captures the tunables of the bundle signer.
type SignerConfig struct {
	TSS TSSConfig
	// LedgerPath is the SQLite database recording issued tickets. Empty
	// disables the ledger.
	LedgerPath string
	Logger     *logrus.Logger
}

// AuthorityConfig captures the tunables required to start the development
// signing authority.
type AuthorityConfig struct {
	Addr string
	// KeyPath points at a CBOR encoded private COSE_Key. Empty selects the
	// embedded development key.
	KeyPath     string
	DBPath      string
	MetricsPath string
	Logger      *logrus.Logger
}
