/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	require.Nil(t, err)

	assert.Equal(t, DefaultTSSURL, s.TSSURL)
	assert.Equal(t, DefaultTimeout, s.TSSTimeout)
	assert.Equal(t, DefaultAuthorityAddr, s.AuthorityAddr)
	assert.Equal(t, ":memory:", s.AuthorityDBPath)
	assert.Equal(t, "", s.LedgerPath)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cryptex.yaml")
	content := []byte("log_level: debug\ntss:\n  url: http://127.0.0.1:9999\n  timeout: 5s\nledger:\n  path: /tmp/ledger.db\n")
	require.Nil(t, os.WriteFile(path, content, 0o644))

	t.Setenv("CRYPTEX_TSS_URL", "http://tss.example")

	s, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "http://tss.example", s.TSSURL)
	assert.Equal(t, 5*time.Second, s.TSSTimeout)
	assert.Equal(t, "/tmp/ledger.db", s.LedgerPath)

	logger := NewLogger(s.LogLevel)
	cfg := s.SignerConfig(logger)
	assert.Equal(t, "http://tss.example", cfg.TSS.BaseURL)
	assert.Same(t, logger, cfg.TSS.Logger)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
}

func TestNewLogger_Levels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("DEBUG").GetLevel())
	assert.Equal(t, logrus.WarnLevel, NewLogger("warn").GetLevel())
	assert.Equal(t, logrus.ErrorLevel, NewLogger("error").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("chatty").GetLevel())
}
