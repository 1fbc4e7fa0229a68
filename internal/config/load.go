/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DefaultTSSURL        = "http://gs.apple.com"
	DefaultUserAgent     = "cryptex-over-http/0.1.0"
	DefaultTimeout       = 60 * time.Second
	DefaultAuthorityAddr = "127.0.0.1:8080"
	DefaultMetricsPath   = "/metrics"
	EnvPrefix            = "CRYPTEX"
)

// Settings is the flat view of the configuration file and the CRYPTEX_*
// environment, e.g. CRYPTEX_TSS_URL overrides tss.url.
type Settings struct {
	LogLevel         string
	TSSURL           string
	TSSUserAgent     string
	TSSTimeout       time.Duration
	TSSInsecureTLS   bool
	LedgerPath       string
	AuthorityAddr    string
	AuthorityKeyPath string
	AuthorityDBPath  string
	MetricsPath      string
}

// Load reads the optional configuration file at path (any format viper
// understands) on top of the defaults, then applies environment overrides.
func Load(path string) (*Settings, error) {
	options := viper.New()
	options.SetDefault("log_level", "info")
	options.SetDefault("tss.url", DefaultTSSURL)
	options.SetDefault("tss.user_agent", DefaultUserAgent)
	options.SetDefault("tss.timeout", DefaultTimeout)
	options.SetDefault("tss.insecure_tls", false)
	options.SetDefault("ledger.path", "")
	options.SetDefault("authority.addr", DefaultAuthorityAddr)
	options.SetDefault("authority.key", "")
	options.SetDefault("authority.db", ":memory:")
	options.SetDefault("authority.metrics_path", DefaultMetricsPath)

	options.SetEnvPrefix(EnvPrefix)
	options.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	options.AutomaticEnv()

	if path != "" {
		options.SetConfigFile(path)
		if err := options.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return &Settings{
		LogLevel:         options.GetString("log_level"),
		TSSURL:           options.GetString("tss.url"),
		TSSUserAgent:     options.GetString("tss.user_agent"),
		TSSTimeout:       options.GetDuration("tss.timeout"),
		TSSInsecureTLS:   options.GetBool("tss.insecure_tls"),
		LedgerPath:       options.GetString("ledger.path"),
		AuthorityAddr:    options.GetString("authority.addr"),
		AuthorityKeyPath: options.GetString("authority.key"),
		AuthorityDBPath:  options.GetString("authority.db"),
		MetricsPath:      options.GetString("authority.metrics_path"),
	}, nil
}

func (s *Settings) SignerConfig(logger *logrus.Logger) SignerConfig {
	return SignerConfig{
		TSS: TSSConfig{
			BaseURL:     s.TSSURL,
			UserAgent:   s.TSSUserAgent,
			InsecureTLS: s.TSSInsecureTLS,
			Timeout:     s.TSSTimeout,
			Logger:      logger,
		},
		LedgerPath: s.LedgerPath,
		Logger:     logger,
	}
}

func (s *Settings) AuthorityConfig(logger *logrus.Logger) AuthorityConfig {
	return AuthorityConfig{
		Addr:        s.AuthorityAddr,
		KeyPath:     s.AuthorityKeyPath,
		DBPath:      s.AuthorityDBPath,
		MetricsPath: s.MetricsPath,
		Logger:      logger,
	}
}

// NewLogger returns a text logger at the named level. Unknown names fall
// back to info.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
