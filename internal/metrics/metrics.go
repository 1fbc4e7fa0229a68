/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const ApplicationName = "cryptex-over-http"

var BinaryName = ApplicationName

func init() {
	BinaryName = filepath.Base(os.Args[0])
}

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport_error"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed_reply"
)

var SigningExchangeCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name:        "cryptex_signing_exchange_count",
		Help:        "signing exchanges with the signing authority by outcome",
		ConstLabels: prometheus.Labels{"service": ApplicationName, "component": BinaryName},
	},
	[]string{"outcome"},
)

var SigningExchangeDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:        "cryptex_signing_exchange_duration",
		Help:        "signing exchange round trip duration (in ms)",
		ConstLabels: prometheus.Labels{"service": ApplicationName, "component": BinaryName},
		Buckets:     []float64{20, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	},
)

var TicketIssuedCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name:        "cryptex_ticket_issued_count",
		Help:        "tickets issued by the development signing authority by status",
		ConstLabels: prometheus.Labels{"service": ApplicationName, "component": BinaryName},
	},
	[]string{"status"},
)

var TrustCacheEntries = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:        "cryptex_trust_cache_entries",
		Help:        "number of entries in built trust caches",
		ConstLabels: prometheus.Labels{"service": ApplicationName, "component": BinaryName},
		Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
	},
)
