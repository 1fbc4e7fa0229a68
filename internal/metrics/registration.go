/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterSignerMetrics registers the client side collectors.
func RegisterSignerMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		SigningExchangeCount,
		SigningExchangeDuration,
		TrustCacheEntries,
	)
}

// RegisterAuthorityMetrics registers the development authority collectors.
func RegisterAuthorityMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		TicketIssuedCount,
	)
}
