/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/kentakayama/cryptex-over-http/internal/tss"
	"github.com/sirupsen/logrus"
)

const (
	maxRequestBodyBytes = 1 << 20 // signing requests are a few KiB
	replyContentType    = "text/plain; charset=utf-8"
)

// resolver answers one raw signing request body.
type resolver interface {
	Resolve(ctx context.Context, body []byte) []byte
}

type handler struct {
	authority   resolver
	metrics     http.Handler
	metricsPath string
	logger      *logrus.Logger
}

type responseSpec struct {
	status      int
	body        []byte
	contentType string
}

func newHandler(authority resolver, metrics http.Handler, metricsPath string, logger *logrus.Logger) *handler {
	return &handler{
		authority:   authority,
		metrics:     metrics,
		metricsPath: metricsPath,
		logger:      logger,
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.metrics != nil && r.URL.Path == h.metricsPath {
		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h.metrics.ServeHTTP(w, r)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case tss.ControllerPath:
		h.controller(w, r)
		return
	default:
		http.NotFound(w, r)
		return
	}
}

func (h *handler) controller(w http.ResponseWriter, r *http.Request) {
	if action := r.URL.Query().Get("action"); action != tss.ControllerAction {
		h.logger.WithField("action", action).Warn("unsupported controller action")
		http.Error(w, "unsupported action", http.StatusBadRequest)
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/xml" {
		h.logger.WithField("content_type", r.Header.Get("Content-Type")).Warn("content type mismatch")
		http.Error(w, "This endpoint only accepts Content-Type: text/xml", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		h.logger.WithError(err).Warn("failed reading request body")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if err := r.Body.Close(); err != nil {
		h.logger.WithError(err).Warn("failed closing request body")
		http.Error(w, "failed to close request body", http.StatusBadRequest)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"size":       len(body),
		"user_agent": r.UserAgent(),
	}).Debug("signing request")

	// rejections travel in the reply's STATUS field, not in the HTTP status
	h.writeResponse(w, responseSpec{
		status:      http.StatusOK,
		body:        h.authority.Resolve(r.Context(), body),
		contentType: replyContentType,
	})
}

func (h *handler) writeResponse(w http.ResponseWriter, spec responseSpec) {
	if len(spec.body) > 0 {
		for k, v := range defaultHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", spec.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(spec.body)))
		w.WriteHeader(spec.status)
		if _, err := w.Write(spec.body); err != nil {
			h.logger.WithError(err).Warn("failed writing response body")
		}
		return
	}

	w.WriteHeader(spec.status)
}

var defaultHeaders = map[string]string{
	"Cache-Control":           "no-store",
	"X-Content-Type-Options":  "nosniff",
	"Content-Security-Policy": "default-src 'none'",
	"Referrer-Policy":         "no-referrer",
}
