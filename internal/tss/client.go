/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tss

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kentakayama/cryptex-over-http/internal/config"
	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/metrics"
	"github.com/kentakayama/cryptex-over-http/internal/plist"
	"github.com/sirupsen/logrus"
)

const (
	ControllerPath     = "/TSS/controller"
	ControllerAction   = "2"
	RequestContentType = `text/xml; charset="utf-8"`

	maxReplySize = 16 << 20
)

type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	userAgent  string
	logger     *logrus.Logger
}

func NewClient(cfg config.TSSConfig) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultTSSURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse signing authority URL: %w", err)
	}
	endpoint, err := base.Parse(ControllerPath)
	if err != nil {
		return nil, fmt.Errorf("build controller URL: %w", err)
	}
	query := endpoint.Query()
	query.Set("action", ControllerAction)
	endpoint.RawQuery = query.Encode()

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultTimeout
	}

	transport := &http.Transport{}
	if base.Scheme == "https" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureTLS}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: userAgent,
		logger:    logger,
	}, nil
}

// Endpoint returns the controller URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Sign requests a ticket personalizing info for device.
func (c *Client) Sign(ctx context.Context, info *cryptex.Info, device *DeviceInfo) ([]byte, error) {
	c.logger.WithFields(logrus.Fields{
		"identifier": info.Identifier,
		"version":    info.Version,
		"ecid":       fmt.Sprintf("0x%x", device.ECID),
	}).Info("requesting cryptex ticket")
	return c.SignRequest(ctx, BuildRequest(info, device))
}

type exchangeResult struct {
	body []byte
	err  error
}

// SignRequest performs one signing exchange with a prepared request. The
// transport runs on its own goroutine and hands exactly one result back
// through a channel owned by this call; there is no retry.
func (c *Client) SignRequest(ctx context.Context, req plist.Dict) ([]byte, error) {
	encoded, err := plist.MarshalDict(req)
	if err != nil {
		return nil, fmt.Errorf("encode signing request: %w", err)
	}

	started := time.Now()
	results := make(chan exchangeResult, 1)
	go func() {
		body, err := c.post(ctx, encoded)
		results <- exchangeResult{body: body, err: err}
	}()
	res := <-results
	metrics.SigningExchangeDuration.Observe(float64(time.Since(started).Milliseconds()))

	if res.err != nil {
		metrics.SigningExchangeCount.WithLabelValues(metrics.OutcomeTransport).Inc()
		return nil, fmt.Errorf("%w: %w", ErrTransport, res.err)
	}

	ticket, err := ParseReply(res.body)
	if err != nil {
		var bad *BadStatusError
		if errors.As(err, &bad) {
			metrics.SigningExchangeCount.WithLabelValues(metrics.OutcomeRejected).Inc()
			c.logger.WithFields(logrus.Fields{"status": bad.Code, "message": bad.Message}).Warn("signing request rejected")
		} else {
			metrics.SigningExchangeCount.WithLabelValues(metrics.OutcomeMalformed).Inc()
		}
		return nil, err
	}

	metrics.SigningExchangeCount.WithLabelValues(metrics.OutcomeSuccess).Inc()
	c.logger.WithField("size", len(ticket)).Debug("received ticket")
	return ticket, nil
}

// post returns the reply body whatever the HTTP status; the reply grammar
// decides about success.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", RequestContentType)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("http_status", resp.Status).Warn("unexpected HTTP status from signing authority")
	}

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return reply, nil
}
