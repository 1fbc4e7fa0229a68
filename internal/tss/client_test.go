/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tss

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kentakayama/cryptex-over-http/internal/config"
	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/plist"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	client, err := NewClient(config.TSSConfig{
		BaseURL:   baseURL,
		UserAgent: "cryptex-test/1.0",
		Timeout:   5 * time.Second,
		Logger:    logger,
	})
	require.Nil(t, err)
	return client
}

func TestClient_Sign(t *testing.T) {
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	device := testDevice()
	ticket := []byte("personalized ticket")

	var received plist.Dict
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/TSS/controller", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("action"))
		assert.Equal(t, `text/xml; charset="utf-8"`, r.Header.Get("Content-Type"))
		assert.Equal(t, "cryptex-test/1.0", r.Header.Get("User-Agent"))

		body, err := io.ReadAll(r.Body)
		assert.Nil(t, err)
		received, err = plist.UnmarshalDict(body)
		assert.Nil(t, err)

		reply, err := TicketReply(ticket)
		assert.Nil(t, err)
		w.Write(reply)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	got, err := client.Sign(context.Background(), info, device)
	require.Nil(t, err)
	assert.Equal(t, ticket, got)
	assert.True(t, received.Equal(BuildRequest(info, device)))
}

func TestClient_Sign_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("STATUS=94&MESSAGE=This%20device%20isn%27t%20eligible"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	_, err := client.Sign(context.Background(), info, testDevice())

	var bad *BadStatusError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, 94, bad.Code)
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestClient_Sign_ParsesBodyOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	_, err := client.Sign(context.Background(), info, testDevice())
	assert.True(t, errors.Is(err, ErrEmptyReply))
}

func TestClient_Sign_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client := newTestClient(t, baseURL)
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	_, err := client.Sign(context.Background(), info, testDevice())
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestClient_Sign_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL)
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))
	_, err := client.Sign(ctx, info, testDevice())
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_ConcurrentExchangesDoNotShareResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req, err := plist.UnmarshalDict(body)
		if err != nil {
			w.Write([]byte("STATUS=1&MESSAGE=BadRequest"))
			return
		}
		nonce, _ := req.GetData(KeyApNonce)
		reply, _ := TicketReply(nonce)
		w.Write(reply)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	info := cryptex.NewInfo("com.example.cryptex", "1.0", []byte("dmg"), []byte("tc"))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			device := testDevice()
			device.Nonce = []byte{byte(i), 0x55}
			got, err := client.Sign(context.Background(), info, device)
			assert.Nil(t, err)
			assert.Equal(t, []byte{byte(i), 0x55}, got)
		}()
	}
	wg.Wait()
}

func TestNewClient_Endpoint(t *testing.T) {
	client, err := NewClient(config.TSSConfig{})
	require.Nil(t, err)
	assert.Equal(t, "http://gs.apple.com/TSS/controller?action=2", client.Endpoint())

	client, err = NewClient(config.TSSConfig{BaseURL: "http://127.0.0.1:8080/ignored/path"})
	require.Nil(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/TSS/controller?action=2", client.Endpoint())

	_, err = NewClient(config.TSSConfig{BaseURL: "http://[::1"})
	assert.NotNil(t, err)
}
