/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package signer

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kentakayama/cryptex-over-http/internal/authority"
	"github.com/kentakayama/cryptex-over-http/internal/config"
	"github.com/kentakayama/cryptex-over-http/internal/cryptex"
	"github.com/kentakayama/cryptex-over-http/internal/img4"
	"github.com/kentakayama/cryptex-over-http/internal/server"
	"github.com/kentakayama/cryptex-over-http/internal/trustcache"
	"github.com/kentakayama/cryptex-over-http/internal/tss"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contentProvider treats a file's content as its cdhash.
type contentProvider struct{}

func (contentProvider) CDHash(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	if len(b) < trustcache.HashSize {
		return nil, false, nil
	}
	return b, true, nil
}

type fakeClient struct {
	calls  int
	ticket []byte
	err    error
	info   *cryptex.Info
	device *tss.DeviceInfo
}

func (f *fakeClient) Sign(_ context.Context, info *cryptex.Info, device *tss.DeviceInfo) ([]byte, error) {
	f.calls++
	f.info = info
	f.device = device
	return f.ticket, f.err
}

func testDevice() *tss.DeviceInfo {
	return &tss.DeviceInfo{
		ProductionMode: true,
		SecurityMode:   true,
		BoardID:        0x0c,
		ChipID:         0x8101,
		ECID:           0x001a2b3c4d5e6f70,
		SecurityDomain: tss.DefaultSecurityDomain,
		Nonce:          []byte("0123456789abcdef"),
	}
}

func writeProfile(t *testing.T, dir string) tss.ProfileSource {
	t.Helper()
	profile, err := tss.Profile(testDevice())
	require.Nil(t, err)
	path := filepath.Join(dir, "device.plist")
	require.Nil(t, os.WriteFile(path, profile, 0o644))
	return tss.ProfileSource{Path: path}
}

// prepare builds a bundle from a root holding two signed files and one
// unsigned file.
func prepare(t *testing.T, s *Signer, raw bool) (string, *cryptex.Info) {
	t.Helper()
	work := t.TempDir()
	root := filepath.Join(work, "root")
	require.Nil(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.Nil(t, os.WriteFile(filepath.Join(root, "bin", "a"), bytes.Repeat([]byte{0x02}, 32), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(root, "bin", "b"), bytes.Repeat([]byte{0x01}, 20), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(root, "README"), []byte("text"), 0o644))
	dmgPath := filepath.Join(work, "image.dmg")
	require.Nil(t, os.WriteFile(dmgPath, []byte("disk image"), 0o644))

	dir := filepath.Join(work, "bundle")
	info, err := s.Prepare(context.Background(), dir, PrepareOptions{
		Identifier: "com.example.cryptex",
		Version:    "1.0",
		DMGPath:    dmgPath,
		Root:       root,
		Raw:        raw,
	}, contentProvider{})
	require.Nil(t, err)
	return dir, info
}

func TestPrepare_WritesBundle(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewWithClient(&fakeClient{}, nil, logger)
	dir, info := prepare(t, s, false)

	b, err := cryptex.ReadBundle(dir)
	require.Nil(t, err)
	assert.False(t, b.Signed())
	assert.Equal(t, []byte("disk image"), b.DMG)

	c, err := img4.Decode(b.TrustCache)
	require.Nil(t, err)
	assert.Equal(t, img4.TypeTrustCache, c.Subtype)
	tc, err := trustcache.Parse(c.Payload)
	require.Nil(t, err)
	require.Len(t, tc.Entries, 2)
	assert.Equal(t, bytes.Repeat([]byte{0x01}, 20), tc.Entries[0].Hash[:])
	assert.True(t, tc.Contains(bytes.Repeat([]byte{0x02}, 32)))

	assert.Equal(t, "com.example.cryptex", info.Identifier)
	assert.Equal(t, "1.0", info.Version)
	assert.Equal(t, cryptex.Digest(b.TrustCache), info.TrustCacheDigest)
}

func TestPrepare_Raw(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewWithClient(&fakeClient{}, nil, logger)
	dir, _ := prepare(t, s, true)

	b, err := cryptex.ReadBundle(dir)
	require.Nil(t, err)
	tc, err := trustcache.Parse(b.TrustCache)
	require.Nil(t, err)
	assert.Len(t, tc.Entries, 2)
}

func TestPrepare_Errors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewWithClient(&fakeClient{}, nil, logger)
	work := t.TempDir()
	empty := filepath.Join(work, "empty.dmg")
	require.Nil(t, os.WriteFile(empty, nil, 0o644))

	_, err := s.Prepare(context.Background(), filepath.Join(work, "out"), PrepareOptions{
		DMGPath: empty,
		Root:    work,
	}, contentProvider{})
	assert.True(t, errors.Is(err, ErrEmptyDMG))

	dmg := filepath.Join(work, "image.dmg")
	require.Nil(t, os.WriteFile(dmg, []byte("disk image"), 0o644))
	_, err = s.Prepare(context.Background(), filepath.Join(work, "out"), PrepareOptions{
		DMGPath: dmg,
		Root:    filepath.Join(work, "missing"),
	}, contentProvider{})
	assert.True(t, errors.Is(err, trustcache.ErrDirectoryNotFound))

	_, err = os.Stat(filepath.Join(work, "out"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSign_WithFakeClient(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := &fakeClient{ticket: []byte("ticket")}
	s := NewWithClient(client, nil, logger)
	dir, info := prepare(t, s, false)
	src := writeProfile(t, t.TempDir())

	ticket, err := s.Sign(context.Background(), dir, src, SignOptions{})
	require.Nil(t, err)
	assert.Equal(t, []byte("ticket"), ticket)
	assert.Equal(t, info.DMGDigest, client.info.DMGDigest)
	assert.Equal(t, testDevice().ECID, client.device.ECID)

	stored, err := os.ReadFile(filepath.Join(dir, cryptex.FileTicket))
	require.Nil(t, err)
	assert.Equal(t, []byte("ticket"), stored)

	_, err = s.Sign(context.Background(), dir, src, SignOptions{})
	assert.True(t, errors.Is(err, ErrAlreadySigned))
	assert.Equal(t, 1, client.calls)

	client.ticket = []byte("ticket 2")
	_, err = s.Sign(context.Background(), dir, src, SignOptions{Force: true})
	require.Nil(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestSign_ClientError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := &fakeClient{err: &tss.BadStatusError{Code: 94, Message: "not%20allowed"}}
	s := NewWithClient(client, nil, logger)
	dir, _ := prepare(t, s, false)

	_, err := s.Sign(context.Background(), dir, writeProfile(t, t.TempDir()), SignOptions{})
	assert.True(t, errors.Is(err, tss.ErrBadStatus))

	_, err = os.Stat(filepath.Join(dir, cryptex.FileTicket))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSign_MissingBundle(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewWithClient(&fakeClient{}, nil, logger)
	_, err := s.Sign(context.Background(), filepath.Join(t.TempDir(), "nope"), writeProfile(t, t.TempDir()), SignOptions{})
	assert.True(t, errors.Is(err, cryptex.ErrBundleNotFound))
}

func TestSign_AgainstDevelopmentAuthority(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	srv, err := server.New(ctx, config.AuthorityConfig{Logger: logger})
	require.Nil(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	s, err := New(ctx, config.SignerConfig{
		TSS:        config.TSSConfig{BaseURL: ts.URL},
		LedgerPath: filepath.Join(t.TempDir(), "ledger.db"),
		Logger:     logger,
	})
	require.Nil(t, err)
	defer s.Close()

	dir, info := prepare(t, s, false)
	ticket, err := s.Sign(ctx, dir, writeProfile(t, t.TempDir()), SignOptions{})
	require.Nil(t, err)

	claims, err := authority.VerifyFor(ticket, srv.Authority().PublicKey(), info, testDevice())
	require.Nil(t, err)
	assert.Equal(t, "com.example.cryptex", claims.Name)

	latest, err := s.ledger.LatestTicket(ctx, testDevice().ECID, info.InfoPlistDigest, info.DMGDigest, info.TrustCacheDigest)
	require.Nil(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ticket, latest.Ticket)
}
