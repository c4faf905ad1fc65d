package client

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kysee/randbeacon/xerrors"
)

const (
	testInfoBody = `{
		"public_key": "868f005eb8e6e4ca0a47c8a77ceaa5309a47978a7c71bc5cce96366b5d7a569937c529eeda66c7293784a9402801af31",
		"period": 30,
		"genesis_time": 1595431050,
		"hash": "8990e7a9aaed2ffed73dbd7092123d6f289930540d7651336225dc172e51b2ce",
		"groupHash": "176f93498eac9ca337150b46d21dd58673ea4e3581185f869672e59fa4cb390a"
	}`
	testLatestBody = `{
		"round": 1,
		"randomness": "d0ddf7852e2f4e9f3024cf2dc03c3e856554593cdfb66645e7e774d7614088bc",
		"signature": "f5b7b5941b9f880f775a2062f52c8790c1d31ff9eca896a6f57bdb1630ec425480a8b6ddff4f5d08f4ad9717bae8afaec2e3dc6d59671513355047ad23528934389896db6b904fb2a9cda02d914dc1b44ac02ce5ae2662779a463bc52c8060b3",
		"previous_signature": "176f93498eac9ca337150b46d21dd58673ea4e3581185f869672e59fa4cb390a"
	}`
)

func testBeaconServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testInfoBody))
	})
	mux.HandleFunc("/public/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testLatestBody))
	})
	mux.HandleFunc("/public/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testLatestBody))
	})
	return httptest.NewServer(mux)
}

func TestClient_getBeforeBoot(t *testing.T) {
	c := FromConfig(NewConfig())
	_, err := c.Get(t.Context(), nil)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.Fatal))
}

func TestClient_bootEmptyPool(t *testing.T) {
	c := FromConfig(NewConfig())
	err := c.Boot(t.Context(), nil)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.Invalid))
}

func TestClient_bootAndGet_singleEndpoint(t *testing.T) {
	srv := testBeaconServer(t)
	defer srv.Close()

	cfg := NewConfig()
	cfg.RequestTimeout = 2 * time.Second
	c := FromConfig(cfg)
	require.NoError(t, c.AddEndpoint(srv.URL))
	require.NoError(t, c.Boot(t.Context(), nil))

	info, err := c.Info()
	require.NoError(t, err)
	require.NotNil(t, info)

	r, err := c.Get(t.Context(), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.Round)
}

func TestClient_bootCrossValidatesMultipleEndpoints(t *testing.T) {
	srv1 := testBeaconServer(t)
	defer srv1.Close()
	srv2 := testBeaconServer(t)
	defer srv2.Close()

	c := FromConfig(NewConfig())
	require.NoError(t, c.AddEndpoint(srv1.URL))
	require.NoError(t, c.AddEndpoint(srv2.URL))
	require.NoError(t, c.Boot(t.Context(), nil))
}

func TestClient_bootTwiceRejected(t *testing.T) {
	srv := testBeaconServer(t)
	defer srv.Close()

	c := FromConfig(NewConfig())
	require.NoError(t, c.AddEndpoint(srv.URL))
	require.NoError(t, c.Boot(t.Context(), nil))
	err := c.Boot(t.Context(), nil)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.Invalid))
}

func TestClient_addEndpointAfterBootRejected(t *testing.T) {
	srv := testBeaconServer(t)
	defer srv.Close()

	c := FromConfig(NewConfig())
	require.NoError(t, c.AddEndpoint(srv.URL))
	require.NoError(t, c.Boot(t.Context(), nil))
	err := c.AddEndpoint(srv.URL)
	require.Error(t, err)
}

func TestClient_nameBeforeBoot(t *testing.T) {
	c := FromConfig(NewConfig())
	require.Equal(t, "unbooted", c.Name())
}

func TestClient_getServesCheckpointWithoutNetworkCall(t *testing.T) {
	var roundCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testInfoBody))
	})
	mux.HandleFunc("/public/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testLatestBody))
	})
	mux.HandleFunc("/public/1", func(w http.ResponseWriter, r *http.Request) {
		roundCalls.Add(1)
		w.Write([]byte(testLatestBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := NewConfig()
	cfg.Secure = true
	c := FromConfig(cfg)
	require.NoError(t, c.AddEndpoint(srv.URL))
	require.NoError(t, c.Boot(t.Context(), nil))
	require.Equal(t, int32(0), roundCalls.Load())

	one := uint64(1)
	r, err := c.Get(t.Context(), &one)
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.Round)
	require.Equal(t, int32(0), roundCalls.Load())
}

func TestClient_getRejectsRoundZero(t *testing.T) {
	srv := testBeaconServer(t)
	defer srv.Close()

	c := FromConfig(NewConfig())
	require.NoError(t, c.AddEndpoint(srv.URL))
	require.NoError(t, c.Boot(t.Context(), nil))

	zero := uint64(0)
	_, err := c.Get(t.Context(), &zero)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.Invalid))
}
