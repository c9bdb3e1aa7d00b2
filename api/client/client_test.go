package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileledger/api/server"
	"fileledger/core/chain"
	"fileledger/core/integrity"
)

func startNode(t *testing.T, secret string, genesis bool) *httptest.Server {
	t.Helper()
	c, err := chain.New(chain.Options{Difficulty: 1})
	require.NoError(t, err)
	if genesis {
		_, err = c.CreateGenesis()
		require.NoError(t, err)
	}
	srv, err := server.NewServer(server.Options{
		Service:   integrity.NewService(c),
		JWTSecret: secret,
		UploadDir: filepath.Join(t.TempDir(), "uploads"),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_HealthAndStatus(t *testing.T) {
	ts := startNode(t, "", true)
	c := New(ts.URL + "/")
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 1, h.Metrics.BlockHeight)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, server.NodeVersion(), st.Version)
	assert.False(t, st.AuthEnabled)

	alive, err := c.Liveness(ctx)
	require.NoError(t, err)
	assert.True(t, alive)

	ready, err := c.Readiness(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBlocks)
}

func TestClient_NotReady(t *testing.T) {
	ts := startNode(t, "", false)
	ready, err := New(ts.URL).Readiness(context.Background())
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestClient_Token(t *testing.T) {
	ts := startNode(t, "s3cret", true)
	ctx := context.Background()

	_, err := New(ts.URL).Stats(ctx)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "401")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	stats, err := New(ts.URL, WithToken(tok), WithHTTPClient(http.DefaultClient)).Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBlocks)
}

func TestClient_Unreachable(t *testing.T) {
	ts := startNode(t, "", true)
	addr := ts.URL
	ts.Close()
	_, err := New(addr).Liveness(context.Background())
	assert.Error(t, err)
}
