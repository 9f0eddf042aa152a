package testutils

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/relite/internal/hub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// WriteConfig writes content to a file named name in a temporary directory
// and returns its path. It fails the test immediately on error.
func WriteConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to write config")
	return path
}

// StartHub serves a hub with a private metrics registry for the duration of the test.
func StartHub(t *testing.T, opts ...hub.Option) (*hub.Hub, *hub.Client, *httptest.Server) {
	t.Helper()

	opts = append([]hub.Option{hub.WithRegistry(prometheus.NewRegistry())}, opts...)
	h := hub.New(opts...)
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	return h, hub.NewClient(srv.URL, srv.Client()), srv
}

// WSURL returns the websocket endpoint of a hub server.
func WSURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}
