package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/backoffice/internal/health"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func waitForServer(t *testing.T, url string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMetricsServerProbes(t *testing.T) {
	storageDown := errors.New("connection refused")
	var storageFailing atomic.Bool

	handler := health.NewHandler("test")
	handler.RegisterChecker("storage", health.NewSimpleChecker("storage", func(context.Context) error {
		if storageFailing.Load() {
			return storageDown
		}
		return nil
	}))
	handler.RegisterChecker("redis", health.NewOptionalPingChecker("redis", pingerFunc(func(context.Context) error { return storageDown })))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := freeAddr(t)
	startMetricsServer(ctx, addr, log.WithField("test", "metrics"), handler)
	base := "http://" + addr
	waitForServer(t, base+"/livez")

	code, body := get(t, base+"/livez")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)

	code, _ = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)

	code, body = get(t, base+"/readyz")
	require.Equal(t, http.StatusOK, code, "degraded redis must not block readiness")
	require.Equal(t, "ready", body)

	code, body = get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"degraded"`)

	storageFailing.Store(true)
	code, _ = get(t, base+"/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMetricsServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	addr := freeAddr(t)
	startMetricsServer(ctx, addr, log.WithField("test", "metrics-stop"), health.NewHandler("test"))
	waitForServer(t, "http://"+addr+"/livez")

	cancel()
	require.Eventually(t, func() bool {
		_, err := http.Get("http://" + addr + "/livez")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestShutdownHTTP(t *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "nil"))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	shutdownHTTP(srv, log.WithField("test", "shutdown"))
	select {
	case err := <-done:
		require.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
