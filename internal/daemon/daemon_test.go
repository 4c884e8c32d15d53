package daemon

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpRunner struct {
	srv *http.Server
}

func newHTTPRunner(addr string) *httpRunner {
	return &httpRunner{srv: &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "ok")
		}),
	}}
}

func (h *httpRunner) Addr() string                       { return h.srv.Addr }
func (h *httpRunner) Serve(l net.Listener) error         { return h.srv.Serve(l) }
func (h *httpRunner) Shutdown(ctx context.Context) error { return h.srv.Shutdown(ctx) }

func TestProgram_StartStop(t *testing.T) {
	p := NewProgram(newHTTPRunner("127.0.0.1:0"), 5*time.Second)
	assert.Nil(t, p.ListenAddr())
	assert.Nil(t, p.Done())

	require.NoError(t, p.Start(nil))
	addr := p.ListenAddr()
	require.NotNil(t, addr)

	resp, err := http.Get("http://" + addr.String())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, p.Stop(nil))
	select {
	case err := <-p.Done():
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = http.Get("http://" + addr.String())
	assert.Error(t, err)
}

func TestProgram_StartReportsBindFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	p := NewProgram(newHTTPRunner(l.Addr().String()), time.Second)
	err = p.Start(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
	assert.Nil(t, p.ListenAddr())
}

func TestConfig(t *testing.T) {
	cfg := Config("keycal-calendar", "Keycal Calendar", "Calendar service")
	assert.Equal(t, "keycal-calendar", cfg.Name)
	assert.Equal(t, "Keycal Calendar", cfg.DisplayName)
	assert.Equal(t, "Calendar service", cfg.Description)
}

func TestRun_UnknownAction(t *testing.T) {
	p := NewProgram(newHTTPRunner("127.0.0.1:0"), time.Second)
	err := Run(Config("keycal-test", "Keycal Test", "test"), p, "explode")
	assert.Error(t, err)
	assert.Nil(t, p.ListenAddr(), "control errors never start the server")
}

func TestControl_UnknownAction(t *testing.T) {
	err := Control(Config("keycal-test", "Keycal Test", "test"), "explode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service action")
}

func TestIsControl(t *testing.T) {
	assert.False(t, IsControl(""))
	assert.False(t, IsControl(ActionRun))
	assert.True(t, IsControl("install"))
	assert.True(t, IsControl("bogus"))
}
