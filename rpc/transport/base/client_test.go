package base

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

// testServerConnector listens on plain TCP
type testServerConnector struct{}

func (testServerConnector) GetName() string { return "tcp" }

func (testServerConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	return net.Listen("tcp", config.Endpoint)
}

// countingConnector dials TCP and counts the dials. If gate is set every dial
// blocks until the gate is closed.
type countingConnector struct {
	dials   atomic.Int32
	gate    chan struct{}
	started chan struct{}
	dialer  net.Dialer
}

func (c *countingConnector) GetName() string { return "counting" }

func (c *countingConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	c.dials.Add(1)
	if c.started != nil {
		select {
		case c.started <- struct{}{}:
		default:
		}
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.dialer.DialContext(ctx, "tcp", endpoint)
}

func (c *countingConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// startEchoServer starts a server transport that answers every request with the request itself
func startEchoServer(t *testing.T) string {
	t.Helper()
	srv := NewBaseServerTransport(testServerConnector{}, 1024)
	srv.RegisterHandler(func(req []byte) []byte { return req })
	require.NoError(t, srv.Listen(common.ServerConfig{Endpoint: "127.0.0.1:0"}))
	t.Cleanup(func() { _ = srv.Close() })
	return srv.Addr().String()
}

// startRawServer accepts connections and hands them to the test
func startRawServer(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	conns := make(chan net.Conn, 16)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conns <- conn
		}
	}()
	t.Cleanup(func() {
		_ = listener.Close()
		for {
			select {
			case conn := <-conns:
				_ = conn.Close()
			default:
				return
			}
		}
	})
	return listener.Addr().String(), conns
}

// unusedEndpoint returns an address nobody listens on
func unusedEndpoint(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func testConfig(endpoint string) common.ClientConfig {
	return common.ClientConfig{
		Endpoint:      endpoint,
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			LazyConnect: true,
		},
	}.WithDefaults()
}

func newTestTransport(t *testing.T, connector IClientConnector, config common.ClientConfig) *clientTransport {
	t.Helper()
	tr := NewBaseClientTransport(connector).(*clientTransport)
	require.NoError(t, tr.Connect(config))
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// --------------------------------------------------------------------------
// Client Transport Tests
// --------------------------------------------------------------------------

func TestRoundTripEcho(t *testing.T) {
	addr := startEchoServer(t)
	connector := &countingConnector{}
	tr := newTestTransport(t, connector, testConfig(addr))

	for _, msg := range []string{"ListActors", "", `{"StopActor":{"id":"a"}}`} {
		resp, err := tr.RoundTrip(context.Background(), []byte(msg))
		require.NoError(t, err)
		assert.Equal(t, msg, string(resp))
	}

	// The connection is reused
	assert.Equal(t, int32(1), connector.dials.Load())
}

func TestRoundTripSingleExchange(t *testing.T) {
	addr, conns := startRawServer(t)
	tr := newTestTransport(t, &countingConnector{}, testConfig(addr))

	type result struct {
		resp []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := tr.RoundTrip(context.Background(), []byte("ping"))
		done <- result{resp, err}
	}()

	server := <-conns
	defer server.Close()

	// Exactly one request frame arrives
	req, err := readFrame(server, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(req))

	require.NoError(t, writeFrame(server, []byte("pong"), 0))

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "pong", string(res.resp))

	// Nothing else was sent
	require.NoError(t, server.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	var one [1]byte
	_, err = server.Read(one[:])
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestConnectEagerFailsWithDialError(t *testing.T) {
	config := testConfig(unusedEndpoint(t))
	config.Transport.LazyConnect = false

	tr := NewBaseClientTransport(&countingConnector{})
	err := tr.Connect(config)

	var dialErr *common.DialError
	require.ErrorAs(t, err, &dialErr)
	assert.Equal(t, config.Endpoint, dialErr.Endpoint)
	assert.True(t, common.IsRetryable(err))
}

func TestRoundTripBeforeConnect(t *testing.T) {
	tr := NewBaseClientTransport(&countingConnector{})
	_, err := tr.RoundTrip(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, common.ErrNotConnected)
}

func TestRoundTripAfterClose(t *testing.T) {
	addr := startEchoServer(t)
	tr := newTestTransport(t, &countingConnector{}, testConfig(addr))
	require.NoError(t, tr.Close())

	_, err := tr.RoundTrip(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, common.ErrTransportClosed)
}

func TestRoundTripClearsSlotOnError(t *testing.T) {
	addr, conns := startRawServer(t)
	connector := &countingConnector{}
	tr := newTestTransport(t, connector, testConfig(addr))

	// The server reads the request and hangs up without answering
	go func() {
		server := <-conns
		_, _ = readFrame(server, nil, 0)
		_ = server.Close()
	}()

	_, err := tr.RoundTrip(context.Background(), []byte("ping"))
	var transportErr *common.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "read", transportErr.Op)
	assert.True(t, common.IsRetryable(err))

	tr.slot.mu.Lock()
	assert.Nil(t, tr.slot.conn, "slot must be cleared after an I/O error")
	tr.slot.mu.Unlock()

	// The next round trip dials again
	go func() {
		server := <-conns
		defer server.Close()
		req, err := readFrame(server, nil, 0)
		if err == nil {
			_ = writeFrame(server, req, 0)
		}
	}()
	resp, err := tr.RoundTrip(context.Background(), []byte("again"))
	require.NoError(t, err)
	assert.Equal(t, "again", string(resp))
	assert.Equal(t, int32(2), connector.dials.Load())
}

func TestRoundTripRejectsOversizedRequest(t *testing.T) {
	addr := startEchoServer(t)
	config := testConfig(addr)
	config.Transport.MaxFrameSize = 8
	tr := newTestTransport(t, &countingConnector{}, config)

	_, err := tr.RoundTrip(context.Background(), []byte("way too large"))
	assert.ErrorIs(t, err, common.ErrFrameTooLarge)
	assert.False(t, common.IsRetryable(err))

	// The connection is still usable
	resp, err := tr.RoundTrip(context.Background(), []byte("small"))
	require.NoError(t, err)
	assert.Equal(t, "small", string(resp))
}

func TestRoundTripHonoursContext(t *testing.T) {
	addr, conns := startRawServer(t)
	tr := newTestTransport(t, &countingConnector{}, testConfig(addr))

	// The server never answers
	go func() {
		server := <-conns
		_, _ = readFrame(server, nil, 0)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tr.RoundTrip(ctx, []byte("ping"))
	var transportErr *common.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRoundTripDialError(t *testing.T) {
	tr := newTestTransport(t, &countingConnector{}, testConfig(unusedEndpoint(t)))

	_, err := tr.RoundTrip(context.Background(), []byte("x"))
	var dialErr *common.DialError
	require.ErrorAs(t, err, &dialErr)
	assert.False(t, tr.slot.IsReconnecting(), "flag must be released after a failed dial")
}

func TestConcurrentRoundTripsAreSerialized(t *testing.T) {
	addr := startEchoServer(t)
	connector := &countingConnector{}
	tr := newTestTransport(t, connector, testConfig(addr))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := []byte{byte(i)}
			resp, err := tr.RoundTrip(context.Background(), msg)
			if err != nil {
				errs <- err
				return
			}
			if resp[0] != byte(i) {
				errs <- errors.New("response belongs to another request")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, int32(1), connector.dials.Load())
}
