package client

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/serializer"
	"github.com/ValentinKolb/theaterctl/rpc/transport/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

// fakeTransport answers round trips with a script
type fakeTransport struct {
	mu       sync.Mutex
	requests [][]byte
	script   func(call int, req []byte) ([]byte, error)
}

func (f *fakeTransport) Connect(common.ClientConfig) error { return nil }

func (f *fakeTransport) RoundTrip(_ context.Context, req []byte) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, append([]byte(nil), req...))
	call := len(f.requests)
	f.mu.Unlock()
	return f.script(call, req)
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

var (
	actorListResp = []byte(`{"ActorList":{"actors":["a"]}}`)
	writeFailure  = &common.TransportError{Op: "write", Err: io.ErrClosedPipe}
)

// newTestExecutor returns an executor whose backoff sleeps are recorded instead of slept
func newTestExecutor(tr *fakeTransport, maxAttempts int) (*Executor, *[]time.Duration) {
	config := common.ClientConfig{
		Transport: common.ClientTransportConfig{MaxAttempts: maxAttempts},
	}
	e := NewExecutor(config, tr, serializer.NewJSONSerializer())

	var delays []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return e, &delays
}

// countingConnector dials TCP and counts the dials
type countingConnector struct {
	dials  atomic.Int32
	dialer net.Dialer
}

func (c *countingConnector) GetName() string { return "counting" }

func (c *countingConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	c.dials.Add(1)
	return c.dialer.DialContext(ctx, "tcp", endpoint)
}

func (c *countingConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// --------------------------------------------------------------------------
// Executor Tests
// --------------------------------------------------------------------------

func TestSendHealthyTransport(t *testing.T) {
	tr := &fakeTransport{script: func(int, []byte) ([]byte, error) { return actorListResp, nil }}
	e, delays := newTestExecutor(tr, 3)

	resp, err := e.Send(context.Background(), common.NewCommand(common.CmdListActors, nil))
	require.NoError(t, err)
	assert.Equal(t, common.RespActorList, resp.Kind)
	assert.JSONEq(t, `{"actors":["a"]}`, string(resp.Body))

	assert.Equal(t, 1, tr.calls())
	assert.Equal(t, `"ListActors"`, string(tr.requests[0]))
	assert.Empty(t, *delays)
}

func TestSendRetriesWithBackoff(t *testing.T) {
	tr := &fakeTransport{script: func(call int, _ []byte) ([]byte, error) {
		if call <= 2 {
			return nil, writeFailure
		}
		return actorListResp, nil
	}}
	e, delays := newTestExecutor(tr, 3)

	resp, err := e.Send(context.Background(), common.NewCommand(common.CmdListActors, nil))
	require.NoError(t, err)
	assert.Equal(t, common.RespActorList, resp.Kind)

	assert.Equal(t, 3, tr.calls())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *delays)

	// The command is serialized once and sent unchanged on every attempt
	assert.Equal(t, tr.requests[0], tr.requests[2])
}

func TestSendBackoffMultiplier(t *testing.T) {
	tr := &fakeTransport{script: func(int, []byte) ([]byte, error) { return nil, writeFailure }}
	config := common.ClientConfig{
		Transport: common.ClientTransportConfig{
			MaxAttempts:       4,
			InitialBackoffMs:  100,
			BackoffMultiplier: 3,
		},
	}
	e := NewExecutor(config, tr, serializer.NewJSONSerializer())
	var delays []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := e.Send(context.Background(), common.NewCommand(common.CmdListActors, nil))
	require.Error(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 900 * time.Millisecond}, delays)
}

func TestSendAttemptsExhausted(t *testing.T) {
	tests := []struct {
		name    string
		failure error
		message string
	}{
		{
			name:    "transport failure",
			failure: writeFailure,
			message: "failed to send command after 3 attempts",
		},
		{
			name:    "dial failure",
			failure: &common.DialError{Endpoint: "127.0.0.1:1", Err: errors.New("connection refused")},
			message: "could not establish connection after 3 attempts",
		},
		{
			name:    "reconnect in progress",
			failure: common.ErrReconnectInProgress,
			message: "could not establish connection after 3 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{script: func(int, []byte) ([]byte, error) { return nil, tt.failure }}
			e, delays := newTestExecutor(tr, 3)

			_, err := e.Send(context.Background(), common.NewCommand(common.CmdListActors, nil))

			var exhausted *common.AttemptsExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, 3, exhausted.Attempts)
			assert.ErrorIs(t, err, tt.failure)
			assert.Contains(t, err.Error(), tt.message)

			assert.Equal(t, 3, tr.calls())
			assert.Len(t, *delays, 2, "no sleep after the last attempt")
		})
	}
}

func TestServerErrorIsNotRetried(t *testing.T) {
	tr := &fakeTransport{script: func(int, []byte) ([]byte, error) {
		return []byte(`{"Error":{"message":"actor not found"}}`), nil
	}}
	e, delays := newTestExecutor(tr, 3)

	_, err := e.Send(context.Background(), common.NewCommand(common.CmdStopActor, map[string]any{"id": "x"}))

	var serverErr *common.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "actor not found", serverErr.Message)
	assert.Equal(t, 1, tr.calls())
	assert.Empty(t, *delays)
}

func TestDecodeErrorIsRetried(t *testing.T) {
	tr := &fakeTransport{script: func(call int, _ []byte) ([]byte, error) {
		if call == 1 {
			return []byte(`{"truncated":`), nil
		}
		return actorListResp, nil
	}}
	e, delays := newTestExecutor(tr, 3)

	resp, err := e.Send(context.Background(), common.NewCommand(common.CmdListActors, nil))
	require.NoError(t, err)
	assert.Equal(t, common.RespActorList, resp.Kind)
	assert.Equal(t, 2, tr.calls())
	assert.Len(t, *delays, 1)
}

func TestNonRetryableErrorIsReturned(t *testing.T) {
	tr := &fakeTransport{script: func(int, []byte) ([]byte, error) { return nil, common.ErrFrameTooLarge }}
	e, _ := newTestExecutor(tr, 3)

	_, err := e.Send(context.Background(), common.NewCommand(common.CmdListActors, nil))
	assert.ErrorIs(t, err, common.ErrFrameTooLarge)
	assert.Equal(t, 1, tr.calls())
}

func TestSendCancelledDuringBackoff(t *testing.T) {
	tr := &fakeTransport{script: func(int, []byte) ([]byte, error) { return nil, writeFailure }}
	e := NewExecutor(common.ClientConfig{
		Transport: common.ClientTransportConfig{InitialBackoffMs: 10_000},
	}, tr, serializer.NewJSONSerializer())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Send(ctx, common.NewCommand(common.CmdListActors, nil))

	var exhausted *common.AttemptsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSendWithDoneContext(t *testing.T) {
	tr := &fakeTransport{script: func(int, []byte) ([]byte, error) { return actorListResp, nil }}
	e, _ := newTestExecutor(tr, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Send(ctx, common.NewCommand(common.CmdListActors, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tr.calls())
}

func TestSendWithoutListener(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the real backoff")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := listener.Addr().String()
	require.NoError(t, listener.Close())

	connector := &countingConnector{}
	config := common.ClientConfig{
		Endpoint: endpoint,
		Transport: common.ClientTransportConfig{
			MaxAttempts: 3,
			LazyConnect: true,
		},
	}
	tr := base.NewBaseClientTransport(connector)
	require.NoError(t, tr.Connect(config.WithDefaults()))
	defer tr.Close()

	e := NewExecutor(config, tr, serializer.NewJSONSerializer())

	start := time.Now()
	_, err = e.Send(context.Background(), common.NewCommand(common.CmdListActors, nil))
	elapsed := time.Since(start)

	var exhausted *common.AttemptsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Contains(t, err.Error(), "could not establish connection after 3 attempts")

	var dialErr *common.DialError
	assert.ErrorAs(t, err, &dialErr)

	assert.Equal(t, int32(3), connector.dials.Load())
	assert.GreaterOrEqual(t, elapsed, 1500*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)
}
