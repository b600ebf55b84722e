package client

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/serializer"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPinger counts pings and fails them if fail is set
type countingPinger struct {
	pings atomic.Int32
	fail  atomic.Bool
}

func (p *countingPinger) Ping(context.Context) error {
	p.pings.Add(1)
	if p.fail.Load() {
		return errors.New("server unreachable")
	}
	return nil
}

func TestHeartbeatPingsOncePerTick(t *testing.T) {
	mock := clock.NewMock()
	pinger := &countingPinger{}

	hb := StartHeartbeat(pinger, 30*time.Second, mock)
	defer hb.Stop()

	// Nothing happens before the first interval passed
	mock.Add(29 * time.Second)
	assert.Equal(t, int32(0), pinger.pings.Load())

	for i := int32(1); i <= 3; i++ {
		mock.Add(time.Second)
		require.Eventually(t, func() bool { return pinger.pings.Load() == i }, time.Second, time.Millisecond)
		mock.Add(29 * time.Second)
	}
}

func TestHeartbeatSurvivesFailures(t *testing.T) {
	mock := clock.NewMock()
	pinger := &countingPinger{}
	pinger.fail.Store(true)

	hb := StartHeartbeat(pinger, time.Second, mock)
	defer hb.Stop()

	for i := int32(1); i <= 3; i++ {
		mock.Add(time.Second)
		require.Eventually(t, func() bool { return pinger.pings.Load() == i }, time.Second, time.Millisecond)
	}

	// Recovers without any intervention
	pinger.fail.Store(false)
	mock.Add(time.Second)
	require.Eventually(t, func() bool { return pinger.pings.Load() == 4 }, time.Second, time.Millisecond)
}

func TestHeartbeatStop(t *testing.T) {
	mock := clock.NewMock()
	pinger := &countingPinger{}

	hb := StartHeartbeat(pinger, time.Second, mock)
	hb.Stop()
	hb.Stop() // idempotent

	mock.Add(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), pinger.pings.Load())
}

func TestHeartbeatDoesNotBlockForegroundSends(t *testing.T) {
	// The first round trip (the heartbeat ping) fails, everything after succeeds
	tr := &fakeTransport{script: func(call int, _ []byte) ([]byte, error) {
		if call == 1 {
			return nil, writeFailure
		}
		return actorListResp, nil
	}}

	config := common.ClientConfig{
		Transport: common.ClientTransportConfig{
			InitialBackoffMs:     60_000,
			HeartbeatIntervalSec: 30,
		},
	}
	c, err := NewTheaterClient(config, tr, serializer.NewJSONSerializer())
	require.NoError(t, err)

	mock := clock.NewMock()
	c.clock = mock
	c.StartHeartbeat()

	// Heartbeat fires and is now stuck in its backoff sleep
	mock.Add(30 * time.Second)
	require.Eventually(t, func() bool { return tr.calls() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	actors, err := c.ListActors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, actors)

	// Close cancels the pending backoff of the heartbeat
	done := make(chan struct{})
	go func() {
		_ = c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on the heartbeat")
	}
}
