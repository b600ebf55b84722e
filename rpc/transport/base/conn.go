package base

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/theaterctl/rpc/common"
)

// dialCall is a dial in flight. done is closed once the dial finished, err is
// only valid after that.
type dialCall struct {
	done chan struct{}
	err  error
}

// clientConnection is the connection slot of a client transport.
//
// The slot holds at most one live net.Conn. It is only mutated while mu is held
// and every write/read pair on the handle happens under the same lock, so
// concurrent callers each complete one full exchange. The reconnecting flag is
// claimed with a CAS by the single caller that dials; the dial itself runs
// without the lock so that other callers can either wait for it or fail fast.
type clientConnection struct {
	mu           sync.Mutex
	conn         net.Conn
	closed       bool
	reconnecting atomic.Bool
	dial         *dialCall // guarded by mu, set while reconnecting is true

	endpoint string
	policy   common.ReconnectPolicy
	probeFor time.Duration
	dialer   func(ctx context.Context) (net.Conn, error)
}

// newClientConnection creates an empty slot that dials with the given function
func newClientConnection(config common.ClientConfig, dialer func(ctx context.Context) (net.Conn, error)) *clientConnection {
	return &clientConnection{
		endpoint: config.Endpoint,
		policy:   config.Transport.ReconnectPolicy,
		probeFor: config.Transport.ProbeTimeout(),
		dialer:   dialer,
	}
}

// ensureConnected returns a live connection. On success the slot lock is held
// and the caller must release it with c.mu.Unlock() when its exchange is done.
// On error the lock is not held.
func (c *clientConnection) ensureConnected(ctx context.Context) (net.Conn, error) {
	for {
		c.mu.Lock()

		if c.closed {
			c.mu.Unlock()
			return nil, common.ErrTransportClosed
		}

		// Reuse the existing connection if it is still alive
		if c.conn != nil {
			err := probe(c.conn, c.probeFor)
			if err == nil {
				return c.conn, nil
			}
			Logger.Infof("Connection to %s is dead, reconnecting: %v", c.endpoint, err)
			c.dropLocked()
		}

		// Exactly one caller dials
		if c.reconnecting.CompareAndSwap(false, true) {
			return c.dialLocked(ctx)
		}

		// Somebody else is dialing right now
		if c.policy == common.ReconnectPolicyFailFast {
			c.mu.Unlock()
			return nil, common.ErrReconnectInProgress
		}

		call := c.dial
		c.mu.Unlock()

		select {
		case <-call.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// The dial we waited for failed, report it instead of dialing again
		if call.err != nil {
			return nil, call.err
		}
	}
}

// dialLocked dials a new connection. It is called with mu held and the
// reconnecting flag claimed, and returns like ensureConnected.
func (c *clientConnection) dialLocked(ctx context.Context) (net.Conn, error) {
	call := &dialCall{done: make(chan struct{})}
	c.dial = call
	c.mu.Unlock()

	conn, err := c.dialer(ctx)

	c.mu.Lock()
	c.dial = nil
	c.reconnecting.Store(false)
	call.err = err
	close(call.done)

	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	// Close raced with the dial
	if c.closed {
		_ = conn.Close()
		c.mu.Unlock()
		return nil, common.ErrTransportClosed
	}

	c.conn = conn
	return conn, nil
}

// dropLocked closes and clears the slot, mu must be held
func (c *clientConnection) dropLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	connectionDrops.Inc()
}

// IsReconnecting reports whether a dial is currently in flight
func (c *clientConnection) IsReconnecting() bool {
	return c.reconnecting.Load()
}

// close closes the slot for good, a dial in flight is discarded when it finishes
func (c *clientConnection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// --------------------------------------------------------------------------
// Liveness Probe
// --------------------------------------------------------------------------

// probe checks if an idle connection is still usable.
//
// A zero length write catches locally closed sockets and pending socket errors.
// If readFor > 0 a one byte read with a short deadline follows: on a strictly
// alternating protocol an idle connection has nothing to read, so a timeout
// means alive while EOF or unsolicited data means the connection is unusable.
func probe(conn net.Conn, readFor time.Duration) error {
	// Clear deadlines left over from the last exchange
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return &common.TransportError{Op: "probe", Err: err}
	}

	if _, err := conn.Write(nil); err != nil {
		return &common.TransportError{Op: "probe", Err: err}
	}

	if readFor <= 0 {
		return nil
	}

	if err := conn.SetReadDeadline(time.Now().Add(readFor)); err != nil {
		return &common.TransportError{Op: "probe", Err: err}
	}
	var one [1]byte
	n, err := conn.Read(one[:])
	if err == nil && n > 0 {
		return &common.TransportError{Op: "probe", Err: errUnsolicitedData}
	}
	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		return &common.TransportError{Op: "probe", Err: err}
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return &common.TransportError{Op: "probe", Err: err}
	}
	return nil
}

var errUnsolicitedData = errors.New("unsolicited data on idle connection")
