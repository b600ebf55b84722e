package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	dialsTotal      = metrics.NewCounter("theaterctl_client_dials_total")
	dialErrors      = metrics.NewCounter("theaterctl_client_dial_errors_total")
	connectionDrops = metrics.NewCounter("theaterctl_client_connection_drops_total")
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint, the dial is
	// aborted when ctx is done
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	slot      *clientConnection
	mu        sync.RWMutex // protects config and slot
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	config = config.WithDefaults()

	t.mu.Lock()
	if t.slot != nil {
		t.slot.close()
	}
	t.config = config
	slot := newClientConnection(config, t.dial)
	t.slot = slot
	t.mu.Unlock()

	if config.Transport.LazyConnect {
		Logger.Debugf("Lazy connect enabled, deferring dial to %s", config.Endpoint)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Transport.DialTimeout())
	defer cancel()

	if _, err := slot.ensureConnected(ctx); err != nil {
		return err
	}
	slot.mu.Unlock()
	return nil
}

func (t *clientTransport) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	t.mu.RLock()
	slot, config := t.slot, t.config
	t.mu.RUnlock()

	if slot == nil {
		return nil, common.ErrNotConnected
	}

	conn, err := slot.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()

	// Abort blocking I/O if the context is cancelled
	aborted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
		close(aborted)
	})
	defer func() {
		if !stop() {
			<-aborted
		}
	}()

	if deadline, ok := roundTripDeadline(ctx, config.Timeout()); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			slot.dropLocked()
			return nil, &common.TransportError{Op: "write", Err: err}
		}
	}

	if err := writeFrame(conn, req, config.Transport.MaxFrameSize); err != nil {
		// Nothing was written, the connection is still in sync
		if errors.Is(err, common.ErrFrameTooLarge) {
			return nil, err
		}
		slot.dropLocked()
		return nil, &common.TransportError{Op: "write", Err: err}
	}

	resp, err := readFrame(conn, nil, config.Transport.MaxFrameSize)
	if err != nil {
		slot.dropLocked()
		return nil, &common.TransportError{Op: "read", Err: err}
	}

	return resp, nil
}

func (t *clientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slot != nil {
		t.slot.close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dial establishes and upgrades a new connection to the configured endpoint
func (t *clientTransport) dial(ctx context.Context) (net.Conn, error) {
	t.mu.RLock()
	config := t.config
	t.mu.RUnlock()

	dialsTotal.Inc()

	dialCtx, cancel := context.WithTimeout(ctx, config.Transport.DialTimeout())
	defer cancel()

	conn, err := t.connector.Connect(dialCtx, config.Endpoint)
	if err != nil {
		dialErrors.Inc()
		Logger.Warningf("Failed to connect to %s: %v", config.Endpoint, err)
		return nil, &common.DialError{Endpoint: config.Endpoint, Err: err}
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		_ = conn.Close()
		dialErrors.Inc()
		return nil, &common.DialError{Endpoint: config.Endpoint, Err: fmt.Errorf("failed to upgrade connection: %w", err)}
	}

	Logger.Infof("Connected to %s using %s transport", config.Endpoint, t.connector.GetName())
	return conn, nil
}

// roundTripDeadline returns the earlier of the configured timeout and the ctx deadline
func roundTripDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if timeout > 0 {
		if d := time.Now().Add(timeout); !ok || d.Before(deadline) {
			deadline, ok = d, true
		}
	}
	return deadline, ok
}
