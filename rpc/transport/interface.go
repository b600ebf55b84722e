package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/theaterctl/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the request payload and returns the response payload
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler is called once for every request frame
	RegisterHandler(handler ServerHandleFunc)
	// Listen binds the endpoint and starts accepting connections in the background
	Listen(config common.ServerConfig) error
	// Addr returns the bound address (nil before Listen)
	Addr() net.Addr
	// Close stops accepting connections and closes all open connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	// Unless LazyConnect is set the connection is established immediately
	Connect(config common.ClientConfig) error
	// RoundTrip writes one request frame and reads the matching response frame.
	// It is exactly one attempt: there are no retries on this layer. The
	// returned errors are common.DialError, common.TransportError or
	// common.ErrReconnectInProgress.
	RoundTrip(ctx context.Context, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
