// Package transport defines the interfaces for moving length prefixed frames
// between the client and a Theater server. It provides a common contract that all
// transport implementations must fulfill, so the client does not care whether it
// talks over TCP or a unix socket.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     own the single connection and perform one request/response round trip at a time.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receive requests and pass them to a handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport
