// Package base provides the protocol-agnostic part of the Theater transport
// layer. TCP and Unix sockets only contribute connectors, everything else lives
// here.
//
// Wire format: every frame is a 4 byte big-endian length followed by that many
// payload bytes. There is no request id, responses correlate with requests by
// position, so a connection carries exactly one request at a time.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (dialing, listening, socket tuning).
//
//   - clientConnection: The connection slot of a client. It holds at most one
//     net.Conn behind a mutex and an atomic reconnecting flag. Before a
//     connection is reused it is probed (zero length write plus an optional one
//     byte read with a short deadline). Only the caller that wins the CAS on the
//     flag dials; the others wait for that dial or fail fast with
//     common.ErrReconnectInProgress, depending on the ReconnectPolicy.
//
//   - clientTransport: RoundTrip runs ensureConnected, writes one frame and
//     reads one frame while holding the slot lock. Any I/O error closes and
//     clears the slot so the next round trip dials again. RoundTrip never
//     retries, that is the job of the executor in rpc/client.
//
//   - serverTransport: Accepts connections and serves each one in its own
//     goroutine, strictly request after request. Open connections are tracked
//     so that Close can terminate them.
//
// Thread Safety:
//
//	All public methods are safe for concurrent use. Concurrent round trips on
//	one client transport are serialized by the slot lock.
package base
