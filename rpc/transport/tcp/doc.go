// Package tcp implements the TCP flavour of the Theater client transport and the
// stub server transport. It only contributes the connectors, framing,
// reconnect handling and connection bookkeeping live in the base package.
//
// Key Components:
//
//   - clientConnector: dials with net.Dialer.DialContext, so the dial timeout and
//     cancellation of the caller apply, and tunes the socket (TCPNoDelay,
//     keep-alive, linger, buffer sizes) in UpgradeConnection.
//
//   - serverConnector: listens on a host:port endpoint. Use port 0 and Addr() to
//     get a free port in tests.
//
// The default server buffer size is 512 KB. Larger frames are read into a
// freshly allocated buffer.
package tcp
