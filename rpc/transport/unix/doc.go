// Package unix implements the Theater transport over Unix domain sockets, for a
// server running on the same machine. The endpoint is the socket path.
//
// Only the connectors live here: clientConnector dials the socket path and
// applies the socket buffer sizes, serverConnector removes a stale socket file
// before listening. Everything else comes from the base package.
//
// The default server buffer size is 64 KB.
package unix
