// Package rpc contains everything needed to talk to a Theater server over a
// length-prefixed byte stream.
//
// The package is organized into several subpackages:
//
//   - common: Command/Response types, the Theater vocabulary, configuration,
//     the error taxonomy and logging.
//
//   - transport: The framing codec and the connection handling, with TCP and
//     Unix socket implementations.
//
//   - serializer: Encodes commands and decodes responses (externally tagged JSON).
//
//   - client: Command executor with retries and backoff, the heartbeat and the
//     typed TheaterClient.
//
//   - server: A stub Theater server for tests and local development.
package rpc
