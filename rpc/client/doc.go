// Package client implements the client side of the Theater management protocol.
//
// Key Components:
//
//   - Executor: Sends one command and returns one response. It serializes the
//     command once, then tries up to MaxAttempts round trips on the transport.
//     Dial errors, I/O errors, a dial already in progress and undecodable
//     responses are retried after an exponential backoff (InitialBackoff,
//     multiplied by BackoffMultiplier after every failed attempt). A response
//     carrying the reserved error shape is returned as *common.ServerError on
//     the spot. When all attempts failed the result is a
//     *common.AttemptsExhaustedError wrapping the last failure.
//
//   - Heartbeat: Pings the server in a fixed interval from a background
//     goroutine. A failed ping is logged and counted, nothing else: the next
//     round trip of anybody (the heartbeat included) replaces a dead connection.
//
//   - TheaterClient: Typed methods for all commands (actors, messages,
//     channels) on top of an Executor, plus Send for arbitrary commands.
//
// Usage Example:
//
//	c, err := client.NewTheaterClient(
//	  common.ClientConfig{Endpoint: "127.0.0.1:9000"},
//	  tcp.NewTCPClientTransport(),
//	  serializer.NewJSONSerializer(),
//	)
//	if err != nil {
//	  return err
//	}
//	defer c.Close()
//
//	c.StartHeartbeat()
//	id, err := c.StartActor(ctx, "manifest.toml", nil)
//
// Thread Safety:
//
//	A TheaterClient can be used from many goroutines. There is one connection,
//	so requests are processed one after another.
package client
