// Package server implements a stub Theater server: an in-memory Stage that
// speaks the same command vocabulary as a real Theater runtime, served over any
// server transport. It is used by the tests of the client packages and by
// `theaterctl serve` for local development.
//
// Key Components:
//
//   - Stage: actors (state, event chain, echoing requests) and channels, kept
//     in concurrent maps. Ids are random UUIDs.
//
//   - IRPCServerAdapter / NewStageServerAdapter: translates a decoded
//     common.Command into a Stage call and builds the tagged response. Every
//     failure becomes the reserved error response ({"Error":{"message":...}}).
//
//   - NewRPCServer: wires stage, adapter, serializer and transport.
//
// Usage Example:
//
//	s := server.NewRPCServer(
//	  common.ServerConfig{Endpoint: "127.0.0.1:9000"},
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewJSONSerializer(),
//	)
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//	defer s.Close()
//
// The stage is not a Theater runtime: manifests are not loaded and actors run
// no code. It only keeps enough bookkeeping to make the protocol observable.
package server
