// Package serializer converts Theater commands and responses to and from the bytes
// carried in a frame payload.
//
// The Theater server speaks JSON with externally tagged variants, so the only
// implementation is jsonSerializerImpl. The interface is kept so that the client
// and the stub server do not depend on the encoding directly.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: JSON implementation, see common.Command and common.Response
//     for the tagging rules.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	data, err := s.SerializeCommand(common.NewCommand("ListActors", nil))
//	// ... send data ...
//	var resp common.Response
//	err = s.DeserializeResponse(receivedData, &resp)
package serializer
