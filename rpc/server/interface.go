package server

import (
	"github.com/ValentinKolb/theaterctl/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It translates a decoded command into a call on the stage and returns the response.
// If an error occurs, it must be returned as an error response (see common.NewErrorResponse)
type IRPCServerAdapter interface {
	Handle(cmd *common.Command) (resp *common.Response)
}
