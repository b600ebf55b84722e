package server

import (
	"fmt"
	"net"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/serializer"
	"github.com/ValentinKolb/theaterctl/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("server")

// NewRPCServer creates a new stub Theater server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
//	defer s.Close()
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = common.DefaultMaxFrameSize
	}

	Logger.Infof("Created RPC Server")
	Logger.Debugf(config.String())

	stage := NewStage()
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		stage:      stage,
		adapter:    NewStageServerAdapter(stage),
	}
}

// RPCServer serves a Stage over a server transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	stage      *Stage
	adapter    IRPCServerAdapter
}

// Stage returns the stage behind the server
func (s *RPCServer) Stage() *Stage {
	return s.stage
}

// Serve registers the handler and starts listening, it returns once the
// endpoint is bound
func (s *RPCServer) Serve() error {
	s.registerTransportHandler()
	if err := s.transport.Listen(s.config); err != nil {
		return err
	}
	Logger.Infof("Stub Theater server listening on %s", s.transport.Addr())
	return nil
}

// Addr returns the bound address (nil before Serve)
func (s *RPCServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Close stops the server and closes all connections
func (s *RPCServer) Close() error {
	return s.transport.Close()
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var resp *common.Response

		// Decode the request
		var cmd common.Command
		if err := s.serializer.DeserializeCommand(req, &cmd); err != nil {
			resp = common.NewErrorResponse(fmt.Sprintf("failed to deserialize command: %s", err))
		} else {
			// Let the adapter handle the command
			resp = s.adapter.Handle(&cmd)
			Logger.Debugf("Handled %s -> %s", cmd, resp.Kind)
		}

		// Return result
		val, err := s.serializer.SerializeResponse(*resp)
		if err != nil {
			val, _ = s.serializer.SerializeResponse(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	})
}
