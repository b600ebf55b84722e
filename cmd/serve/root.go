package serve

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/serializer"
	"github.com/ValentinKolb/theaterctl/rpc/server"
	"github.com/ValentinKolb/theaterctl/rpc/transport"
	"github.com/ValentinKolb/theaterctl/rpc/transport/tcp"
	"github.com/ValentinKolb/theaterctl/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start a stub Theater server",
		Long: `Start an in-memory stub of the Theater management server. It speaks the same
framed JSON protocol and keeps actors and channels in memory, which makes it
useful for local development and for trying out the client commands.
The configuration can be set via command line flags or environment variables.
The format of the environment variables is THEATER_<flag> (e.g. THEATER_ENDPOINT=127.0.0.1:9001)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// environment, env files and config file
	cobra.OnInitialize(cmdUtil.InitClientConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, common.DefaultEndpoint, cmdUtil.WrapString("The address on which the server will listen (e.g. 127.0.0.1:9000 for tcp, /tmp/theater.sock for unix)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Read/write timeout of a single exchange in seconds (0 disables it)"))

	key = "max-frame-size"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxFrameSize, cmdUtil.WrapString("Largest frame in bytes the server accepts"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size of the per connection read buffer in KB (0 uses the transport default)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MaxFrameSize = viper.GetInt("max-frame-size")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if serveCmdConfig.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// run starts the stub server and blocks until the command is interrupted
func run(cmd *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json", "":
		s = serializer.NewJSONSerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	bufferSize := viper.GetInt("buffer-size") * 1024
	switch viper.GetString("transport") {
	case "tcp", "":
		if bufferSize > 0 {
			t = tcp.NewTCPServerTransport(bufferSize)
		} else {
			t = tcp.NewTCPDefaultServerTransport()
		}
	case "unix":
		if bufferSize > 0 {
			t = unix.NewUnixServerTransport(bufferSize)
		} else {
			t = unix.NewUnixDefaultServerTransport()
		}
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	if err := serv.Serve(); err != nil {
		return err
	}

	fmt.Printf("stub Theater server listening on %s (stop with Ctrl+C)\n", serv.Addr())
	fmt.Println(serveCmdConfig.String())

	<-cmd.Context().Done()

	fmt.Println("shutting down")
	return serv.Close()
}
