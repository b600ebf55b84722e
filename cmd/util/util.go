package util

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ValentinKolb/theaterctl/rpc/client"
	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/serializer"
	"github.com/ValentinKolb/theaterctl/rpc/transport"
	"github.com/ValentinKolb/theaterctl/rpc/transport/tcp"
	"github.com/ValentinKolb/theaterctl/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// ConfigFile is the path of an optional config file (set by the --config flag)
var ConfigFile string

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds the connection and retry flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, common.DefaultEndpoint, WrapString("The address of the Theater server (host:port for tcp, socket path for unix)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Deadline in seconds for a single request/response exchange (0 disables it)"))

	key = "transport-max-attempts"
	cmd.PersistentFlags().Int(key, common.DefaultMaxAttempts, WrapString("How many times a command is attempted before giving up"))

	key = "transport-initial-backoff-ms"
	cmd.PersistentFlags().Int(key, common.DefaultInitialBackoffMs, WrapString("Delay in milliseconds before the second attempt"))

	key = "transport-backoff-multiplier"
	cmd.PersistentFlags().Float64(key, common.DefaultBackoffMultiplier, WrapString("Factor the delay grows by after every failed attempt"))

	key = "heartbeat-interval"
	cmd.PersistentFlags().Int(key, common.DefaultHeartbeatIntervalSec, WrapString("Interval of the background heartbeat in seconds"))

	key = "transport-reconnect-policy"
	cmd.PersistentFlags().String(key, string(common.ReconnectPolicyWait), WrapString("What a request does if another request is reconnecting (wait, fail-fast)"))

	key = "transport-probe-timeout-ms"
	cmd.PersistentFlags().Int(key, common.DefaultProbeTimeoutMs, WrapString("How long the liveness probe waits for a read before it considers the connection alive (negative disables the read probe)"))

	key = "transport-max-frame-size"
	cmd.PersistentFlags().Int(key, common.DefaultMaxFrameSize, WrapString("Largest frame in bytes that is sent or accepted"))

	key = "transport-lazy-connect"
	cmd.PersistentFlags().Bool(key, false, WrapString("Do not connect before the first request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 keeps the OS default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the OS default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, only for tcp)"))
}

// InitClientConfig initializes configuration from env files, environment
// variables and the optional config file
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("theater")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if ConfigFile != "" {
		viper.SetConfigFile(ConfigFile)
		if err := viper.ReadInConfig(); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to read config file %s: %w", ConfigFile, err))
		}
	}
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	policy, err := common.ParseReconnectPolicy(viper.GetString("transport-reconnect-policy"))
	if err != nil {
		return nil, err
	}

	conf := &common.ClientConfig{
		Endpoint:      viper.GetString("endpoint"),
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			MaxAttempts:          viper.GetInt("transport-max-attempts"),
			InitialBackoffMs:     viper.GetInt("transport-initial-backoff-ms"),
			BackoffMultiplier:    viper.GetFloat64("transport-backoff-multiplier"),
			HeartbeatIntervalSec: viper.GetInt("heartbeat-interval"),
			ReconnectPolicy:      policy,
			ProbeTimeoutMs:       viper.GetInt("transport-probe-timeout-ms"),
			MaxFrameSize:         viper.GetInt("transport-max-frame-size"),
			LazyConnect:          viper.GetBool("transport-lazy-connect"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}

	withDefaults := conf.WithDefaults()
	return &withDefaults, nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json", "":
		return serializer.NewJSONSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "tcp", "":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// NewTheaterClient binds the flags of cmd and creates a client from the
// resulting configuration
func NewTheaterClient(cmd *cobra.Command) (*client.TheaterClient, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	config, err := GetClientConfig()
	if err != nil {
		return nil, err
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	t, err := GetTransport()
	if err != nil {
		return nil, err
	}

	return client.NewTheaterClient(*config, t, s)
}

// FormatBytes returns data as text if it is valid UTF-8 and as hex otherwise
func FormatBytes(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return "0x" + hex.EncodeToString(data)
}

// ParseBytes is the inverse of FormatBytes: a 0x prefix marks hex input
func ParseBytes(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		data, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return data, nil
	}
	return []byte(s), nil
}
