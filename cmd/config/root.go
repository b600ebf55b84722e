package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/spf13/cobra"
)

// fileConfig is the layout of a theaterctl config file. The keys are the
// names of the command line flags so viper can read the file directly.
type fileConfig struct {
	Endpoint   string `toml:"endpoint"`
	Transport  string `toml:"transport"`
	Serializer string `toml:"serializer"`
	Timeout    int    `toml:"timeout"`
	LogLevel   string `toml:"log-level"`

	MaxAttempts       int     `toml:"transport-max-attempts"`
	InitialBackoffMs  int     `toml:"transport-initial-backoff-ms"`
	BackoffMultiplier float64 `toml:"transport-backoff-multiplier"`
	HeartbeatInterval int     `toml:"heartbeat-interval"`
	ReconnectPolicy   string  `toml:"transport-reconnect-policy"`
	ProbeTimeoutMs    int     `toml:"transport-probe-timeout-ms"`
	MaxFrameSize      int     `toml:"transport-max-frame-size"`
	LazyConnect       bool    `toml:"transport-lazy-connect"`

	WriteBufferKB int  `toml:"transport-write-buffer"`
	ReadBufferKB  int  `toml:"transport-read-buffer"`
	TCPNoDelay    bool `toml:"transport-tcp-nodelay"`
	TCPKeepAlive  int  `toml:"transport-tcp-keepalive"`
	TCPLinger     int  `toml:"transport-tcp-linger"`
}

const fileHeader = `# theaterctl configuration
#
# Every key is also available as command line flag (--<key>) and as
# environment variable (THEATER_<KEY> with - replaced by _).
# Use it with: theaterctl --config <file> ...

`

var (
	// ConfigCommands represents the config command group
	ConfigCommands = &cobra.Command{
		Use:   "config",
		Short: "Create and inspect theaterctl config files",
	}

	initCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the default values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}

	checkCmd = &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective client configuration",
		Long:  "Print the client configuration that results from flags, environment variables and the config file.",
		Args:  cobra.NoArgs,
		RunE:  runShow,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	ConfigCommands.AddCommand(initCmd)
	ConfigCommands.AddCommand(checkCmd)
	ConfigCommands.AddCommand(showCmd)

	util.SetupRPCClientFlags(showCmd)
	initCmd.Flags().Bool("force", false, util.WrapString("Overwrite an existing file"))
}

// defaultFileConfig returns the config file content matching the flag defaults
func defaultFileConfig() fileConfig {
	return fileConfig{
		Endpoint:          common.DefaultEndpoint,
		Transport:         "tcp",
		Serializer:        "json",
		Timeout:           10,
		LogLevel:          "info",
		MaxAttempts:       common.DefaultMaxAttempts,
		InitialBackoffMs:  common.DefaultInitialBackoffMs,
		BackoffMultiplier: common.DefaultBackoffMultiplier,
		HeartbeatInterval: common.DefaultHeartbeatIntervalSec,
		ReconnectPolicy:   string(common.ReconnectPolicyWait),
		ProbeTimeoutMs:    common.DefaultProbeTimeoutMs,
		MaxFrameSize:      common.DefaultMaxFrameSize,
		TCPNoDelay:        true,
	}
}

// encodeFileConfig renders c as TOML including the explanatory header
func encodeFileConfig(c fileConfig) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeFileConfig parses a config file and rejects unknown keys and invalid values
func decodeFileConfig(path string) (fileConfig, error) {
	c := defaultFileConfig()
	meta, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, err
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return c, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	if _, err := common.ParseReconnectPolicy(c.ReconnectPolicy); err != nil {
		return c, err
	}
	if _, err := common.ParseLogLevel(c.LogLevel); err != nil {
		return c, err
	}
	switch c.Transport {
	case "tcp", "unix":
	default:
		return c, fmt.Errorf("invalid transport %s", c.Transport)
	}
	return c, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "theaterctl.toml"
	if len(args) == 1 {
		path = args[0]
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := encodeFileConfig(defaultFileConfig())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	fmt.Printf("config written to %s\n", path)
	return nil
}

func runCheck(_ *cobra.Command, args []string) error {
	if _, err := decodeFileConfig(args[0]); err != nil {
		return fmt.Errorf("invalid config file %s: %w", args[0], err)
	}
	fmt.Printf("%s is valid\n", args[0])
	return nil
}

func runShow(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	fmt.Println(config.String())
	return nil
}
