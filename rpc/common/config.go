package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultEndpoint             = "127.0.0.1:9000"
	DefaultMaxAttempts          = 3
	DefaultInitialBackoffMs     = 500
	DefaultBackoffMultiplier    = 2.0
	DefaultHeartbeatIntervalSec = 30
	DefaultProbeTimeoutMs       = 1
	DefaultDialTimeoutSecond    = 5
	DefaultMaxFrameSize         = 64 * 1024 * 1024 // 64 MiB
)

// --------------------------------------------------------------------------
// Reconnect Policy
// --------------------------------------------------------------------------

// ReconnectPolicy defines what a caller does if it finds another caller dialing
type ReconnectPolicy string

const (
	// ReconnectPolicyWait blocks until the running dial finished and then uses its result
	ReconnectPolicyWait ReconnectPolicy = "wait"
	// ReconnectPolicyFailFast returns ErrReconnectInProgress and leaves retrying to the executor
	ReconnectPolicyFailFast ReconnectPolicy = "fail-fast"
)

// ParseReconnectPolicy converts a string into a ReconnectPolicy
func ParseReconnectPolicy(s string) (ReconnectPolicy, error) {
	switch ReconnectPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReconnectPolicyWait:
		return ReconnectPolicyWait, nil
	case ReconnectPolicyFailFast:
		return ReconnectPolicyFailFast, nil
	default:
		return "", fmt.Errorf("invalid reconnect policy: %s (expected one of: wait, fail-fast)", s)
	}
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// SocketConf holds the socket buffer sizes (0 keeps the OS default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int // 0 disables keep-alive
	TCPLingerSec    int // 0 keeps the OS default
}

// ClientTransportConfig holds the connection and retry settings of the client transport
type ClientTransportConfig struct {
	// Retry policy of the command executor
	MaxAttempts       int
	InitialBackoffMs  int
	BackoffMultiplier float64

	// Interval of the background heartbeat
	HeartbeatIntervalSec int

	// Connection manager behaviour
	ReconnectPolicy   ReconnectPolicy
	ProbeTimeoutMs    int // < 0 disables the read probe
	DialTimeoutSecond int
	MaxFrameSize      int
	LazyConnect       bool // do not dial in Connect, leave it to the first request

	SocketConf SocketConf
	TCPConf    TCPConf
}

// ClientConfig holds all configuration parameters of a client
type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int // per round trip deadline, 0 disables it
	Transport     ClientTransportConfig
}

// WithDefaults returns a copy of the config where all unset values are replaced by their defaults
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Transport.MaxAttempts <= 0 {
		c.Transport.MaxAttempts = DefaultMaxAttempts
	}
	if c.Transport.InitialBackoffMs <= 0 {
		c.Transport.InitialBackoffMs = DefaultInitialBackoffMs
	}
	if c.Transport.BackoffMultiplier < 1 {
		c.Transport.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if c.Transport.HeartbeatIntervalSec <= 0 {
		c.Transport.HeartbeatIntervalSec = DefaultHeartbeatIntervalSec
	}
	if c.Transport.ReconnectPolicy == "" {
		c.Transport.ReconnectPolicy = ReconnectPolicyWait
	}
	if c.Transport.ProbeTimeoutMs == 0 {
		c.Transport.ProbeTimeoutMs = DefaultProbeTimeoutMs
	}
	if c.Transport.DialTimeoutSecond <= 0 {
		c.Transport.DialTimeoutSecond = DefaultDialTimeoutSecond
	}
	if c.Transport.MaxFrameSize <= 0 {
		c.Transport.MaxFrameSize = DefaultMaxFrameSize
	}
	return c
}

// Timeout returns the per round trip deadline (0 = none)
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// InitialBackoff returns the delay before the second attempt
func (c *ClientTransportConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

// HeartbeatInterval returns the interval of the heartbeat
func (c *ClientTransportConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

// ProbeTimeout returns the read probe timeout (0 = read probe disabled)
func (c *ClientTransportConfig) ProbeTimeout() time.Duration {
	if c.ProbeTimeoutMs < 0 {
		return 0
	}
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// DialTimeout returns the timeout for a single dial
func (c *ClientTransportConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Lazy Connect", strconv.FormatBool(c.Transport.LazyConnect))

	// Retry policy
	addSection("Retry Policy")
	addField("Max Attempts", strconv.Itoa(c.Transport.MaxAttempts))
	addField("Initial Backoff", fmt.Sprintf("%d ms", c.Transport.InitialBackoffMs))
	addField("Backoff Multiplier", strconv.FormatFloat(c.Transport.BackoffMultiplier, 'f', -1, 64))
	addField("Reconnect Policy", string(c.Transport.ReconnectPolicy))

	// Connection health
	addSection("Connection Health")
	addField("Heartbeat Interval", fmt.Sprintf("%d sec", c.Transport.HeartbeatIntervalSec))
	addField("Probe Timeout", fmt.Sprintf("%d ms", c.Transport.ProbeTimeoutMs))
	addField("Dial Timeout", fmt.Sprintf("%d sec", c.Transport.DialTimeoutSecond))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.Transport.MaxFrameSize))

	// Socket
	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.SocketConf.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.SocketConf.ReadBufferSize))
	addField("TCP NoDelay", strconv.FormatBool(c.Transport.TCPConf.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.Transport.TCPConf.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPConf.TCPLingerSec))

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of the stub server
type ServerConfig struct {
	Endpoint      string
	TimeoutSecond int64
	MaxFrameSize  int
	LogLevel      string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.MaxFrameSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
