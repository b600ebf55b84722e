package client

import "github.com/VictoriaMetrics/metrics"

// Client side metrics, exposed by the CLI with --metrics-endpoint
var (
	attemptsTotal     = metrics.NewCounter("theaterctl_client_attempts_total")
	retriesTotal      = metrics.NewCounter("theaterctl_client_retries_total")
	serverErrorsTotal = metrics.NewCounter("theaterctl_client_server_errors_total")
	heartbeatFailures = metrics.NewCounter("theaterctl_heartbeat_failures_total")
	roundTripSeconds  = metrics.NewHistogram("theaterctl_client_round_trip_seconds")
)
