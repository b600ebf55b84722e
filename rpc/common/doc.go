// Package common provides the types shared by all rpc packages.
//
// Key Components:
//
//   - Command / Response: A command is an externally tagged JSON value
//     ("ListActors" or {"StopActor":{"id":"..."}}). A response is parsed into
//     its variant name (Kind) and raw body. Response.ServerError recognizes the
//     reserved error shape, a top level "Error" variant or "error" key.
//
//   - Theater vocabulary: command and response names, typed response bodies
//     and Bytes, the JSON number array encoding of binary data.
//
//   - Errors: DialError, TransportError, DecodeError, ServerError and
//     AttemptsExhaustedError plus IsRetryable, which decides what the executor
//     retries.
//
//   - ClientConfig / ServerConfig: Connection, retry and heartbeat settings
//     with defaults (WithDefaults) and a printable summary (String).
//
//   - Logger: A dragonboat logger.ILogger implemented with zerolog, installed
//     for all named package loggers by InitLoggers.
package common
