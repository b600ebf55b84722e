package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/serializer"
	"github.com/ValentinKolb/theaterctl/rpc/transport"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// Executor sends commands over a client transport. It owns the retry policy:
// every Send makes up to MaxAttempts round trips, sleeping with exponential
// backoff between transport class failures. Errors reported by the server are
// returned immediately.
type Executor struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	clock      clock.Clock

	// sleep waits d or until ctx is done, replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor for an already connected transport
func NewExecutor(config common.ClientConfig, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) *Executor {
	e := &Executor{
		config:     config.WithDefaults(),
		transport:  transport,
		serializer: serializer,
		clock:      clock.New(),
	}
	e.sleep = e.sleepBackoff
	return e
}

// Send serializes the command once and delivers it, retrying retryable
// failures. The result is either the decoded response, a *common.ServerError,
// a *common.AttemptsExhaustedError or a non retryable error of the lower layers.
func (e *Executor) Send(ctx context.Context, cmd common.Command) (*common.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := e.serializer.SerializeCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize command %s: %w", cmd, err)
	}

	traceID := uuid.NewString()
	maxAttempts := e.config.Transport.MaxAttempts
	delay := e.config.Transport.InitialBackoff()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptsTotal.Inc()

		resp, err := e.roundTrip(ctx, req)
		if err == nil {
			Logger.Debugf("[%s] %s succeeded on attempt %d/%d", traceID, cmd, attempt, maxAttempts)
			return resp, nil
		}

		// The server answered, that is final
		var serverErr *common.ServerError
		if errors.As(err, &serverErr) {
			serverErrorsTotal.Inc()
			return nil, err
		}

		if !common.IsRetryable(err) {
			return nil, err
		}

		lastErr = err
		Logger.Debugf("[%s] %s attempt %d/%d failed: %v", traceID, cmd, attempt, maxAttempts, err)

		if attempt == maxAttempts {
			break
		}

		retriesTotal.Inc()
		if err := e.sleep(ctx, delay); err != nil {
			return nil, &common.AttemptsExhaustedError{
				Attempts: attempt,
				Last:     fmt.Errorf("%w (last error: %v)", err, lastErr),
			}
		}
		delay = time.Duration(float64(delay) * e.config.Transport.BackoffMultiplier)
	}

	Logger.Warningf("[%s] %s failed after %d attempts: %v", traceID, cmd, maxAttempts, lastErr)
	return nil, &common.AttemptsExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// Close closes the underlying transport
func (e *Executor) Close() error {
	return e.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// roundTrip is a single attempt: exchange one frame pair and decode the answer
func (e *Executor) roundTrip(ctx context.Context, req []byte) (*common.Response, error) {
	start := e.clock.Now()
	respBytes, err := e.transport.RoundTrip(ctx, req)
	roundTripSeconds.Update(e.clock.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	resp := &common.Response{}
	if err := e.serializer.DeserializeResponse(respBytes, resp); err != nil {
		return nil, &common.DecodeError{Err: err}
	}

	if msg, isErr := resp.ServerError(); isErr {
		return nil, &common.ServerError{Message: msg}
	}

	return resp, nil
}

// sleepBackoff waits for d on the executor clock, returns early with the
// context error if ctx is done
func (e *Executor) sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := e.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
