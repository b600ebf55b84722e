package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{&DialError{Endpoint: "x", Err: io.EOF}, true},
		{&TransportError{Op: "read", Err: io.EOF}, true},
		{&DecodeError{Err: io.ErrUnexpectedEOF}, true},
		{ErrReconnectInProgress, true},
		{fmt.Errorf("wrapped: %w", &TransportError{Op: "write", Err: io.EOF}), true},
		{&ServerError{Message: "boom"}, false},
		{ErrFrameTooLarge, false},
		{ErrTransportClosed, false},
		{context.Canceled, false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.retryable, IsRetryable(tt.err), "%v", tt.err)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	err := &AttemptsExhaustedError{
		Attempts: 3,
		Last:     &TransportError{Op: "read", Err: io.EOF},
	}
	assert.ErrorIs(t, err, io.EOF)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "read", transportErr.Op)

	assert.Equal(t, "theater server error: nope", (&ServerError{Message: "nope"}).Error())
	assert.True(t, errors.Is(&DialError{Err: context.DeadlineExceeded}, context.DeadlineExceeded))
}

func TestBytesJSON(t *testing.T) {
	b, err := json.Marshal(Bytes{0, 1, 255})
	require.NoError(t, err)
	assert.Equal(t, `[0,1,255]`, string(b))

	b, err = json.Marshal(Bytes{})
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(b))

	b, err = json.Marshal(struct {
		State Bytes `json:"state"`
	}{})
	require.NoError(t, err)
	assert.Equal(t, `{"state":null}`, string(b))

	var decoded Bytes
	require.NoError(t, json.Unmarshal([]byte(`[104, 105]`), &decoded))
	assert.Equal(t, "hi", string(decoded))

	// base64 of older clients
	require.NoError(t, json.Unmarshal([]byte(`"aGk="`), &decoded))
	assert.Equal(t, "hi", string(decoded))

	require.NoError(t, json.Unmarshal([]byte(`null`), &decoded))
	assert.Nil(t, decoded)

	assert.Error(t, json.Unmarshal([]byte(`[256]`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`"not base64!"`), &decoded))
}

func TestCommandDecode(t *testing.T) {
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(`{"SendActorMessage":{"id":"a","data":[1,2]}}`), &cmd))

	var fields struct {
		ID   string `json:"id"`
		Data Bytes  `json:"data"`
	}
	require.NoError(t, cmd.Decode(&fields))
	assert.Equal(t, "a", fields.ID)
	assert.Equal(t, Bytes{1, 2}, fields.Data)

	assert.Error(t, json.Unmarshal([]byte(`{"a":1,"b":2}`), &cmd))
	assert.Error(t, json.Unmarshal([]byte(`"lowercase"`), &cmd))
}

func TestClientConfigDefaults(t *testing.T) {
	c := ClientConfig{}.WithDefaults()

	assert.Equal(t, DefaultEndpoint, c.Endpoint)
	assert.Equal(t, 3, c.Transport.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, c.Transport.InitialBackoff())
	assert.Equal(t, 2.0, c.Transport.BackoffMultiplier)
	assert.Equal(t, 30*time.Second, c.Transport.HeartbeatInterval())
	assert.Equal(t, ReconnectPolicyWait, c.Transport.ReconnectPolicy)
	assert.Equal(t, time.Millisecond, c.Transport.ProbeTimeout())
	assert.Equal(t, DefaultMaxFrameSize, c.Transport.MaxFrameSize)

	// Explicit values are kept
	c = ClientConfig{Transport: ClientTransportConfig{MaxAttempts: 7, ProbeTimeoutMs: -1}}.WithDefaults()
	assert.Equal(t, 7, c.Transport.MaxAttempts)
	assert.Zero(t, c.Transport.ProbeTimeout())

	assert.Contains(t, c.String(), "Max Attempts")
}

func TestParseReconnectPolicy(t *testing.T) {
	p, err := ParseReconnectPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ReconnectPolicyWait, p)

	p, err = ParseReconnectPolicy("Fail-Fast")
	require.NoError(t, err)
	assert.Equal(t, ReconnectPolicyFailFast, p)

	_, err = ParseReconnectPolicy("sometimes")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, logger.WARNING, level)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}
