package server

import (
	"encoding/json"
	"io"
	"net"
	"testing"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/serializer"
	"github.com/ValentinKolb/theaterctl/rpc/transport/base"
	"github.com/ValentinKolb/theaterctl/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handle runs a raw command through the adapter
func handle(t *testing.T, adapter IRPCServerAdapter, raw string) *common.Response {
	t.Helper()
	var cmd common.Command
	require.NoError(t, json.Unmarshal([]byte(raw), &cmd))
	return adapter.Handle(&cmd)
}

func TestStageAdapter(t *testing.T) {
	adapter := NewStageServerAdapter(NewStage())

	// Start an actor
	resp := handle(t, adapter, `{"StartActor":{"manifest":"hello.toml","initial_state":[1,2,3]}}`)
	require.Equal(t, common.RespActorStarted, resp.Kind)
	var started common.ActorRef
	require.NoError(t, resp.Decode(&started))
	require.NotEmpty(t, started.ID)

	// List
	resp = handle(t, adapter, `"ListActors"`)
	require.Equal(t, common.RespActorList, resp.Kind)
	var list common.ActorList
	require.NoError(t, resp.Decode(&list))
	assert.Equal(t, []string{started.ID}, list.Actors)

	// State is the initial state
	resp = handle(t, adapter, `{"GetActorState":{"id":"`+started.ID+`"}}`)
	require.Equal(t, common.RespActorState, resp.Kind)
	var state common.ActorState
	require.NoError(t, resp.Decode(&state))
	assert.Equal(t, common.Bytes{1, 2, 3}, state.State)

	// Requests are echoed
	resp = handle(t, adapter, `{"RequestActorMessage":{"id":"`+started.ID+`","data":[104,105]}}`)
	require.Equal(t, common.RespRequestedMessage, resp.Kind)
	var requested common.RequestedMessage
	require.NoError(t, resp.Decode(&requested))
	assert.Equal(t, "hi", string(requested.Message))

	// Events were recorded
	resp = handle(t, adapter, `{"GetActorEvents":{"id":"`+started.ID+`"}}`)
	require.Equal(t, common.RespActorEvents, resp.Kind)
	var events common.ActorEvents
	require.NoError(t, resp.Decode(&events))
	assert.Len(t, events.Events, 2)

	// Stop
	resp = handle(t, adapter, `{"StopActor":{"id":"`+started.ID+`"}}`)
	assert.Equal(t, common.RespActorStopped, resp.Kind)

	// Unknown actor is an error response
	resp = handle(t, adapter, `{"StopActor":{"id":"`+started.ID+`"}}`)
	msg, isErr := resp.ServerError()
	assert.True(t, isErr)
	assert.Contains(t, msg, "actor not found")
}

func TestStageChannels(t *testing.T) {
	stage := NewStage()
	adapter := NewStageServerAdapter(stage)

	id, err := stage.StartActor("m", nil)
	require.NoError(t, err)

	resp := handle(t, adapter, `{"OpenChannel":{"actor_id":{"Actor":"`+id+`"},"initial_message":[]}}`)
	require.Equal(t, common.RespChannelOpened, resp.Kind)
	var opened common.ChannelOpened
	require.NoError(t, resp.Decode(&opened))
	assert.Equal(t, id, opened.ActorID.Actor)

	resp = handle(t, adapter, `{"SendOnChannel":{"channel_id":"`+opened.ChannelID+`","message":[1]}}`)
	assert.Equal(t, common.RespMessageSent, resp.Kind)

	resp = handle(t, adapter, `{"CloseChannel":{"channel_id":"`+opened.ChannelID+`"}}`)
	assert.Equal(t, common.RespChannelClosed, resp.Kind)

	resp = handle(t, adapter, `{"CloseChannel":{"channel_id":"`+opened.ChannelID+`"}}`)
	_, isErr := resp.ServerError()
	assert.True(t, isErr)

	// Opening a channel to an unknown actor fails
	_, err = stage.OpenChannel("nope", nil)
	assert.Error(t, err)
}

func TestStageStopClosesChannels(t *testing.T) {
	stage := NewStage()
	id, err := stage.StartActor("m", nil)
	require.NoError(t, err)
	chID, err := stage.OpenChannel(id, nil)
	require.NoError(t, err)

	require.NoError(t, stage.StopActor(id))
	assert.Error(t, stage.SendOnChannel(chID, []byte("x")))
}

func TestUnsupportedCommand(t *testing.T) {
	adapter := NewStageServerAdapter(NewStage())
	resp := handle(t, adapter, `{"Explode":{}}`)
	msg, isErr := resp.ServerError()
	assert.True(t, isErr)
	assert.Contains(t, msg, "unsupported command")
}

func TestServeOverTCP(t *testing.T) {
	s := NewRPCServer(
		common.ServerConfig{Endpoint: "127.0.0.1:0"},
		tcp.NewTCPDefaultServerTransport(),
		serializer.NewJSONSerializer(),
	)
	require.NoError(t, s.Serve())
	defer s.Close()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	exchange := func(req string) string {
		_, err := conn.Write(base.Encode([]byte(req)))
		require.NoError(t, err)

		var header [base.HeaderSize]byte
		_, err = io.ReadFull(conn, header[:])
		require.NoError(t, err)
		body := make([]byte, base.DecodeHeader(header))
		_, err = io.ReadFull(conn, body)
		require.NoError(t, err)
		return string(body)
	}

	assert.JSONEq(t, `{"ActorList":{"actors":[]}}`, exchange(`"ListActors"`))
	assert.JSONEq(t, `{"Error":{"message":"actor not found: x"}}`, exchange(`{"StopActor":{"id":"x"}}`))

	// Garbage is answered with an error, the connection stays usable
	resp := exchange(`not json`)
	assert.Contains(t, resp, `"Error"`)
	assert.JSONEq(t, `{"ActorList":{"actors":[]}}`, exchange(`"ListActors"`))
}
