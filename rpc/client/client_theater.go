package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/ValentinKolb/theaterctl/rpc/serializer"
	"github.com/ValentinKolb/theaterctl/rpc/transport"
	"github.com/benbjohnson/clock"
)

// NewTheaterClient connects the transport and returns a client for the
// Theater management protocol. Unless LazyConnect is set the first dial
// happens here and its error is returned.
func NewTheaterClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*TheaterClient, error) {
	config = config.WithDefaults()

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &TheaterClient{
		config:   config,
		executor: NewExecutor(config, transport, serializer),
		clock:    clock.New(),
	}, nil
}

// TheaterClient is a typed client for the Theater server. It is safe for
// concurrent use, requests of concurrent callers are serialized on the single
// connection.
type TheaterClient struct {
	config   common.ClientConfig
	executor *Executor
	clock    clock.Clock

	mu        sync.Mutex
	heartbeat *Heartbeat
}

// --------------------------------------------------------------------------
// Actor Methods
// --------------------------------------------------------------------------

// ListActors returns the ids of all running actors
func (c *TheaterClient) ListActors(ctx context.Context) ([]string, error) {
	var body common.ActorList
	if err := c.call(ctx, common.NewCommand(common.CmdListActors, nil), common.RespActorList, &body); err != nil {
		return nil, err
	}
	return body.Actors, nil
}

// StartActor starts an actor from a manifest and returns its id. initialState may be nil.
func (c *TheaterClient) StartActor(ctx context.Context, manifest string, initialState []byte) (string, error) {
	cmd := common.NewCommand(common.CmdStartActor, map[string]any{
		"manifest":      manifest,
		"initial_state": common.Bytes(initialState),
	})
	var body common.ActorRef
	if err := c.call(ctx, cmd, common.RespActorStarted, &body); err != nil {
		return "", err
	}
	return body.ID, nil
}

func (c *TheaterClient) StopActor(ctx context.Context, id string) error {
	return c.call(ctx, actorCommand(common.CmdStopActor, id), common.RespActorStopped, nil)
}

func (c *TheaterClient) RestartActor(ctx context.Context, id string) error {
	return c.call(ctx, actorCommand(common.CmdRestartActor, id), common.RespRestarted, nil)
}

// ActorExists reports whether the server knows the actor. A server error is
// taken as "does not exist", transport failures are returned.
func (c *TheaterClient) ActorExists(ctx context.Context, id string) (bool, error) {
	_, err := c.GetActorState(ctx, id)
	var serverErr *common.ServerError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &serverErr):
		return false, nil
	default:
		return false, err
	}
}

// GetActorState returns the state of an actor, nil if it has none
func (c *TheaterClient) GetActorState(ctx context.Context, id string) ([]byte, error) {
	var body common.ActorState
	if err := c.call(ctx, actorCommand(common.CmdGetActorState, id), common.RespActorState, &body); err != nil {
		return nil, err
	}
	return body.State, nil
}

// GetActorEvents returns the event chain of an actor, events are passed through unparsed
func (c *TheaterClient) GetActorEvents(ctx context.Context, id string) ([]json.RawMessage, error) {
	var body common.ActorEvents
	if err := c.call(ctx, actorCommand(common.CmdGetActorEvents, id), common.RespActorEvents, &body); err != nil {
		return nil, err
	}
	return body.Events, nil
}

// SendMessage sends a one-way message to an actor
func (c *TheaterClient) SendMessage(ctx context.Context, id string, data []byte) error {
	cmd := common.NewCommand(common.CmdSendActorMessage, map[string]any{
		"id":   id,
		"data": nonNil(data),
	})
	return c.call(ctx, cmd, common.RespSentMessage, nil)
}

// RequestMessage sends a request to an actor and returns its answer
func (c *TheaterClient) RequestMessage(ctx context.Context, id string, data []byte) ([]byte, error) {
	cmd := common.NewCommand(common.CmdRequestActorMessage, map[string]any{
		"id":   id,
		"data": nonNil(data),
	})
	var body common.RequestedMessage
	if err := c.call(ctx, cmd, common.RespRequestedMessage, &body); err != nil {
		return nil, err
	}
	return body.Message, nil
}

// --------------------------------------------------------------------------
// Channel Methods
// --------------------------------------------------------------------------

// OpenChannel opens a channel to an actor and returns the channel id
func (c *TheaterClient) OpenChannel(ctx context.Context, actorID string, initialMessage []byte) (string, error) {
	cmd := common.NewCommand(common.CmdOpenChannel, map[string]any{
		"actor_id":        common.ChannelParticipant{Actor: actorID},
		"initial_message": nonNil(initialMessage),
	})
	var body common.ChannelOpened
	if err := c.call(ctx, cmd, common.RespChannelOpened, &body); err != nil {
		return "", err
	}
	return body.ChannelID, nil
}

func (c *TheaterClient) SendOnChannel(ctx context.Context, channelID string, message []byte) error {
	cmd := common.NewCommand(common.CmdSendOnChannel, map[string]any{
		"channel_id": channelID,
		"message":    nonNil(message),
	})
	return c.call(ctx, cmd, common.RespMessageSent, nil)
}

func (c *TheaterClient) CloseChannel(ctx context.Context, channelID string) error {
	cmd := common.NewCommand(common.CmdCloseChannel, map[string]any{
		"channel_id": channelID,
	})
	return c.call(ctx, cmd, common.RespChannelClosed, nil)
}

// --------------------------------------------------------------------------
// Connection Methods
// --------------------------------------------------------------------------

// Send delivers an arbitrary command and returns the response as is
func (c *TheaterClient) Send(ctx context.Context, cmd common.Command) (*common.Response, error) {
	return c.executor.Send(ctx, cmd)
}

// Ping sends ListActors, the cheapest request the server offers
func (c *TheaterClient) Ping(ctx context.Context) error {
	_, err := c.ListActors(ctx)
	return err
}

// StartHeartbeat starts the background heartbeat with the configured interval.
// Calling it again returns the running heartbeat.
func (c *TheaterClient) StartHeartbeat() *Heartbeat {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.heartbeat == nil {
		c.heartbeat = StartHeartbeat(c, c.config.Transport.HeartbeatInterval(), c.clock)
	}
	return c.heartbeat
}

// Close stops the heartbeat and closes the connection
func (c *TheaterClient) Close() error {
	c.mu.Lock()
	hb := c.heartbeat
	c.heartbeat = nil
	c.mu.Unlock()

	if hb != nil {
		hb.Stop()
	}
	return c.executor.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// call sends the command and checks the response kind. If out is not nil the
// response body is decoded into it.
func (c *TheaterClient) call(ctx context.Context, cmd common.Command, expected string, out any) error {
	resp, err := c.executor.Send(ctx, cmd)
	if err != nil {
		return err
	}

	if resp.Kind != expected {
		return fmt.Errorf("unexpected response type %q to %s, expected %q", resp.Kind, cmd, expected)
	}

	if out != nil {
		if err := resp.Decode(out); err != nil {
			return fmt.Errorf("invalid %s response: %w", expected, err)
		}
	}
	return nil
}

func actorCommand(name, id string) common.Command {
	return common.NewCommand(name, map[string]any{"id": id})
}

// nonNil makes sure required byte fields are sent as [] instead of null
func nonNil(data []byte) common.Bytes {
	if data == nil {
		return common.Bytes{}
	}
	return common.Bytes(data)
}
