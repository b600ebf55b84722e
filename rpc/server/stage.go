package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Stage is an in-memory stand-in for a Theater runtime. Actors keep their
// state and an event chain, requests are answered by echoing the payload.
type Stage struct {
	actors   *xsync.MapOf[string, *actor]
	channels *xsync.MapOf[string, *channel]
	now      func() time.Time
}

type actor struct {
	mu       sync.Mutex
	id       string
	manifest string
	state    []byte
	events   []json.RawMessage
}

type channel struct {
	id       string
	actorID  string
	messages int
}

// event is one entry of an actor's event chain
type event struct {
	EventType string       `json:"event_type"`
	Timestamp string       `json:"timestamp"`
	Data      common.Bytes `json:"data,omitempty"`
}

// NewStage creates an empty stage
func NewStage() *Stage {
	return &Stage{
		actors:   xsync.NewMapOf[string, *actor](),
		channels: xsync.NewMapOf[string, *channel](),
		now:      time.Now,
	}
}

// --------------------------------------------------------------------------
// Actors
// --------------------------------------------------------------------------

// ListActors returns the ids of all running actors
func (s *Stage) ListActors() []string {
	ids := make([]string, 0, s.actors.Size())
	s.actors.Range(func(id string, _ *actor) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func (s *Stage) StartActor(manifest string, initialState []byte) (string, error) {
	if manifest == "" {
		return "", fmt.Errorf("manifest must not be empty")
	}
	a := &actor{
		id:       uuid.NewString(),
		manifest: manifest,
		state:    initialState,
	}
	a.record(s.now(), "ActorStarted", nil)
	s.actors.Store(a.id, a)
	return a.id, nil
}

func (s *Stage) StopActor(id string) error {
	if _, ok := s.actors.LoadAndDelete(id); !ok {
		return actorNotFound(id)
	}

	// Channels of a stopped actor are closed as well
	s.channels.Range(func(chID string, ch *channel) bool {
		if ch.actorID == id {
			s.channels.Delete(chID)
		}
		return true
	})
	return nil
}

func (s *Stage) RestartActor(id string) error {
	a, err := s.actor(id)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record(s.now(), "ActorRestarted", nil)
	return nil
}

func (s *Stage) ActorState(id string) ([]byte, error) {
	a, err := s.actor(id)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, nil
}

func (s *Stage) ActorEvents(id string) ([]json.RawMessage, error) {
	a, err := s.actor(id)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]json.RawMessage(nil), a.events...), nil
}

// SendMessage delivers a one-way message, the last message becomes the actor state
func (s *Stage) SendMessage(id string, data []byte) error {
	a, err := s.actor(id)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = data
	a.record(s.now(), "MessageReceived", data)
	return nil
}

// RequestMessage answers a request with its own payload
func (s *Stage) RequestMessage(id string, data []byte) ([]byte, error) {
	a, err := s.actor(id)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record(s.now(), "RequestReceived", data)
	return data, nil
}

// --------------------------------------------------------------------------
// Channels
// --------------------------------------------------------------------------

func (s *Stage) OpenChannel(actorID string, initialMessage []byte) (string, error) {
	a, err := s.actor(actorID)
	if err != nil {
		return "", err
	}

	ch := &channel{id: uuid.NewString(), actorID: actorID}
	s.channels.Store(ch.id, ch)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.record(s.now(), "ChannelOpened", initialMessage)
	return ch.id, nil
}

func (s *Stage) SendOnChannel(channelID string, message []byte) error {
	var a *actor
	found := false
	s.channels.Compute(channelID, func(ch *channel, loaded bool) (*channel, bool) {
		if !loaded {
			return nil, true
		}
		found = true
		ch.messages++
		a, _ = s.actors.Load(ch.actorID)
		return ch, false
	})
	if !found {
		return channelNotFound(channelID)
	}
	if a != nil {
		a.mu.Lock()
		a.record(s.now(), "ChannelMessage", message)
		a.mu.Unlock()
	}
	return nil
}

func (s *Stage) CloseChannel(channelID string) error {
	if _, ok := s.channels.LoadAndDelete(channelID); !ok {
		return channelNotFound(channelID)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *Stage) actor(id string) (*actor, error) {
	a, ok := s.actors.Load(id)
	if !ok {
		return nil, actorNotFound(id)
	}
	return a, nil
}

// record appends an event to the chain, a.mu must be held (or a not yet shared)
func (a *actor) record(at time.Time, eventType string, data []byte) {
	b, err := json.Marshal(event{
		EventType: eventType,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Data:      data,
	})
	if err != nil {
		return
	}
	a.events = append(a.events, b)
}

func actorNotFound(id string) error {
	return fmt.Errorf("actor not found: %s", id)
}

func channelNotFound(id string) error {
	return fmt.Errorf("channel not found: %s", id)
}
