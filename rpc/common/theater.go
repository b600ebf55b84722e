package common

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// --------------------------------------------------------------------------
// Theater Vocabulary
// --------------------------------------------------------------------------

// Command names understood by the Theater server
const (
	CmdListActors          = "ListActors"
	CmdStartActor          = "StartActor"
	CmdStopActor           = "StopActor"
	CmdRestartActor        = "RestartActor"
	CmdGetActorState       = "GetActorState"
	CmdGetActorEvents      = "GetActorEvents"
	CmdSendActorMessage    = "SendActorMessage"
	CmdRequestActorMessage = "RequestActorMessage"
	CmdOpenChannel         = "OpenChannel"
	CmdSendOnChannel       = "SendOnChannel"
	CmdCloseChannel        = "CloseChannel"
)

// Response kinds of the Theater server
const (
	RespActorList        = "ActorList"
	RespActorStarted     = "ActorStarted"
	RespActorStopped     = "ActorStopped"
	RespRestarted        = "Restarted"
	RespActorState       = "ActorState"
	RespActorEvents      = "ActorEvents"
	RespSentMessage      = "SentMessage"
	RespRequestedMessage = "RequestedMessage"
	RespChannelOpened    = "ChannelOpened"
	RespMessageSent      = "MessageSent"
	RespChannelClosed    = "ChannelClosed"
	RespError            = "Error"
)

// ChannelParticipant identifies the actor end of a channel ({"Actor":"<id>"})
type ChannelParticipant struct {
	Actor string `json:"Actor"`
}

// Response bodies

type ActorList struct {
	Actors []string `json:"actors"`
}

// ActorRef is the body of all responses that only carry the actor id
// (ActorStarted, ActorStopped, Restarted, SentMessage)
type ActorRef struct {
	ID string `json:"id"`
}

type ActorState struct {
	ID    string `json:"id"`
	State Bytes  `json:"state"`
}

type ActorEvents struct {
	ID     string            `json:"id"`
	Events []json.RawMessage `json:"events"`
}

type RequestedMessage struct {
	ID      string `json:"id"`
	Message Bytes  `json:"message"`
}

type ChannelOpened struct {
	ChannelID string             `json:"channel_id"`
	ActorID   ChannelParticipant `json:"actor_id"`
}

// ChannelRef is the body of MessageSent and ChannelClosed
type ChannelRef struct {
	ChannelID string `json:"channel_id"`
}

// --------------------------------------------------------------------------
// Bytes
// --------------------------------------------------------------------------

// Bytes is binary data encoded as a JSON array of numbers, the way the Theater
// server encodes byte vectors. Decoding also accepts a base64 string as used by
// older clients. A nil Bytes encodes as null.
type Bytes []byte

// MarshalJSON implements the json.Marshaler interface for Bytes
func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface for Bytes
func (b *Bytes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("invalid base64 bytes: %w", err)
		}
		*b = decoded
		return nil
	default:
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return fmt.Errorf("byte value out of range at index %d: %d", i, v)
			}
			out[i] = byte(v)
		}
		*b = out
		return nil
	}
}
