package server

import (
	"fmt"

	"github.com/ValentinKolb/theaterctl/rpc/common"
)

func NewStageServerAdapter(stage *Stage) IRPCServerAdapter {
	return &stageServerAdapterImpl{stage: stage}
}

type stageServerAdapterImpl struct {
	stage *Stage
}

// request fields of all commands, unused fields stay empty
type commandFields struct {
	ID             string                    `json:"id"`
	Manifest       string                    `json:"manifest"`
	InitialState   common.Bytes              `json:"initial_state"`
	Data           common.Bytes              `json:"data"`
	ActorID        common.ChannelParticipant `json:"actor_id"`
	InitialMessage common.Bytes              `json:"initial_message"`
	ChannelID      string                    `json:"channel_id"`
	Message        common.Bytes              `json:"message"`
}

func (adapter *stageServerAdapterImpl) Handle(cmd *common.Command) *common.Response {
	var f commandFields
	if err := cmd.Decode(&f); err != nil {
		return common.NewErrorResponse(fmt.Sprintf("invalid fields for %s: %s", cmd, err))
	}

	s := adapter.stage

	// Handle the different commands
	switch cmd.Name {
	case common.CmdListActors:
		return respond(common.RespActorList, common.ActorList{Actors: s.ListActors()}, nil)
	case common.CmdStartActor:
		id, err := s.StartActor(f.Manifest, f.InitialState)
		return respond(common.RespActorStarted, common.ActorRef{ID: id}, err)
	case common.CmdStopActor:
		err := s.StopActor(f.ID)
		return respond(common.RespActorStopped, common.ActorRef{ID: f.ID}, err)
	case common.CmdRestartActor:
		err := s.RestartActor(f.ID)
		return respond(common.RespRestarted, common.ActorRef{ID: f.ID}, err)
	case common.CmdGetActorState:
		state, err := s.ActorState(f.ID)
		return respond(common.RespActorState, common.ActorState{ID: f.ID, State: state}, err)
	case common.CmdGetActorEvents:
		events, err := s.ActorEvents(f.ID)
		return respond(common.RespActorEvents, common.ActorEvents{ID: f.ID, Events: events}, err)
	case common.CmdSendActorMessage:
		err := s.SendMessage(f.ID, f.Data)
		return respond(common.RespSentMessage, common.ActorRef{ID: f.ID}, err)
	case common.CmdRequestActorMessage:
		msg, err := s.RequestMessage(f.ID, f.Data)
		return respond(common.RespRequestedMessage, common.RequestedMessage{ID: f.ID, Message: nonNil(msg)}, err)
	case common.CmdOpenChannel:
		chID, err := s.OpenChannel(f.ActorID.Actor, f.InitialMessage)
		return respond(common.RespChannelOpened, common.ChannelOpened{ChannelID: chID, ActorID: f.ActorID}, err)
	case common.CmdSendOnChannel:
		err := s.SendOnChannel(f.ChannelID, f.Message)
		return respond(common.RespMessageSent, common.ChannelRef{ChannelID: f.ChannelID}, err)
	case common.CmdCloseChannel:
		err := s.CloseChannel(f.ChannelID)
		return respond(common.RespChannelClosed, common.ChannelRef{ChannelID: f.ChannelID}, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("unsupported command: %s", cmd))
	}
}

// respond builds the response for the result of a stage call
func respond(kind string, body any, err error) *common.Response {
	if err != nil {
		return common.NewErrorResponse(err.Error())
	}
	resp, err := common.NewResponse(kind, body)
	if err != nil {
		return common.NewErrorResponse(fmt.Sprintf("failed to encode %s: %s", kind, err))
	}
	return resp
}

func nonNil(b common.Bytes) common.Bytes {
	if b == nil {
		return common.Bytes{}
	}
	return b
}
