package server

import (
	"encoding/json"

	"github.com/gin-gonic/gin/binding"
)

const (
	eventAck              = "ack"
	eventJoinGame         = "join_game"
	eventLeaveGame        = "leave_game"
	eventStreamStart      = "stream:start"
	eventStreamStop       = "stream:stop"
	eventStreamStarted    = "stream:started"
	eventStreamStopped    = "stream:stopped"
	eventSignalingOffer   = "signaling:offer"
	eventSignalingAnswer  = "signaling:answer"
	eventSignalingICE     = "signaling:ice"
	eventAnimationCommand = "animation:command"
	eventPresenceJoined   = "presence:joined"
	eventPresenceLeft     = "presence:left"
)

// inboundFrame is what clients send. id is echoed on the ack; frames
// without an id are not acknowledged.
type inboundFrame struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	ID    *int64 `json:"id,omitempty"`
	Data  any    `json:"data"`
}

func encodeFrame(event string, id *int64, data any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, ID: id, Data: data})
}

type ackPayload struct {
	Status string    `json:"status"`
	Reason string    `json:"reason,omitempty"`
	State  *Snapshot `json:"state,omitempty"`
}

func ackOK() ackPayload {
	return ackPayload{Status: "ok"}
}

func ackError(reason string) ackPayload {
	return ackPayload{Status: "error", Reason: reason}
}

type joinGameRequest struct {
	GameID      string `json:"gameId" binding:"required,max=64"`
	DisplayName string `json:"displayName" binding:"omitempty,displayname"`
}

type streamRequest struct {
	StreamID string         `json:"streamId" binding:"omitempty,max=128"`
	Metadata map[string]any `json:"metadata"`
}

type signalingRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required,max=64"`
	Data         any    `json:"data" binding:"required"`
}

type animationRequest struct {
	Command    string         `json:"command" binding:"required,max=128"`
	Parameters map[string]any `json:"parameters"`
}

type presenceJoinedEvent struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type presenceLeftEvent struct {
	UserID string `json:"userId"`
}

type streamEvent struct {
	StreamID string         `json:"streamId"`
	UserID   string         `json:"userId"`
	GameID   string         `json:"gameId"`
	Metadata map[string]any `json:"metadata"`
}

type signalingEvent struct {
	GameID       string `json:"gameId"`
	FromUserID   string `json:"fromUserId"`
	TargetUserID string `json:"targetUserId"`
	Data         any    `json:"data"`
}

type animationEvent struct {
	GameID     string         `json:"gameId"`
	UserID     string         `json:"userId"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

// decodePayload unmarshals an event body into dest and runs the binding
// validator over it. A missing body decodes as an empty object.
func decodePayload(raw json.RawMessage, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &Rejection{Kind: KindValidation, Reason: "invalid payload", Err: err}
	}
	registerValidators()
	if err := binding.Validator.ValidateStruct(dest); err != nil {
		return &Rejection{Kind: KindValidation, Reason: resolveBindError(err, payloadMessages, "invalid payload"), Err: err}
	}
	return nil
}

var payloadMessages = bindMessages{
	"GameID": {
		"required": "gameId and userId are required",
		"max":      "gameId is too long",
	},
	"DisplayName": {
		"displayname": "displayName must be 1-40 printable characters",
	},
	"StreamID": {
		"max": "streamId is too long",
	},
	"TargetUserID": {
		"required": "targetUserId is required",
		"max":      "targetUserId is too long",
	},
	"Data": {
		"required": "data is required",
	},
	"Command": {
		"required": "command is required",
		"max":      "command is too long",
	},
}
