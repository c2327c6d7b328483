package server

import (
	"encoding/json"
)

// relaySender returns the sender's session once it is known to be in a
// room and within its relay budget.
func (s *Server) relaySender(cl *client) (Session, error) {
	session := s.sessions.Get(cl.id)
	if session.GameID == "" || session.UserID == "" {
		return Session{}, reject(KindProtocol, reasonNotInRoom)
	}
	if cl.limiter != nil && !cl.limiter.Allow() {
		return Session{}, reject(KindRateLimited, reasonRateLimited)
	}
	return session, nil
}

func (s *Server) relayStream(cl *client, event string, raw json.RawMessage) error {
	session, err := s.relaySender(cl)
	if err != nil {
		return err
	}
	var req streamRequest
	if err := decodePayload(raw, &req); err != nil {
		return err
	}
	streamID := req.StreamID
	if streamID == "" {
		streamID = session.UserID
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	s.emitToRoom(session.GameID, event, streamEvent{
		StreamID: streamID,
		UserID:   session.UserID,
		GameID:   session.GameID,
		Metadata: metadata,
	}, cl.id)
	return nil
}

func (s *Server) relaySignaling(cl *client, event string, raw json.RawMessage) error {
	session, err := s.relaySender(cl)
	if err != nil {
		return err
	}
	var req signalingRequest
	if err := decodePayload(raw, &req); err != nil {
		return err
	}
	s.emitToRoom(session.GameID, event, signalingEvent{
		GameID:       session.GameID,
		FromUserID:   session.UserID,
		TargetUserID: req.TargetUserID,
		Data:         req.Data,
	}, cl.id)
	return nil
}

func (s *Server) relayAnimation(cl *client, raw json.RawMessage) error {
	session, err := s.relaySender(cl)
	if err != nil {
		return err
	}
	var req animationRequest
	if err := decodePayload(raw, &req); err != nil {
		return err
	}
	parameters := req.Parameters
	if parameters == nil {
		parameters = map[string]any{}
	}
	s.emitToRoom(session.GameID, eventAnimationCommand, animationEvent{
		GameID:     session.GameID,
		UserID:     session.UserID,
		Command:    req.Command,
		Parameters: parameters,
	}, cl.id)
	return nil
}
