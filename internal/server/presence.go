package server

import (
	"context"
	"encoding/json"
	"strings"
)

// handleJoinGame moves the connection into the game's room. Membership,
// the session's game id and the ack snapshot are all settled under the
// game's lock so the ack state is never older than a game:sync already
// queued to this connection.
func (s *Server) handleJoinGame(ctx context.Context, cl *client, raw json.RawMessage) (ackPayload, error) {
	var req joinGameRequest
	if err := decodePayload(raw, &req); err != nil {
		return ackPayload{}, err
	}
	gameID := strings.TrimSpace(req.GameID)
	session := s.sessions.Get(cl.id)
	if gameID == "" || session.UserID == "" {
		return ackPayload{}, reject(KindValidation, "gameId and userId are required")
	}
	if _, err := s.guard.Authorize(ctx, gameID, session.UserID); err != nil {
		s.log.Info().Err(err).Str("conn_id", cl.id).Str("user_id", session.UserID).Str("game_id", gameID).Msg("join refused")
		return ackPayload{}, err
	}
	if session.GameID != "" && session.GameID != gameID {
		s.leaveRoom(cl.id, session)
	}

	displayName := normalizeText(req.DisplayName)
	if displayName == "" {
		displayName = firstNonEmpty(session.DisplayName, session.UserEmail, session.UserID)
	}

	unlock := s.locks.lock(gameID)
	defer unlock()
	added := s.rooms.Join(roomName(gameID), cl.id)
	s.sessions.Merge(cl.id, SessionPatch{GameID: strPtr(gameID), DisplayName: strPtr(displayName)})
	if added {
		s.emitToRoom(gameID, eventPresenceJoined, presenceJoinedEvent{
			UserID:      session.UserID,
			DisplayName: displayName,
		}, cl.id)
		s.log.Info().Str("conn_id", cl.id).Str("user_id", session.UserID).Str("game_id", gameID).Msg("joined room")
	}

	ack := ackOK()
	snapshot, err := s.buildSnapshot(ctx, gameID)
	if err != nil {
		s.log.Warn().Err(err).Str("game_id", gameID).Msg("join snapshot failed")
		return ack, nil
	}
	ack.State = snapshot
	return ack, nil
}

func (s *Server) handleLeaveGame(cl *client) error {
	session := s.sessions.Get(cl.id)
	if session.GameID == "" {
		return reject(KindProtocol, reasonNotInRoom)
	}
	s.leaveRoom(cl.id, session)
	return nil
}

// leaveRoom drops the connection from its current room and tells the
// remaining members.
func (s *Server) leaveRoom(connID string, session Session) {
	if !s.rooms.Leave(roomName(session.GameID), connID) {
		s.sessions.Merge(connID, SessionPatch{GameID: strPtr("")})
		return
	}
	s.sessions.Merge(connID, SessionPatch{GameID: strPtr("")})
	if session.UserID != "" {
		s.emitToRoom(session.GameID, eventPresenceLeft, presenceLeftEvent{UserID: session.UserID}, connID)
	}
	s.log.Info().Str("conn_id", connID).Str("user_id", session.UserID).Str("game_id", session.GameID).Msg("left room")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
