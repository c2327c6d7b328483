package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// client is one live websocket. Frames reach the socket only through send,
// drained by writePump.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	limiter   *rate.Limiter
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int, limiter *rate.Limiter) *client {
	if buffer <= 0 {
		buffer = 64
	}
	return &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, buffer),
		limiter: limiter,
		done:    make(chan struct{}),
	}
}

// enqueue never blocks. It reports false when the client is gone or its
// buffer is full.
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	ctx, cancel := s.storeContext(c.Request.Context())
	session, err := s.authenticate(ctx, credentialFromRequest(c.Request))
	cancel()
	if err != nil {
		rej := asRejection(err, reasonInvalidToken)
		s.log.Warn().Err(err).Str("remote", c.ClientIP()).Msg("websocket connection refused")
		c.JSON(http.StatusUnauthorized, gin.H{"error": rej.Reason})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", session.UserID).Msg("websocket upgrade failed")
		return
	}
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RelayRatePerSecond), s.cfg.RelayBurst)
	cl := newClient(conn, s.cfg.WSSendBuffer, limiter)
	s.sessions.Merge(cl.id, SessionPatch{
		UserID:      strPtr(session.UserID),
		UserEmail:   strPtr(session.UserEmail),
		DisplayName: strPtr(session.DisplayName),
	})
	s.hub.add(cl)
	s.log.Info().Str("conn_id", cl.id).Str("user_id", session.UserID).Msg("websocket connected")

	go s.writePump(cl)
	s.readPump(cl)
}

func (s *Server) readPump(cl *client) {
	defer s.disconnect(cl)
	cl.conn.SetReadLimit(s.cfg.WSMaxMessageBytes)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Str("conn_id", cl.id).Msg("websocket read failed")
			}
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Debug().Err(err).Str("conn_id", cl.id).Msg("malformed frame")
			continue
		}
		ack := s.dispatch(cl, frame)
		if frame.ID == nil {
			continue
		}
		reply, err := encodeFrame(eventAck, frame.ID, ack)
		if err != nil {
			s.log.Error().Err(err).Str("conn_id", cl.id).Msg("encode ack failed")
			continue
		}
		if !cl.enqueue(reply) {
			s.log.Warn().Str("conn_id", cl.id).Str("event", frame.Event).Msg("send buffer full, dropping ack")
		}
	}
}

func (s *Server) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.close()
	}()
	for {
		select {
		case <-cl.done:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug().Err(err).Str("conn_id", cl.id).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect runs once per connection after its read loop ends: the room is
// told the user left, then every trace of the connection is dropped.
func (s *Server) disconnect(cl *client) {
	session := s.sessions.Get(cl.id)
	if session.GameID != "" {
		s.leaveRoom(cl.id, session)
	}
	s.hub.remove(cl.id)
	s.sessions.Remove(cl.id)
	cl.close()
	s.log.Info().Str("conn_id", cl.id).Str("user_id", session.UserID).Msg("websocket disconnected")
}

// dispatch runs one inbound event to completion and returns its ack.
func (s *Server) dispatch(cl *client, frame inboundFrame) ackPayload {
	ctx, cancel := s.storeContext(context.Background())
	defer cancel()
	var err error
	var ack ackPayload
	switch frame.Event {
	case eventJoinGame:
		ack, err = s.handleJoinGame(ctx, cl, frame.Data)
	case eventLeaveGame:
		err = s.handleLeaveGame(cl)
	case eventStreamStart:
		err = s.relayStream(cl, eventStreamStarted, frame.Data)
	case eventStreamStop:
		err = s.relayStream(cl, eventStreamStopped, frame.Data)
	case eventSignalingOffer, eventSignalingAnswer, eventSignalingICE:
		err = s.relaySignaling(cl, frame.Event, frame.Data)
	case eventAnimationCommand:
		err = s.relayAnimation(cl, frame.Data)
	default:
		err = reject(KindProtocol, reasonUnknownEvent)
	}
	if err != nil {
		rej := asRejection(err, "request failed")
		s.log.Debug().Err(err).Str("conn_id", cl.id).Str("event", frame.Event).Str("kind", string(rej.Kind)).Msg("event rejected")
		return ackError(rej.Reason)
	}
	if ack.Status == "" {
		return ackOK()
	}
	return ack
}
