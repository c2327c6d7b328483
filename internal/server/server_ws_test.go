package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id"`
	Data  json.RawMessage `json:"data"`
}

type wsAck struct {
	Status string    `json:"status"`
	Reason string    `json:"reason"`
	State  *Snapshot `json:"state"`
}

func wsURL(env *testEnv, token string) string {
	base := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	if token == "" {
		return base
	}
	return base + "?token=" + url.QueryEscape(token)
}

func dialWS(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env, token), nil)
	if err != nil {
		if resp != nil {
			t.Fatalf("websocket dial refused with status %d: %v", resp.StatusCode, err)
		}
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

var frameSeq int64

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) int64 {
	t.Helper()
	frameSeq++
	id := frameSeq
	payload, err := json.Marshal(map[string]any{"event": event, "id": id, "data": data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write websocket frame: %v", err)
	}
	return id
}

func readWSFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) wsFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	var frame wsFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decode websocket frame %q: %v", payload, err)
	}
	return frame
}

// expectEvent reads the next frame and requires it to be event.
func expectEvent(t *testing.T, conn *websocket.Conn, event string, dest any) {
	t.Helper()
	frame := readWSFrame(t, conn, 5*time.Second)
	if frame.Event != event {
		t.Fatalf("expected %s frame, got %s (%s)", event, frame.Event, frame.Data)
	}
	if dest != nil {
		if err := json.Unmarshal(frame.Data, dest); err != nil {
			t.Fatalf("decode %s payload: %v", event, err)
		}
	}
}

// request sends an event and returns its ack. The ack must be the next frame.
func request(t *testing.T, conn *websocket.Conn, event string, data any) wsAck {
	t.Helper()
	id := sendEvent(t, conn, event, data)
	frame := readWSFrame(t, conn, 5*time.Second)
	if frame.Event != eventAck {
		t.Fatalf("expected ack for %s, got %s (%s)", event, frame.Event, frame.Data)
	}
	if frame.ID == nil || *frame.ID != id {
		t.Fatalf("expected ack id %d, got %v", id, frame.ID)
	}
	var ack wsAck
	if err := json.Unmarshal(frame.Data, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return ack
}

func joinRoom(t *testing.T, conn *websocket.Conn, gameID string) wsAck {
	t.Helper()
	ack := request(t, conn, eventJoinGame, map[string]any{"gameId": gameID})
	if ack.Status != "ok" {
		t.Fatalf("expected join ok, got %+v", ack)
	}
	return ack
}

func expectNoWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	if _, payload, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no websocket message within %s, got %s", timeout, payload)
	} else {
		netErr, ok := err.(net.Error)
		if !ok || !netErr.Timeout() {
			t.Fatalf("expected websocket timeout, got %v", err)
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestWebsocketRefusesMissingCredential(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(env, ""), nil)
	if err == nil {
		t.Fatal("expected dial to be refused")
	}
	if resp == nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
	if body := decodeBody(t, resp); body["error"] != reasonAuthRequired {
		t.Fatalf("expected %q, got %#v", reasonAuthRequired, body)
	}
	if stats := env.srv.Stats(); stats.Sessions != 0 || stats.Connections != 0 {
		t.Fatalf("expected no session, got %+v", stats)
	}
}

func TestWebsocketRefusesInvalidToken(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(env, "nope"), nil)
	if err == nil {
		t.Fatal("expected dial to be refused")
	}
	if resp == nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
	if body := decodeBody(t, resp); body["error"] != reasonInvalidToken {
		t.Fatalf("expected %q, got %#v", reasonInvalidToken, body)
	}
	if env.srv.Stats().Sessions != 0 {
		t.Fatal("expected no session after refusal")
	}
}

func TestWebsocketAcceptsBearerHeader(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	gameID := createGame(t, env)

	header := http.Header{}
	header.Set("Authorization", "bearer "+hostToken)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env, ""), header)
	if err != nil {
		if resp != nil {
			t.Fatalf("dial refused with status %d", resp.StatusCode)
		}
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	defer conn.Close()

	ack := joinRoom(t, conn, gameID)
	if ack.State == nil || ack.State.Game.ID != gameID {
		t.Fatalf("expected join state for %s, got %+v", gameID, ack.State)
	}
}

func TestJoinGameRejectsNonParticipant(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	gameID := createGame(t, env)

	host := dialWS(t, env, hostToken)
	joinRoom(t, host, gameID)

	outsider := dialWS(t, env, carolToken)
	ack := request(t, outsider, eventJoinGame, map[string]any{"gameId": gameID})
	if ack.Status != "error" || ack.Reason != reasonNotParticipant {
		t.Fatalf("expected not-participant error, got %+v", ack)
	}
	expectNoWSMessage(t, host, 300*time.Millisecond)

	ack = request(t, outsider, eventJoinGame, map[string]any{"gameId": "missing"})
	if ack.Status != "error" || ack.Reason != reasonGameNotFound {
		t.Fatalf("expected game-not-found error, got %+v", ack)
	}
	ack = request(t, outsider, eventJoinGame, map[string]any{})
	if ack.Status != "error" || ack.Reason != "gameId and userId are required" {
		t.Fatalf("expected missing gameId error, got %+v", ack)
	}
	if members := env.srv.rooms.Members(roomName(gameID)); len(members) != 1 {
		t.Fatalf("expected only the host in the room, got %v", members)
	}
}

func TestJoinGamePresenceAndIdempotence(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	gameID := createGame(t, env)
	addPlayer(t, env, gameID, aliceToken)

	host := dialWS(t, env, hostToken)
	ack := joinRoom(t, host, gameID)
	if ack.State == nil || ack.State.Game.Phase != "lobby" {
		t.Fatalf("expected lobby state, got %+v", ack.State)
	}

	alice := dialWS(t, env, aliceToken)
	ack = request(t, alice, eventJoinGame, map[string]any{"gameId": gameID, "displayName": "  Alice   A "})
	if ack.Status != "ok" {
		t.Fatalf("expected join ok, got %+v", ack)
	}
	if ack.State == nil || len(ack.State.Players) != 2 {
		t.Fatalf("expected two players in state, got %+v", ack.State)
	}

	var joined presenceJoinedEvent
	expectEvent(t, host, eventPresenceJoined, &joined)
	if joined.UserID != aliceUserID || joined.DisplayName != "Alice A" {
		t.Fatalf("unexpected presence payload %+v", joined)
	}

	joinRoom(t, alice, gameID)
	expectNoWSMessage(t, host, 300*time.Millisecond)
	if members := env.srv.rooms.Members(roomName(gameID)); len(members) != 2 {
		t.Fatalf("expected two members, got %v", members)
	}
}

func TestJoinGameDefaultsDisplayNameFromProfile(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	gameID := createGame(t, env)
	addPlayer(t, env, gameID, aliceToken)

	alice := dialWS(t, env, aliceToken)
	joinRoom(t, alice, gameID)

	host := dialWS(t, env, hostToken)
	joinRoom(t, host, gameID)

	var joined presenceJoinedEvent
	expectEvent(t, alice, eventPresenceJoined, &joined)
	if joined.DisplayName != "Hostess" {
		t.Fatalf("expected full name from metadata, got %q", joined.DisplayName)
	}
}

func TestLeaveGame(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	gameID := createGame(t, env)
	addPlayer(t, env, gameID, aliceToken)

	host := dialWS(t, env, hostToken)
	joinRoom(t, host, gameID)
	alice := dialWS(t, env, aliceToken)
	joinRoom(t, alice, gameID)
	expectEvent(t, host, eventPresenceJoined, nil)

	if ack := request(t, alice, eventLeaveGame, nil); ack.Status != "ok" {
		t.Fatalf("expected leave ok, got %+v", ack)
	}
	var left presenceLeftEvent
	expectEvent(t, host, eventPresenceLeft, &left)
	if left.UserID != aliceUserID {
		t.Fatalf("expected alice to leave, got %+v", left)
	}

	ack := request(t, alice, eventLeaveGame, nil)
	if ack.Status != "error" || ack.Reason != reasonNotInRoom {
		t.Fatalf("expected not-in-room error, got %+v", ack)
	}
}

func TestDisconnectEmitsSinglePresenceLeft(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	gameID := createGame(t, env)
	addPlayer(t, env, gameID, aliceToken)

	host := dialWS(t, env, hostToken)
	joinRoom(t, host, gameID)
	alice := dialWS(t, env, aliceToken)
	joinRoom(t, alice, gameID)
	expectEvent(t, host, eventPresenceJoined, nil)

	_ = alice.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = alice.Close()

	var left presenceLeftEvent
	expectEvent(t, host, eventPresenceLeft, &left)
	if left.UserID != aliceUserID {
		t.Fatalf("expected alice to leave, got %+v", left)
	}
	expectNoWSMessage(t, host, 300*time.Millisecond)
	waitFor(t, 2*time.Second, func() bool { return env.srv.Stats().Sessions == 1 })

	_ = host.Close()
	waitFor(t, 2*time.Second, func() bool {
		stats := env.srv.Stats()
		return stats.Sessions == 0 && stats.Rooms == 0 && stats.Connections == 0
	})
}

func TestJoinOtherGameLeavesPreviousRoom(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	first := createGame(t, env)
	second := createGame(t, env)
	addPlayer(t, env, first, aliceToken)
	addPlayer(t, env, second, aliceToken)

	alice := dialWS(t, env, aliceToken)
	joinRoom(t, alice, first)
	host := dialWS(t, env, hostToken)
	joinRoom(t, host, first)
	expectEvent(t, alice, eventPresenceJoined, nil)

	joinRoom(t, host, second)
	var left presenceLeftEvent
	expectEvent(t, alice, eventPresenceLeft, &left)
	if left.UserID != hostUserID {
		t.Fatalf("expected host to leave first room, got %+v", left)
	}
	connID := firstConn(t, env, hostUserID)
	if env.srv.rooms.Contains(roomName(first), connID) {
		t.Fatal("host should not remain in the first room")
	}
	if got := env.srv.sessions.Get(connID).GameID; got != second {
		t.Fatalf("expected session game %s, got %s", second, got)
	}
}

// firstConn finds the connection id of a user's live session.
func firstConn(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	env.srv.hub.mu.RLock()
	defer env.srv.hub.mu.RUnlock()
	for id := range env.srv.hub.clients {
		if env.srv.sessions.Get(id).UserID == userID {
			return id
		}
	}
	t.Fatalf("no connection for %s", userID)
	return ""
}

func TestRelayRequiresRoom(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	alice := dialWS(t, env, aliceToken)

	for _, event := range []string{eventStreamStart, eventStreamStop, eventSignalingOffer, eventAnimationCommand} {
		ack := request(t, alice, event, map[string]any{"targetUserId": "x", "data": map[string]any{}, "command": "wave"})
		if ack.Status != "error" || ack.Reason != reasonNotInRoom {
			t.Fatalf("%s: expected not-in-room error, got %+v", event, ack)
		}
	}
}

func TestUnknownEvent(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	alice := dialWS(t, env, aliceToken)

	ack := request(t, alice, "dance", nil)
	if ack.Status != "error" || ack.Reason != reasonUnknownEvent {
		t.Fatalf("expected unknown event error, got %+v", ack)
	}
	// the connection survives protocol errors
	ack = request(t, alice, eventLeaveGame, nil)
	if ack.Reason != reasonNotInRoom {
		t.Fatalf("expected not-in-room error, got %+v", ack)
	}
}

func TestRelayExcludesSender(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	gameID := createGame(t, env)
	addPlayer(t, env, gameID, aliceToken)
	addPlayer(t, env, gameID, bobToken)

	alice := dialWS(t, env, aliceToken)
	joinRoom(t, alice, gameID)
	bob := dialWS(t, env, bobToken)
	joinRoom(t, bob, gameID)
	expectEvent(t, alice, eventPresenceJoined, nil)

	ack := request(t, alice, eventSignalingOffer, map[string]any{
		"targetUserId": bobUserID,
		"data":         map[string]any{"sdp": "v=0"},
	})
	if ack.Status != "ok" {
		t.Fatalf("expected relay ok, got %+v", ack)
	}
	var offer signalingEvent
	expectEvent(t, bob, eventSignalingOffer, &offer)
	if offer.FromUserID != aliceUserID || offer.TargetUserID != bobUserID || offer.GameID != gameID {
		t.Fatalf("unexpected offer %+v", offer)
	}

	ack = request(t, alice, eventStreamStart, nil)
	if ack.Status != "ok" {
		t.Fatalf("expected stream start ok, got %+v", ack)
	}
	var started streamEvent
	expectEvent(t, bob, eventStreamStarted, &started)
	if started.StreamID != aliceUserID || started.UserID != aliceUserID || started.Metadata == nil {
		t.Fatalf("unexpected stream payload %+v", started)
	}

	ack = request(t, bob, eventAnimationCommand, map[string]any{"command": "spin"})
	if ack.Status != "ok" {
		t.Fatalf("expected animation ok, got %+v", ack)
	}
	var anim animationEvent
	expectEvent(t, alice, eventAnimationCommand, &anim)
	if anim.Command != "spin" || anim.UserID != bobUserID || anim.Parameters == nil {
		t.Fatalf("unexpected animation payload %+v", anim)
	}

	expectNoWSMessage(t, alice, 300*time.Millisecond)
	expectNoWSMessage(t, bob, 100*time.Millisecond)
}

func TestRelayValidatesPayload(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	gameID := createGame(t, env)

	host := dialWS(t, env, hostToken)
	joinRoom(t, host, gameID)

	ack := request(t, host, eventSignalingICE, map[string]any{"data": map[string]any{}})
	if ack.Status != "error" || ack.Reason != "targetUserId is required" {
		t.Fatalf("expected missing target error, got %+v", ack)
	}
	ack = request(t, host, eventSignalingAnswer, map[string]any{"targetUserId": "x"})
	if ack.Status != "error" || ack.Reason != "data is required" {
		t.Fatalf("expected missing data error, got %+v", ack)
	}
	ack = request(t, host, eventAnimationCommand, map[string]any{})
	if ack.Status != "error" || ack.Reason != "command is required" {
		t.Fatalf("expected missing command error, got %+v", ack)
	}
}

func TestRelayRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RelayRatePerSecond = 0.001
	cfg.RelayBurst = 2
	env := newTestEnv(t, cfg, nil)
	gameID := createGame(t, env)

	host := dialWS(t, env, hostToken)
	joinRoom(t, host, gameID)

	for i := 0; i < 2; i++ {
		if ack := request(t, host, eventAnimationCommand, map[string]any{"command": "wave"}); ack.Status != "ok" {
			t.Fatalf("relay %d: expected ok, got %+v", i, ack)
		}
	}
	ack := request(t, host, eventAnimationCommand, map[string]any{"command": "wave"})
	if ack.Status != "error" || ack.Reason != reasonRateLimited {
		t.Fatalf("expected rate limited, got %+v", ack)
	}
}

func TestFramesWithoutIDAreNotAcked(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	alice := dialWS(t, env, aliceToken)

	if err := alice.WriteMessage(websocket.TextMessage, []byte(`{"event":"leave_game"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := alice.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectNoWSMessage(t, alice, 300*time.Millisecond)
}
