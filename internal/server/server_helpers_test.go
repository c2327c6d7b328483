package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func doRequest(t *testing.T, env *testEnv, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, env.ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
}

// createGame creates a game hosted by the host user and returns its id.
func createGame(t *testing.T, env *testEnv) string {
	t.Helper()
	resp := doRequest(t, env, http.MethodPost, "/games", hostToken, nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	game, ok := body["game"].(map[string]any)
	if !ok {
		t.Fatalf("expected game object, got %#v", body)
	}
	return game["id"].(string)
}

// addPlayer registers the token's user as a player and returns the player id.
func addPlayer(t *testing.T, env *testEnv, gameID, token string) string {
	t.Helper()
	resp := doRequest(t, env, http.MethodPost, "/games/"+gameID+"/players", token, nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	player, ok := body["player"].(map[string]any)
	if !ok {
		t.Fatalf("expected player object, got %#v", body)
	}
	return player["id"].(string)
}
