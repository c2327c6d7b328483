package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const playerColumns = "id,game_id,user_id,user_email,score,ready,created_at,screenshot_url,avatar_glb_url"

// SupabaseClient talks to the PostgREST and auth endpoints of a Supabase
// project. It implements both Games and Identity.
type SupabaseClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
}

func NewSupabaseClient(baseURL, apiKey string, timeout time.Duration) *SupabaseClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SupabaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *SupabaseClient) FetchUserProfile(ctx context.Context, token string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.apiKey)
	var profile Profile
	status, err := c.do(req, &profile)
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, newError(status, "Unable to resolve Supabase user profile.")
	}
	return &profile, nil
}

func (c *SupabaseClient) CreateGame(ctx context.Context, hostID string) (*Game, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		payload := []map[string]any{{
			"code":              newGameCode(),
			"host_id":           hostID,
			"started":           false,
			"round":             0,
			"phase":             PhaseLobby,
			"customize_ends_at": nil,
		}}
		var rows []Game
		err := c.rest(ctx, http.MethodPost, "/games", nil, payload, &rows)
		if IsConflict(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, newError(http.StatusBadGateway, "game insert returned no rows")
		}
		return &rows[0], nil
	}
	return nil, newError(http.StatusConflict, "Unable to generate a unique game code.")
}

func (c *SupabaseClient) FetchGame(ctx context.Context, id string) (*Game, error) {
	params := url.Values{
		"id":     {"eq." + id},
		"select": {"*"},
		"limit":  {"1"},
	}
	var rows []Game
	if err := c.rest(ctx, http.MethodGet, "/games", params, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

func (c *SupabaseClient) UpdateGame(ctx context.Context, id string, update GameUpdate) (*Game, error) {
	params := url.Values{"id": {"eq." + id}}
	var rows []Game
	if err := c.rest(ctx, http.MethodPatch, "/games", params, update.Fields(), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

func (c *SupabaseClient) StartGame(ctx context.Context, id string, duration time.Duration) (*Game, error) {
	return c.UpdateGame(ctx, id, StartUpdate(c.now(), duration))
}

func (c *SupabaseClient) FetchPlayer(ctx context.Context, gameID, userID string) (*Player, error) {
	params := url.Values{
		"game_id": {"eq." + gameID},
		"user_id": {"eq." + userID},
		"select":  {"*"},
		"limit":   {"1"},
	}
	var rows []Player
	if err := c.rest(ctx, http.MethodGet, "/players", params, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("player %s in game %s: %w", userID, gameID, ErrNotFound)
	}
	return &rows[0], nil
}

func (c *SupabaseClient) EnsurePlayer(ctx context.Context, gameID, userID, email string) (*Player, error) {
	existing, err := c.FetchPlayer(ctx, gameID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	payload := []map[string]any{{
		"game_id":    gameID,
		"user_id":    userID,
		"user_email": email,
		"score":      0,
		"ready":      false,
	}}
	var rows []Player
	if err := c.rest(ctx, http.MethodPost, "/players", nil, payload, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Player{GameID: gameID, UserID: userID, UserEmail: email}, nil
	}
	return &rows[0], nil
}

func (c *SupabaseClient) FetchPlayersFull(ctx context.Context, gameID string) ([]Player, error) {
	params := url.Values{
		"game_id": {"eq." + gameID},
		"select":  {playerColumns},
		"order":   {"created_at.asc"},
	}
	rows := make([]Player, 0)
	if err := c.rest(ctx, http.MethodGet, "/players", params, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *SupabaseClient) InsertVote(ctx context.Context, vote Vote) (*Vote, error) {
	vote.ID = ""
	var rows []Vote
	if err := c.rest(ctx, http.MethodPost, "/votes", nil, vote, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &vote, nil
	}
	return &rows[0], nil
}

func (c *SupabaseClient) FetchVotes(ctx context.Context, gameID string, round int) ([]Vote, error) {
	params := url.Values{
		"game_id": {"eq." + gameID},
		"round":   {"eq." + strconv.Itoa(round)},
		"select":  {"game_id,round,target_id,voter_id,stars"},
	}
	rows := make([]Vote, 0)
	if err := c.rest(ctx, http.MethodGet, "/votes", params, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *SupabaseClient) UpdatePlayerScore(ctx context.Context, playerID string, score int) (*Player, error) {
	params := url.Values{"id": {"eq." + playerID}}
	var rows []Player
	if err := c.rest(ctx, http.MethodPatch, "/players", params, map[string]any{"score": score}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	return &rows[0], nil
}

func (c *SupabaseClient) rest(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	endpoint := c.baseURL + "/rest/v1" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	_, err = c.do(req, out)
	return err
}

func (c *SupabaseClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, newError(http.StatusBadGateway, "supabase request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, newError(http.StatusBadGateway, "failed to read supabase response")
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, &Error{StatusCode: resp.StatusCode, Message: extractErrorMessage(resp.StatusCode, body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, newError(http.StatusBadGateway, "invalid supabase response: %v", err)
	}
	return resp.StatusCode, nil
}

func extractErrorMessage(status int, body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err == nil {
		if fields, ok := payload.(map[string]any); ok {
			if msg, ok := fields["message"].(string); ok && msg != "" {
				return msg
			}
			if msg, ok := fields["error"].(string); ok && msg != "" {
				return msg
			}
		}
		return strings.TrimSpace(string(body))
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("Unexpected supabase error (%d)", status)
}
