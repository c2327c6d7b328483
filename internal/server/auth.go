package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"dress-to-impress/internal/store"
)

const authTokenParam = "token"

// credentialFromRequest prefers the explicit token parameter and falls back
// to an Authorization: Bearer header.
func credentialFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get(authTokenParam)); token != "" {
		return token
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// authenticate exchanges a credential for the identity carried by a new
// session. It never touches the session store.
func (s *Server) authenticate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, reject(KindAuthentication, reasonAuthRequired)
	}
	profile, err := s.identity.FetchUserProfile(ctx, token)
	if err != nil {
		return Session{}, &Rejection{Kind: KindAuthentication, Reason: reasonInvalidToken, Err: err}
	}
	if profile == nil || profile.ID == "" {
		return Session{}, reject(KindAuthentication, reasonInvalidToken)
	}
	return Session{
		UserID:      profile.ID,
		UserEmail:   profile.Email,
		DisplayName: profile.DisplayName(),
	}, nil
}

// Membership is what the guard learned while authorizing a user.
type Membership struct {
	Game   *store.Game
	Player *store.Player
	IsHost bool
}

// MembershipGuard checks host or player status against the store on every
// call.
type MembershipGuard struct {
	games store.Games
}

func NewMembershipGuard(games store.Games) *MembershipGuard {
	return &MembershipGuard{games: games}
}

// Authorize admits the host or any registered player of the game.
func (g *MembershipGuard) Authorize(ctx context.Context, gameID, userID string) (*Membership, error) {
	game, err := g.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.HostID == userID {
		return &Membership{Game: game, IsHost: true}, nil
	}
	player, err := g.games.FetchPlayer(ctx, gameID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reject(KindAuthorization, reasonNotParticipant)
		}
		return nil, rejectStore("Unable to validate membership", err)
	}
	return &Membership{Game: game, Player: player}, nil
}

// AuthorizeHost admits only the host. action completes the forbidden
// message, e.g. "update game".
func (g *MembershipGuard) AuthorizeHost(ctx context.Context, gameID, userID, action string) (*Membership, error) {
	game, err := g.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.HostID != userID {
		return nil, reject(KindAuthorization, "Only host can "+action)
	}
	return &Membership{Game: game, IsHost: true}, nil
}

func (g *MembershipGuard) loadGame(ctx context.Context, gameID string) (*store.Game, error) {
	game, err := g.games.FetchGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reject(KindNotFound, reasonGameNotFound)
		}
		return nil, rejectStore("Unable to load game", err)
	}
	return game, nil
}
