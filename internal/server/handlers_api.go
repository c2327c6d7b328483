package server

import (
	"net/http"
	"time"

	"dress-to-impress/internal/store"

	"github.com/gin-gonic/gin"
)

const currentUserKey = "current_user"

type gameURI struct {
	GameID string `uri:"id" binding:"required"`
}

type startRequest struct {
	DurationSeconds *int `json:"duration_seconds" binding:"omitempty,min=30,max=3600"`
}

type phaseRequest struct {
	Phase           string     `json:"phase" binding:"required,phase"`
	Round           *int       `json:"round" binding:"omitempty,min=0"`
	CurrentPlayer   *string    `json:"current_player" binding:"omitempty,max=64"`
	CustomizeEndsAt *time.Time `json:"customize_ends_at"`
}

type voteRequest struct {
	GameID   string `json:"game_id" binding:"required"`
	Round    *int   `json:"round" binding:"required,min=0"`
	TargetID string `json:"target_id" binding:"required"`
	Stars    int    `json:"stars" binding:"required,min=1,max=5"`
}

type scoreRequest struct {
	GameID string `json:"game_id" binding:"required"`
	Round  *int   `json:"round" binding:"required,min=0"`
}

var startMessages = bindMessages{
	"DurationSeconds": {
		"min": "duration_seconds must be between 30 and 3600",
		"max": "duration_seconds must be between 30 and 3600",
	},
}

var phaseMessages = bindMessages{
	"Phase": {
		"required": "phase is required",
		"phase":    "phase must be a lowercase identifier",
	},
	"Round": {
		"min": "round must be zero or greater",
	},
	"CurrentPlayer": {
		"max": "current_player is too long",
	},
}

var voteMessages = bindMessages{
	"GameID":   {"required": "game_id is required"},
	"Round":    {"required": "round is required", "min": "round must be zero or greater"},
	"TargetID": {"required": "target_id is required"},
	"Stars": {
		"required": "stars must be between 1 and 5",
		"min":      "stars must be between 1 and 5",
		"max":      "stars must be between 1 and 5",
	},
}

var scoreMessages = bindMessages{
	"GameID": {"required": "game_id is required"},
	"Round":  {"required": "round is required", "min": "round must be zero or greater"},
}

// requireUser resolves the bearer token on every REST call.
func (s *Server) requireUser(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
		return
	}
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()
	session, err := s.authenticate(ctx, token)
	if err != nil {
		s.log.Info().Err(err).Str("path", c.FullPath()).Msg("request authentication failed")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reasonInvalidToken})
		return
	}
	c.Set(currentUserKey, session)
	c.Next()
}

func currentUser(c *gin.Context) Session {
	value, _ := c.Get(currentUserKey)
	session, _ := value.(Session)
	return session
}

func (s *Server) writeRejection(c *gin.Context, err error, reason string) {
	rej := asRejection(err, reason)
	c.JSON(rej.StatusCode(), gin.H{"error": rej.Detail()})
}

func (s *Server) handleCreateGame(c *gin.Context) {
	user := currentUser(c)
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()
	game, err := s.games.CreateGame(ctx, user.UserID)
	if err != nil {
		s.writeRejection(c, err, "Unable to create game")
		return
	}
	if _, err := s.games.EnsurePlayer(ctx, game.ID, user.UserID, user.UserEmail); err != nil {
		s.writeRejection(c, err, "Unable to add host to game")
		return
	}
	s.log.Info().Str("game_id", game.ID).Str("code", game.Code).Str("user_id", user.UserID).Msg("game created")
	c.JSON(http.StatusOK, gin.H{"game": game})
}

func (s *Server) handleEnsurePlayer(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	user := currentUser(c)
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()
	player, err := s.games.EnsurePlayer(ctx, uri.GameID, user.UserID, user.UserEmail)
	if err != nil {
		s.writeRejection(c, err, "Unable to join game")
		return
	}
	s.broadcastSnapshot(ctx, uri.GameID)
	c.JSON(http.StatusOK, gin.H{"player": player})
}

func (s *Server) handleStartGame(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	var req startRequest
	if !bindOptionalJSON(c, &req, startMessages, "invalid start request") {
		return
	}
	seconds := s.cfg.StartDurationSeconds
	if req.DurationSeconds != nil {
		seconds = *req.DurationSeconds
	}
	seconds = clampInt(seconds, minStartSeconds, maxStartSeconds)

	user := currentUser(c)
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()
	if _, err := s.guard.AuthorizeHost(ctx, uri.GameID, user.UserID, "start the game"); err != nil {
		s.writeRejection(c, err, "Unable to start game")
		return
	}
	game, err := s.games.StartGame(ctx, uri.GameID, time.Duration(seconds)*time.Second)
	if err != nil {
		s.writeRejection(c, err, "Unable to start game")
		return
	}
	s.log.Info().Str("game_id", game.ID).Int("duration_seconds", seconds).Msg("game started")
	s.broadcastSnapshot(ctx, uri.GameID)
	c.JSON(http.StatusOK, gin.H{"game": game})
}

func (s *Server) handleSyncGame(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	user := currentUser(c)
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()
	if _, err := s.guard.Authorize(ctx, uri.GameID, user.UserID); err != nil {
		s.writeRejection(c, err, "Unable to load game")
		return
	}
	snapshot, err := s.buildSnapshot(ctx, uri.GameID)
	if err != nil {
		s.writeRejection(c, err, "Unable to load game")
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleUpdatePhase passes the host's phase bookkeeping through to the
// store without checking which phase may follow which.
func (s *Server) handleUpdatePhase(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	var req phaseRequest
	if !bindJSON(c, &req, phaseMessages, "invalid phase update") {
		return
	}
	user := currentUser(c)
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()
	if _, err := s.guard.AuthorizeHost(ctx, uri.GameID, user.UserID, "update game"); err != nil {
		s.writeRejection(c, err, "Unable to update game")
		return
	}
	phase := normalizeText(req.Phase)
	update := store.GameUpdate{
		Phase:           &phase,
		Round:           req.Round,
		CurrentPlayer:   req.CurrentPlayer,
		CustomizeEndsAt: req.CustomizeEndsAt,
	}
	game, err := s.games.UpdateGame(ctx, uri.GameID, update)
	if err != nil {
		s.writeRejection(c, err, "Unable to update game")
		return
	}
	s.log.Info().Str("game_id", game.ID).Str("phase", game.Phase).Int("round", game.Round).Msg("phase updated")
	s.broadcastSnapshot(ctx, uri.GameID)
	c.JSON(http.StatusOK, game)
}

func (s *Server) handleSubmitVote(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, &req, voteMessages, "invalid vote") {
		return
	}
	user := currentUser(c)
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()
	_, err := s.games.InsertVote(ctx, store.Vote{
		GameID:   req.GameID,
		Round:    *req.Round,
		TargetID: req.TargetID,
		VoterID:  user.UserID,
		Stars:    req.Stars,
	})
	if err != nil {
		s.writeRejection(c, err, "Unable to record vote")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

// handleComputeScores adds each target's stars for the round to their score
// and moves the game to the scoreboard.
func (s *Server) handleComputeScores(c *gin.Context) {
	var req scoreRequest
	if !bindJSON(c, &req, scoreMessages, "invalid score request") {
		return
	}
	user := currentUser(c)
	ctx, cancel := s.storeContext(c.Request.Context())
	defer cancel()
	if _, err := s.guard.AuthorizeHost(ctx, req.GameID, user.UserID, "compute scores"); err != nil {
		s.writeRejection(c, err, "Unable to compute scores")
		return
	}
	votes, err := s.games.FetchVotes(ctx, req.GameID, *req.Round)
	if err != nil {
		s.writeRejection(c, err, "Unable to compute scores")
		return
	}
	players, err := s.games.FetchPlayersFull(ctx, req.GameID)
	if err != nil {
		s.writeRejection(c, err, "Unable to compute scores")
		return
	}

	scores, err := s.applyScores(ctx, votes, players)
	if err != nil {
		s.writeRejection(c, err, "Unable to compute scores")
		return
	}
	phase := store.PhaseScoreboard
	if _, err := s.games.UpdateGame(ctx, req.GameID, store.GameUpdate{Phase: &phase, ClearCurrentPlayer: true}); err != nil {
		s.writeRejection(c, err, "Unable to compute scores")
		return
	}
	s.log.Info().Str("game_id", req.GameID).Int("round", *req.Round).Int("scored", len(scores)).Msg("scores computed")
	s.broadcastSnapshot(ctx, req.GameID)
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
