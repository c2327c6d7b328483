package server

import (
	"context"
	"net/http"
	"slices"
	"time"

	"dress-to-impress/internal/config"
	"dress-to-impress/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server owns every piece of shared realtime state. Handlers reach sessions
// and rooms only through it.
type Server struct {
	games     store.Games
	identity  store.Identity
	guard     *MembershipGuard
	cfg       config.Config
	log       zerolog.Logger
	sessions  *SessionStore
	rooms     *RoomRegistry
	hub       *hub
	locks     *gameLocks
	upgrader  websocket.Upgrader
	startedAt time.Time
	now       func() time.Time
}

func New(games store.Games, identity store.Identity, cfg config.Config, logger zerolog.Logger) *Server {
	s := &Server{
		games:    games,
		identity: identity,
		guard:    NewMembershipGuard(games),
		cfg:      cfg,
		log:      logger.With().Str("component", "server").Logger(),
		sessions: NewSessionStore(),
		rooms:    NewRoomRegistry(),
		hub:      newHub(),
		locks:    newGameLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.startedAt = s.now()
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	registerValidators()
	return s
}

func (s *Server) Handler() http.Handler {
	if s.cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(s.corsConfig()))

	r.GET("/", s.handleStatus)
	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebsocket)

	api := r.Group("/", s.requireUser)
	api.POST("/games", s.handleCreateGame)
	api.POST("/games/:id/players", s.handleEnsurePlayer)
	api.POST("/games/:id/start", s.handleStartGame)
	api.GET("/games/:id/sync", s.handleSyncGame)
	api.PATCH("/games/:id/phase", s.handleUpdatePhase)
	api.POST("/votes", s.handleSubmitVote)
	api.POST("/score/compute", s.handleComputeScores)
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Extensions", "Sec-WebSocket-Protocol"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if s.allowAnyOrigin() {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowedOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *Server) allowAnyOrigin() bool {
	return len(s.cfg.AllowedOrigins) == 0 || slices.Contains(s.cfg.AllowedOrigins, "*")
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.allowAnyOrigin() {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		event := s.log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("remote", c.ClientIP()).
			Msg("request")
	}
}

// storeContext detaches store calls from the caller's cancellation so a
// dropped client never aborts a mutation halfway, and bounds them by the
// configured store timeout.
func (s *Server) storeContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.cfg.StoreTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

// Stats reports live counts for the status page and shutdown logging.
type Stats struct {
	Connections int
	Sessions    int
	Rooms       int
}

func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.hub.count(),
		Sessions:    s.sessions.Count(),
		Rooms:       s.rooms.Count(),
	}
}

// Close drops every live connection. Their read loops run the normal
// disconnect cleanup.
func (s *Server) Close() {
	s.hub.mu.RLock()
	clients := make([]*client, 0, len(s.hub.clients))
	for _, cl := range s.hub.clients {
		clients = append(clients, cl)
	}
	s.hub.mu.RUnlock()
	for _, cl := range clients {
		cl.close()
	}
}
