package server

import (
	"dress-to-impress/internal/web"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleStatus(c *gin.Context) {
	stats := s.Stats()
	summary := web.StatusSummary{
		Env:         s.cfg.Env,
		Backend:     s.cfg.StoreBackend,
		Sessions:    stats.Sessions,
		Rooms:       stats.Rooms,
		Connections: stats.Connections,
		StartedAt:   s.startedAt,
		Now:         s.now(),
	}
	templ.Handler(web.Status(summary)).ServeHTTP(c.Writer, c.Request)
}
