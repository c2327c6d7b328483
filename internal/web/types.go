package web

import "time"

// StatusSummary is what the status page shows about the running process.
type StatusSummary struct {
	Env         string
	Backend     string
	Sessions    int
	Rooms       int
	Connections int
	StartedAt   time.Time
	Now         time.Time
}

func (s StatusSummary) Uptime() time.Duration {
	if s.StartedAt.IsZero() || s.Now.Before(s.StartedAt) {
		return 0
	}
	return s.Now.Sub(s.StartedAt).Truncate(time.Second)
}
