package web

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Status renders the operator status page.
func Status(summary StatusSummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Dress to Impress realtime</title>
    <style>
      body { font-family: system-ui, sans-serif; margin: 2rem; color: #1a1a1a; }
      table { border-collapse: collapse; }
      th, td { text-align: left; padding: 0.35rem 1rem 0.35rem 0; }
      th { color: #666; font-weight: 500; }
    </style>
  </head>
  <body>
    <main>
      <h1>Dress to Impress realtime</h1>
      <table>
        <tr><th>Environment</th><td id="env">`+esc(summary.Env)+`</td></tr>
        <tr><th>Store backend</th><td id="backend">`+esc(summary.Backend)+`</td></tr>
        <tr><th>Connections</th><td id="connections">`+itoa(summary.Connections)+`</td></tr>
        <tr><th>Sessions</th><td id="sessions">`+itoa(summary.Sessions)+`</td></tr>
        <tr><th>Active rooms</th><td id="rooms">`+itoa(summary.Rooms)+`</td></tr>
        <tr><th>Started</th><td id="started">`+esc(formatTime(summary.StartedAt))+`</td></tr>
        <tr><th>Uptime</th><td id="uptime">`+esc(summary.Uptime().String())+`</td></tr>
      </table>
    </main>
  </body>
</html>
`)
		return err
	})
}
