package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/live"
)

// Subscriptions is the part of *live.Hub the stream handler uses.
type Subscriptions interface {
	Register(client *live.Client)
	Unregister(client *live.Client)
}

// keepAliveInterval is how often an idle stream sends a comment line, so proxies do not
// close it and dead connections are noticed.
const keepAliveInterval = 25 * time.Second

// LiveAvailability returns a handler for GET /api/v1/leagues/:id/live.
//
// It answers with a Server-Sent Events stream: the current availability straight away,
// then a new "availability" event every time a registration, cancellation or promotion
// changes the league. The stream ends when the client disconnects or the hub stops.
func LiveAvailability(svc Service, hub Subscriptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		leagueID, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid league ID")
		}
		// Load first so an unknown league is a plain 404 rather than an empty stream.
		current, err := svc.Availability(c.UserContext(), leagueID)
		if err != nil {
			return respondError(c, err)
		}
		initial, err := json.Marshal(current)
		if err != nil {
			return respondError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		client := live.NewClient(leagueID.String())
		hub.Register(client)

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer hub.Unregister(client)

			if err := writeEvent(w, initial); err != nil {
				return
			}
			ticker := time.NewTicker(keepAliveInterval)
			defer ticker.Stop()

			for {
				select {
				case msg, open := <-client.Send:
					if !open {
						return
					}
					if err := writeEvent(w, msg); err != nil {
						log.Debug().Err(err).Str("league_id", client.LeagueID).Msg("Live stream closed")
						return
					}
				case <-ticker.C:
					if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		})
		return nil
	}
}

// writeEvent writes one SSE "availability" event and flushes it to the client.
func writeEvent(w *bufio.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: availability\ndata: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
