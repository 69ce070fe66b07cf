package signal

import (
	"context"
	"time"

	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// writePump is the only writer on the socket: queued frames and pings.
func (ctl *SignalWSController) writePump(ctx context.Context, cancel context.CancelFunc, id domain.PeerID, c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() {
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("peer", string(id)).Msg("writePump ctx done")
			return
		case f, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("peer", string(id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("peer", string(id)).Msg("writePump set deadline")
				return
			}
			mt := websocket.TextMessage
			if f.Binary {
				mt = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(mt, f.Data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("peer", string(id)).Msg("writePump write error")
				return
			}
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("peer", string(id)).Msg("writePump ping")
				return
			}
		}
	}
}

// readPump forwards every frame to the hub. Frames are never parsed.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id domain.PeerID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("peer", string(id)).Msg("readPump closing")
		ctl.Orch.Leave(id)
		cancel()
		c.Close()
	}()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	if ctl.PingPeriod > 0 {
		// Pongs are due within a ping period plus slack.
		pongWait := ctl.PingPeriod * 10 / 9
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("peer", string(id)).Msg("readPump ctx done")
			return
		default:
			mt, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("peer", string(id)).Msg("readPump read error")
				}
				return
			}
			ctl.Orch.OnFrame(id, core.Frame{Data: data, Binary: mt == websocket.BinaryMessage})
		}
	}
}
