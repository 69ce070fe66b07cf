// Package control carries remote-control commands over a session's
// data channel and dispatches them on the host.
package control

import (
	"errors"
	"fmt"

	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrChannelNotOpen = errors.New("control channel not open")

// Handler receives every well-formed command read from a channel.
type Handler func(domain.SessionID, protocol.Command)

// Channel is the command protocol bound to one session's data channel.
type Channel struct {
	sid    domain.SessionID
	dc     core.DataChannel
	logger zerolog.Logger
}

// Bind attaches the protocol to dc. handler may be nil for send-only use.
// A record that fails to decode is logged and skipped; the channel stays up.
func Bind(sid domain.SessionID, dc core.DataChannel, handler Handler) *Channel {
	c := &Channel{
		sid: sid,
		dc:  dc,
		logger: log.With().
			Str("module", "control.channel").
			Str("sid", sid.String()).
			Str("label", dc.Label()).
			Logger(),
	}
	dc.OnOpen(func() {
		c.logger.Info().Msg("control channel open")
	})
	dc.OnMessage(func(data []byte) {
		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			c.logger.Error().Err(err).Msg("bad control record")
			return
		}
		if handler != nil {
			handler(sid, cmd)
		}
	})
	return c
}

func (c *Channel) Session() domain.SessionID { return c.sid }
func (c *Channel) IsOpen() bool              { return c.dc.IsOpen() }

func (c *Channel) Send(cmd protocol.Command) error {
	if !c.dc.IsOpen() {
		c.logger.Error().Str("type", string(cmd.Type)).Msg("control channel is not open")
		return ErrChannelNotOpen
	}
	b, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := c.dc.SendText(string(b)); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	return nil
}

func (c *Channel) Close() error { return c.dc.Close() }
