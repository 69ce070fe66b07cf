package control

import (
	"sync/atomic"

	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Router hands decoded commands to the input injector. With gating on,
// commands are accepted but dropped until sharing is switched on.
type Router struct {
	injector core.InputInjector
	gated    bool
	sharing  atomic.Bool
}

func NewRouter(injector core.InputInjector, requireSharing bool) *Router {
	return &Router{injector: injector, gated: requireSharing}
}

func (r *Router) SetSharing(active bool) {
	r.sharing.Store(active)
	log.Info().Str("module", "control.router").Bool("sharing", active).Msg("sharing flag changed")
}

func (r *Router) Sharing() bool { return r.sharing.Load() }

// Dispatch runs one command. It reports whether the injector was called.
func (r *Router) Dispatch(sid domain.SessionID, cmd protocol.Command) bool {
	if r.gated && !r.sharing.Load() {
		log.Debug().Str("module", "control.router").Str("sid", sid.String()).Str("type", string(cmd.Type)).Msg("command dropped: sharing inactive")
		return false
	}
	var err error
	switch cmd.Type {
	case protocol.TypeMouseMove:
		err = r.injector.MoveMouse(cmd.X, cmd.Y)
	case protocol.TypeMouseClick:
		err = r.injector.Click(cmd.Button, cmd.DoubleClick)
	case protocol.TypeMouseDown:
		err = r.injector.MouseDown(cmd.Button, cmd.X, cmd.Y)
	case protocol.TypeMouseUp:
		err = r.injector.MouseUp(cmd.Button, cmd.X, cmd.Y)
	case protocol.TypeMouseScroll:
		err = r.injector.Scroll(cmd.X, cmd.Y)
	case protocol.TypeKeyPress:
		err = r.injector.KeyTap(cmd.Key, cmd.Modifiers)
	case protocol.TypeKeyType:
		err = r.injector.TypeText(cmd.Text)
	default:
		log.Warn().Str("module", "control.router").Str("type", string(cmd.Type)).Msg("unknown command")
		return false
	}
	if err != nil {
		log.Error().Err(err).Str("module", "control.router").Str("sid", sid.String()).Str("type", string(cmd.Type)).Msg("injector failed")
	}
	return true
}
