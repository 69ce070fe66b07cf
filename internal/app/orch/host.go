package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Remote/internal/app"
	"github.com/dkeye/Remote/internal/app/control"
	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Host is the shared machine: it lists and opens its media on request,
// offers it to the viewer and executes the commands it gets back.
type Host struct {
	ctx      context.Context
	Registry *app.Registry
	Media    core.MediaSource
	Router   *control.Router
	Signal   app.Sender
}

func NewHost(ctx context.Context, reg *app.Registry, media core.MediaSource, router *control.Router, signal app.Sender) *Host {
	h := &Host{
		ctx:      ctx,
		Registry: reg,
		Media:    media,
		Router:   router,
		Signal:   signal,
	}
	reg.Subscribe(app.SessionHooks{OnChannel: h.onChannel}, nil)
	return h
}

// OnEnvelope handles one envelope received from the relay.
func (h *Host) OnEnvelope(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeGetCameras:
		h.sendCameras()
	case protocol.TypeGetScreens:
		h.sendScreens()
	case protocol.TypeStartCamera:
		h.start(lifecycleID(env, domain.CameraSession), domain.MediaCamera, env.DeviceID)
	case protocol.TypeStopCamera:
		h.Registry.Stop(lifecycleID(env, domain.CameraSession))
	case protocol.TypeStartScreenShare:
		if h.start(lifecycleID(env, domain.ScreenSession), domain.MediaScreen, env.ScreenID) {
			h.Router.SetSharing(true)
		}
	case protocol.TypeStopScreenShare:
		h.Registry.Stop(lifecycleID(env, domain.ScreenSession))
		h.Router.SetSharing(false)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		if err := h.Registry.Route(env); err != nil {
			log.Debug().Err(err).Str("module", "orch.host").Msg("route")
		}
	case protocol.TypeCameraList, protocol.TypeScreenList:
		log.Debug().Str("module", "orch.host").Str("type", string(env.Type)).Msg("ignored on host")
	default:
		if !protocol.IsCommand(env.Type) {
			log.Warn().Str("module", "orch.host").Str("type", string(env.Type)).Msg("unknown envelope")
			return
		}
		cmd, err := env.Command()
		if err != nil {
			log.Error().Err(err).Str("module", "orch.host").Msg("bad command envelope")
			return
		}
		h.Router.Dispatch(env.Session(), cmd)
	}
}

// lifecycleID is def unless the envelope names its own session.
func lifecycleID(env protocol.Envelope, def string) domain.SessionID {
	if sid := env.Session(); !sid.IsImplicit() {
		return sid
	}
	return domain.Named(def)
}

func (h *Host) start(sid domain.SessionID, kind domain.MediaKind, sourceID string) bool {
	logger := log.With().Str("module", "orch.host").Str("sid", sid.String()).Str("kind", string(kind)).Str("source", sourceID).Logger()
	binding, err := h.Media.Open(h.ctx, kind, sourceID)
	if err != nil {
		if errors.Is(err, core.ErrSourceNotFound) {
			logger.Error().Msg("source not found, start aborted")
		} else {
			logger.Error().Err(err).Msg("open source")
		}
		return false
	}
	if _, err := h.Registry.Start(sid, binding); err != nil {
		return false
	}
	logger.Info().Msg("sharing started")
	return true
}

func (h *Host) sendCameras() {
	cams, err := h.Media.Cameras(h.ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.host").Msg("list cameras")
		return
	}
	if err := h.Signal.Send(protocol.CameraList(cams)); err != nil {
		log.Error().Err(err).Str("module", "orch.host").Msg("send camera list")
	}
}

func (h *Host) sendScreens() {
	scrs, err := h.Media.Screens(h.ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.host").Msg("list screens")
		return
	}
	if err := h.Signal.Send(protocol.ScreenList(scrs)); err != nil {
		log.Error().Err(err).Str("module", "orch.host").Msg("send screen list")
	}
}

func (h *Host) onChannel(sid domain.SessionID, dc core.DataChannel) {
	control.Bind(sid, dc, func(sid domain.SessionID, cmd protocol.Command) {
		h.Router.Dispatch(sid, cmd)
	})
}

// Close stops every session and turns sharing off.
func (h *Host) Close() {
	h.Registry.Close()
	h.Router.SetSharing(false)
}
