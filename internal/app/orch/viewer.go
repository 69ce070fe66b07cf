package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Remote/internal/app"
	"github.com/dkeye/Remote/internal/app/control"
	"github.com/dkeye/Remote/internal/app/sfu"
	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ForwardSinkName is the relay subscriber that feeds the local player.
const ForwardSinkName = "forward"

var ErrNotForwarding = errors.New("session has no forwarded track")

// ForwardInfo describes one relayed remote track of a session.
type ForwardInfo struct {
	Track       string `json:"track"`
	Forward     string `json:"forward"`
	Subscribers int    `json:"subscribers"`
}

// Viewer is the operator side: it asks the host for media, answers the
// host's offers and sends control commands back.
type Viewer struct {
	ctx         context.Context
	Registry    *app.Registry
	Signal      app.Sender
	Relays      *sfu.RelayManager
	forwardAddr string

	mu        sync.RWMutex
	cameras   []protocol.Camera
	screens   []protocol.Screen
	channels  map[domain.SessionID]*control.Channel
	sinks     map[sfu.RelayKey]*sfu.UDPSink
	onSources func()
}

// NewViewer wires the viewer into reg. forwardAddr may be empty, in which
// case remote tracks are relayed but not forwarded anywhere.
func NewViewer(ctx context.Context, reg *app.Registry, signal app.Sender, relays *sfu.RelayManager, forwardAddr string) *Viewer {
	v := &Viewer{
		ctx:         ctx,
		Registry:    reg,
		Signal:      signal,
		Relays:      relays,
		forwardAddr: forwardAddr,
		channels:    make(map[domain.SessionID]*control.Channel),
		sinks:       make(map[sfu.RelayKey]*sfu.UDPSink),
	}
	reg.Subscribe(app.SessionHooks{
		OnChannel: v.onChannel,
		OnTrack:   v.onTrack,
	}, v.onStopped)
	return v
}

// OnSourcesChanged sets a callback fired when a camera or screen list arrives.
func (v *Viewer) OnSourcesChanged(fn func()) {
	v.mu.Lock()
	v.onSources = fn
	v.mu.Unlock()
}

// OnEnvelope handles one envelope received from the relay.
func (v *Viewer) OnEnvelope(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		if err := v.Registry.Route(env); err != nil {
			log.Debug().Err(err).Str("module", "orch.viewer").Msg("route")
		}
	case protocol.TypeCameraList:
		v.mu.Lock()
		v.cameras = env.Cameras
		fn := v.onSources
		v.mu.Unlock()
		log.Info().Str("module", "orch.viewer").Int("cameras", len(env.Cameras)).Msg("camera list")
		if fn != nil {
			fn()
		}
	case protocol.TypeScreenList:
		v.mu.Lock()
		v.screens = env.Screens
		fn := v.onSources
		v.mu.Unlock()
		log.Info().Str("module", "orch.viewer").Int("screens", len(env.Screens)).Msg("screen list")
		if fn != nil {
			fn()
		}
	default:
		log.Debug().Str("module", "orch.viewer").Str("type", string(env.Type)).Msg("ignored on viewer")
	}
}

func (v *Viewer) Cameras() []protocol.Camera {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]protocol.Camera(nil), v.cameras...)
}

func (v *Viewer) Screens() []protocol.Screen {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]protocol.Screen(nil), v.screens...)
}

func (v *Viewer) RequestCameras() error {
	return v.Signal.Send(protocol.Request(protocol.TypeGetCameras))
}

func (v *Viewer) RequestScreens() error {
	return v.Signal.Send(protocol.Request(protocol.TypeGetScreens))
}

// StartCamera drops the local camera session and asks the host for a new one.
func (v *Viewer) StartCamera(deviceID string) error {
	v.Registry.Stop(domain.Named(domain.CameraSession))
	return v.Signal.Send(protocol.StartCamera(deviceID))
}

func (v *Viewer) StopCamera() error {
	v.Registry.Stop(domain.Named(domain.CameraSession))
	return v.Signal.Send(protocol.Request(protocol.TypeStopCamera))
}

func (v *Viewer) StartScreenShare(screenID string) error {
	v.Registry.Stop(domain.Named(domain.ScreenSession))
	return v.Signal.Send(protocol.StartScreenShare(screenID))
}

func (v *Viewer) StopScreenShare() error {
	v.Registry.Stop(domain.Named(domain.ScreenSession))
	return v.Signal.Send(protocol.Request(protocol.TypeStopScreenShare))
}

// SendCommand sends cmd over the control channel of session sid.
func (v *Viewer) SendCommand(sid domain.SessionID, cmd protocol.Command) error {
	v.mu.RLock()
	ch, ok := v.channels[sid]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %s: %w", sid, control.ErrChannelNotOpen)
	}
	return ch.Send(cmd)
}

func (v *Viewer) onChannel(sid domain.SessionID, dc core.DataChannel) {
	ch := control.Bind(sid, dc, func(sid domain.SessionID, cmd protocol.Command) {
		log.Debug().Str("module", "orch.viewer").Str("sid", sid.String()).Str("type", string(cmd.Type)).Msg("command from host ignored")
	})
	v.mu.Lock()
	v.channels[sid] = ch
	v.mu.Unlock()
}

func (v *Viewer) onTrack(sid domain.SessionID, track *webrtc.TrackRemote) {
	v.startRelay(sid, track)
}

// startRelay relays one remote track. Every track of a session gets its
// own relay and its own forward sink; players demultiplex by SSRC.
func (v *Viewer) startRelay(sid domain.SessionID, src sfu.Source) {
	v.Relays.StartRelay(v.ctx, sid, src)
	if v.forwardAddr == "" {
		return
	}
	key := sfu.RelayKey{Session: sid, Track: src.ID()}
	sink, err := sfu.NewUDPSink(v.forwardAddr)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.viewer").Str("sid", sid.String()).Str("track", key.Track).Msg("forward sink")
		return
	}
	v.mu.Lock()
	old := v.sinks[key]
	v.sinks[key] = sink
	v.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	v.Relays.AddSubscriber(key, ForwardSinkName, sink)
}

// SetForwardMuted pauses or resumes forwarding of every track of sid to
// the local player.
func (v *Viewer) SetForwardMuted(sid domain.SessionID, muted bool) error {
	n := 0
	for _, key := range v.Relays.Tracks(sid) {
		if v.Relays.SetMuted(key, ForwardSinkName, muted) {
			n++
		}
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sid, ErrNotForwarding)
	}
	log.Info().Str("module", "orch.viewer").Str("sid", sid.String()).Bool("muted", muted).Int("tracks", n).Msg("forward muted")
	return nil
}

// StopForward detaches the player from every track of sid. The tracks
// keep being relayed.
func (v *Viewer) StopForward(sid domain.SessionID) error {
	n := 0
	for _, key := range v.Relays.Tracks(sid) {
		if !v.Relays.MarkSubscriberDelete(key, ForwardSinkName) {
			continue
		}
		n++
		v.mu.Lock()
		sink := v.sinks[key]
		delete(v.sinks, key)
		v.mu.Unlock()
		if sink != nil {
			_ = sink.Close()
		}
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sid, ErrNotForwarding)
	}
	log.Info().Str("module", "orch.viewer").Str("sid", sid.String()).Int("tracks", n).Msg("forward stopped")
	return nil
}

// Forwarding reports the relayed tracks of sid and their forward state.
func (v *Viewer) Forwarding(sid domain.SessionID) []ForwardInfo {
	keys := v.Relays.Tracks(sid)
	out := make([]ForwardInfo, 0, len(keys))
	for _, key := range keys {
		relay, ok := v.Relays.Relay(key)
		if !ok {
			continue
		}
		info := ForwardInfo{Track: key.Track, Forward: "none", Subscribers: relay.Subscribers()}
		if ot, ok := relay.OutTrack(ForwardSinkName); ok {
			info.Forward = ot.GetState().String()
		}
		out = append(out, info)
	}
	return out
}

func (v *Viewer) onStopped(sid domain.SessionID) {
	v.Relays.StopRelay(sid)
	v.mu.Lock()
	delete(v.channels, sid)
	var sinks []*sfu.UDPSink
	for key, sink := range v.sinks {
		if key.Session == sid {
			sinks = append(sinks, sink)
			delete(v.sinks, key)
		}
	}
	v.mu.Unlock()
	for _, sink := range sinks {
		_ = sink.Close()
	}
}

// Close stops every session and relay.
func (v *Viewer) Close() {
	v.Registry.Close()
	v.Relays.StopAll()
}
