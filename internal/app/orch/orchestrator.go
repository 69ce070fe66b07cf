// Package orch wires the hub, registry and collaborators into the relay,
// host and viewer endpoints.
package orch

import (
	"github.com/dkeye/Remote/internal/app"
	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the relay endpoint: it fans every frame out to the
// other peers and applies the backpressure policy.
type Orchestrator struct {
	Hub    core.HubService
	Policy app.Policy
}

func (o *Orchestrator) Join(ps core.PeerSession) {
	o.Hub.AddPeer(ps)
	log.Info().
		Str("module", "orch.relay").
		Str("peer", string(ps.Meta().ID)).
		Str("remote", ps.Meta().RemoteAddr).
		Str("client_token", ps.Meta().ClientToken).
		Msg("peer joined")
}

func (o *Orchestrator) Leave(id domain.PeerID) {
	o.Hub.RemovePeer(id)
}

func (o *Orchestrator) OnFrame(from domain.PeerID, data core.Frame) {
	res := o.Hub.Broadcast(from, data)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(o.Hub, slow) {
		case app.KickPeer:
			o.Kick(slow)
		case app.DropFrame, app.NoAction:
			log.Warn().Str("module", "orch.relay").Str("peer", string(slow.Meta().ID)).Msg("frame dropped for slow peer")
		}
	}
}

// Kick disconnects a peer and removes it from the broadcast set.
func (o *Orchestrator) Kick(ps core.PeerSession) {
	log.Warn().Str("module", "orch.relay").Str("peer", string(ps.Meta().ID)).Msg("kicking slow peer")
	o.Hub.RemovePeer(ps.Meta().ID)
	ps.Signal().Close()
}
