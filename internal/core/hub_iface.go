package core

import "github.com/dkeye/Remote/internal/domain"

// PeerSession binds domain.Peer and its transport endpoint.
// This is what the hub stores and fans out to.
type PeerSession interface {
	Meta() *domain.Peer
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SendTo  int
	Dropped []PeerSession
}

// HubService is the broadcast set of the relay.
// It owns the connection set but never touches transport resources.
type HubService interface {
	PeerCount() int
	PeersSnapshot() []domain.Peer

	AddPeer(ps PeerSession)
	RemovePeer(id domain.PeerID)
	Broadcast(from domain.PeerID, data Frame) PublishResult
}

type peerSession struct {
	meta *domain.Peer
	conn SignalConnection
}

func NewPeerSession(meta *domain.Peer, conn SignalConnection) PeerSession {
	return &peerSession{meta: meta, conn: conn}
}

func (p *peerSession) Meta() *domain.Peer       { return p.meta }
func (p *peerSession) Signal() SignalConnection { return p.conn }
