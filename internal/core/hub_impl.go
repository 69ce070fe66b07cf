package core

import (
	"sync"

	"github.com/dkeye/Remote/internal/domain"
	"github.com/rs/zerolog/log"
)

// hubImpl is a threadsafe in-memory broadcast set.
// It never closes adapter-owned resources and never looks at frame content.
type hubImpl struct {
	mu    sync.RWMutex
	peers map[domain.PeerID]PeerSession
}

func NewHub() HubService {
	return &hubImpl{peers: make(map[domain.PeerID]PeerSession)}
}

func (h *hubImpl) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *hubImpl) AddPeer(ps PeerSession) {
	id := ps.Meta().ID
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[id] = ps
	log.Info().Str("module", "core.hub").Str("peer", string(id)).Int("peers", len(h.peers)).Msg("peer added")
}

func (h *hubImpl) RemovePeer(id domain.PeerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[id]; !ok {
		return
	}
	delete(h.peers, id)
	log.Info().Str("module", "core.hub").Str("peer", string(id)).Int("peers", len(h.peers)).Msg("peer removed")
}

// Broadcast hands data to every peer except the sender. TrySend never
// blocks, so one slow peer cannot hold up the others.
func (h *hubImpl) Broadcast(from domain.PeerID, data Frame) PublishResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := PublishResult{}
	for id, p := range h.peers {
		if id == from {
			continue
		}
		if err := p.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, p)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.hub").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (h *hubImpl) PeersSnapshot() []domain.Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.Peer, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, *p.Meta())
	}
	return out
}
