package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/Remote/internal/domain"
	"github.com/rs/zerolog/log"
)

// RelayKey names one remote track of one session.
type RelayKey struct {
	Session domain.SessionID
	Track   string
}

func (k RelayKey) String() string { return k.Session.String() + "/" + k.Track }

// RelayManager keeps one relay per remote track. A session may carry
// several tracks; a track announced again under the same id replaces its
// previous relay.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[RelayKey]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[RelayKey]*Relay),
	}
}

// StartRelay creates a new Relay for the track and starts its loop. The
// relay leaves the manager on its own when the track ends.
func (m *RelayManager) StartRelay(ctx context.Context, sid domain.SessionID, track Source) *Relay {
	key := RelayKey{Session: sid, Track: track.ID()}
	logger := log.With().
		Str("module", "sfu.relay").
		Str("sid", sid.String()).
		Str("track", key.Track).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(track, cancel)

	m.mu.Lock()
	if old, ok := m.relays[key]; ok {
		logger.Info().Msg("replacing existing relay for track")
		old.markAllDelete()
		old.cancel()
	}
	m.relays[key] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go relay.loop(relayCtx, sid, &logger)
	go func() {
		<-relay.Done()
		m.mu.Lock()
		if m.relays[key] == relay {
			delete(m.relays, key)
		}
		m.mu.Unlock()
	}()
	return relay
}

// AddSubscriber attaches sink to the relay of key under name.
func (m *RelayManager) AddSubscriber(key RelayKey, name string, sink Sink) bool {
	relay, ok := m.Relay(key)
	if !ok {
		return false
	}
	relay.AddOutTrack(name, NewOutTrack(sink))
	return true
}

// SetMuted pauses or resumes forwarding to one subscriber.
func (m *RelayManager) SetMuted(key RelayKey, name string, muted bool) bool {
	ot, ok := m.outTrack(key, name)
	if !ok {
		return false
	}
	if muted {
		ot.MarkMuted()
	} else {
		ot.MarkOk()
	}
	return true
}

// MarkSubscriberDelete marks the subscriber's OutTrack as TrackStateDelete.
// The relay detaches it on the next packet.
func (m *RelayManager) MarkSubscriberDelete(key RelayKey, name string) bool {
	ot, ok := m.outTrack(key, name)
	if ok {
		ot.MarkDelete()
	}
	return ok
}

func (m *RelayManager) outTrack(key RelayKey, name string) (*OutTrack, bool) {
	relay, ok := m.Relay(key)
	if !ok {
		return nil, false
	}
	return relay.OutTrack(name)
}

func (m *RelayManager) Relay(key RelayKey) (*Relay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	relay, ok := m.relays[key]
	return relay, ok
}

// Tracks lists the relayed tracks of sid.
func (m *RelayManager) Tracks(sid domain.SessionID) []RelayKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []RelayKey
	for key := range m.relays {
		if key.Session == sid {
			keys = append(keys, key)
		}
	}
	return keys
}

// StopRelay stops every relay of sid and removes them from the manager.
func (m *RelayManager) StopRelay(sid domain.SessionID) {
	m.mu.Lock()
	var stopped []*Relay
	for key, relay := range m.relays {
		if key.Session == sid {
			stopped = append(stopped, relay)
			delete(m.relays, key)
		}
	}
	m.mu.Unlock()
	if len(stopped) == 0 {
		return
	}
	for _, relay := range stopped {
		relay.markAllDelete()
		relay.cancel()
	}
	log.Info().Str("module", "sfu.relay").Str("sid", sid.String()).Int("tracks", len(stopped)).Msg("relay stopped")
}

// HasRelay reports whether any track of sid is relayed.
func (m *RelayManager) HasRelay(sid domain.SessionID) bool {
	return len(m.Tracks(sid)) > 0
}

// StopAll stops every relay. Used on shutdown.
func (m *RelayManager) StopAll() {
	m.mu.Lock()
	all := m.relays
	m.relays = make(map[RelayKey]*Relay)
	m.mu.Unlock()
	for _, relay := range all {
		relay.markAllDelete()
		relay.cancel()
	}
}
