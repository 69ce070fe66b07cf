package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ControlChannelLabel is the data channel the offerer opens for commands.
const ControlChannelLabel = "control"

var (
	ErrInvalidState  = errors.New("invalid session state")
	ErrSessionClosed = errors.New("session closed")
)

// Sender delivers envelopes to the relay. Delivery is never assumed.
type Sender interface {
	Send(protocol.Envelope) error
}

// SessionHooks are the session's outbound events. All are optional.
type SessionHooks struct {
	OnChannel func(domain.SessionID, core.DataChannel)
	OnTrack   func(domain.SessionID, *webrtc.TrackRemote)
	onStopped func(*Session)
}

// Session is the negotiation state machine of one logical session.
type Session struct {
	id           domain.SessionID
	role         domain.Role
	newTransport core.TransportFactory
	signal       Sender
	timeout      time.Duration
	hooks        SessionHooks
	logger       zerolog.Logger

	mu            sync.Mutex
	state         domain.SessionState
	transport     core.Transport
	binding       core.MediaBinding
	local         *webrtc.SessionDescription
	remote        *webrtc.SessionDescription
	remoteApplied bool
	pending       []webrtc.ICECandidateInit
	timer         *time.Timer

	// Local candidates wait until our description has been sent, so the
	// peer never sees a candidate for a session it does not know yet.
	// Guarded by candMu, not mu: transports may gather during offer creation.
	candMu      sync.Mutex
	descSent    bool
	localQueued []webrtc.ICECandidateInit
	closed      atomic.Bool
}

func newSession(id domain.SessionID, role domain.Role, newTransport core.TransportFactory, signal Sender, timeout time.Duration, hooks SessionHooks) *Session {
	return &Session{
		id:           id,
		role:         role,
		newTransport: newTransport,
		signal:       signal,
		timeout:      timeout,
		hooks:        hooks,
		state:        domain.StateIdle,
		logger: log.With().
			Str("module", "app.session").
			Str("sid", id.String()).
			Str("role", string(role)).
			Logger(),
	}
}

func (s *Session) ID() domain.SessionID { return s.id }
func (s *Session) Role() domain.Role    { return s.role }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LocalDescription() *webrtc.SessionDescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

func (s *Session) RemoteDescription() *webrtc.SessionDescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// PendingCandidates is the number of remote candidates waiting for a
// remote description.
func (s *Session) PendingCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Start makes this session the offerer: it attaches the binding's tracks,
// opens the control channel and sends a local offer. The session owns
// binding from here on, even when Start fails.
func (s *Session) Start(binding core.MediaBinding) error {
	s.mu.Lock()
	if s.state != domain.StateIdle {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn().Str("state", string(state)).Msg("start ignored: session not idle")
		if binding != nil {
			if err := binding.Close(); err != nil {
				s.logger.Error().Err(err).Msg("release media binding")
			}
		}
		return fmt.Errorf("start in %s: %w", state, ErrInvalidState)
	}
	s.binding = binding
	t, err := s.ensureTransportLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if binding != nil {
		for _, track := range binding.Tracks() {
			if err := t.AddLocalTrack(track); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("add local track %s: %w", track.ID(), err)
			}
		}
	}
	dc, err := t.CreateDataChannel(ControlChannelLabel)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create control channel: %w", err)
	}
	offer, err := t.CreateAndSetOffer()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create offer: %w", err)
	}
	s.local = offer
	s.state = domain.StateHaveLocalOffer
	s.armTimeoutLocked()
	s.mu.Unlock()

	s.logger.Info().Msg("local offer created")
	if s.hooks.OnChannel != nil {
		s.hooks.OnChannel(s.id, dc)
	}
	s.sendDescription(protocol.Offer(s.id, offer.SDP))
	return nil
}

// HandleOffer answers a remote offer. Valid only for an idle answerer; an
// idle offerer is a Start still in progress.
func (s *Session) HandleOffer(sdp string) error {
	s.mu.Lock()
	if s.role != domain.RoleAnswerer {
		s.mu.Unlock()
		s.logger.Warn().Msg("offer discarded: local offer pending")
		return fmt.Errorf("offer to %s session: %w", s.role, ErrInvalidState)
	}
	if s.state != domain.StateIdle {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn().Str("state", string(state)).Msg("offer discarded: session not idle")
		return fmt.Errorf("offer in %s: %w", state, ErrInvalidState)
	}
	t, err := s.ensureTransportLocked()
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("transport for remote offer")
		s.Stop()
		return err
	}
	s.state = domain.StateHaveRemoteOffer
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := t.SetRemoteDescription(offer); err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("apply remote offer")
		return fmt.Errorf("apply remote offer: %w", err)
	}
	s.remote = &offer
	s.remoteApplied = true
	s.flushPendingLocked(t)

	answer, err := t.CreateAndSetAnswer()
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("create answer")
		return fmt.Errorf("create answer: %w", err)
	}
	s.local = answer
	s.state = domain.StateHaveLocalAnswer
	s.mu.Unlock()

	s.sendDescription(protocol.Answer(s.id, answer.SDP))

	// An answerer can use the transport once its local description is set;
	// ICE keeps completing in the background.
	s.mu.Lock()
	if s.state == domain.StateHaveLocalAnswer {
		s.state = domain.StateConnected
	}
	s.mu.Unlock()
	s.logger.Info().Msg("remote offer answered")
	return nil
}

// HandleAnswer applies the remote answer. Valid only in have-local-offer;
// anything else is logged and leaves the session untouched.
func (s *Session) HandleAnswer(sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateHaveLocalOffer {
		s.logger.Error().Str("state", string(s.state)).Msg("answer discarded: no local offer pending")
		return fmt.Errorf("answer in %s: %w", s.state, ErrInvalidState)
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := s.transport.SetRemoteDescription(answer); err != nil {
		s.logger.Error().Err(err).Msg("apply remote answer")
		return fmt.Errorf("apply remote answer: %w", err)
	}
	s.remote = &answer
	s.remoteApplied = true
	s.stopTimerLocked()
	s.flushPendingLocked(s.transport)
	s.state = domain.StateConnected
	s.logger.Info().Msg("remote answer applied")
	return nil
}

// HandleCandidate applies a remote candidate, or queues it until the
// remote description is in place.
func (s *Session) HandleCandidate(c *webrtc.ICECandidateInit) error {
	if c == nil {
		s.logger.Warn().Msg("empty ice candidate discarded")
		return fmt.Errorf("ice-candidate: %w", protocol.ErrMissingField)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateClosed {
		return ErrSessionClosed
	}
	if !s.remoteApplied {
		s.pending = append(s.pending, *c)
		s.logger.Debug().Int("pending", len(s.pending)).Msg("ice candidate queued")
		return nil
	}
	if err := s.transport.AddICECandidate(*c); err != nil {
		s.logger.Error().Err(err).Str("candidate", c.Candidate).Msg("add ice candidate")
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// Stop closes the transport, releases the media binding and drops queued
// candidates. It is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateClosed
	s.closed.Store(true)
	t, b := s.transport, s.binding
	s.transport, s.binding = nil, nil
	s.pending = nil
	s.stopTimerLocked()
	s.mu.Unlock()

	s.candMu.Lock()
	s.localQueued = nil
	s.candMu.Unlock()

	if t != nil {
		t.Close()
	}
	if b != nil {
		if err := b.Close(); err != nil {
			s.logger.Error().Err(err).Msg("release media binding")
		}
	}
	s.logger.Info().Msg("session stopped")
	if s.hooks.onStopped != nil {
		s.hooks.onStopped(s)
	}
}

func (s *Session) ensureTransportLocked() (core.Transport, error) {
	if s.transport != nil {
		return s.transport, nil
	}
	t, err := s.newTransport(s.id.String())
	if err != nil {
		return nil, fmt.Errorf("new transport: %w", err)
	}
	t.OnICECandidate(s.onLocalCandidate)
	t.OnDataChannel(func(dc core.DataChannel) {
		if s.hooks.OnChannel != nil {
			s.hooks.OnChannel(s.id, dc)
		}
	})
	t.OnTrack(func(track *webrtc.TrackRemote) {
		if s.hooks.OnTrack != nil {
			s.hooks.OnTrack(s.id, track)
		}
	})
	t.OnClosed(func() {
		s.logger.Info().Msg("transport closed")
		s.Stop()
	})
	s.transport = t
	return t, nil
}

func (s *Session) flushPendingLocked(t core.Transport) {
	if len(s.pending) == 0 {
		return
	}
	queued := s.pending
	s.pending = nil
	for _, c := range queued {
		if err := t.AddICECandidate(c); err != nil {
			s.logger.Error().Err(err).Str("candidate", c.Candidate).Msg("add queued ice candidate")
		}
	}
	s.logger.Debug().Int("flushed", len(queued)).Msg("queued ice candidates applied")
}

func (s *Session) sendDescription(env protocol.Envelope) {
	if err := s.signal.Send(env); err != nil {
		s.logger.Error().Err(err).Str("type", string(env.Type)).Msg("send description")
	}
	s.candMu.Lock()
	s.descSent = true
	queued := s.localQueued
	s.localQueued = nil
	s.candMu.Unlock()
	for _, c := range queued {
		s.sendCandidate(c)
	}
}

func (s *Session) onLocalCandidate(c webrtc.ICECandidateInit) {
	if s.closed.Load() {
		return
	}
	s.candMu.Lock()
	if !s.descSent {
		s.localQueued = append(s.localQueued, c)
		s.candMu.Unlock()
		return
	}
	s.candMu.Unlock()
	s.sendCandidate(c)
}

func (s *Session) sendCandidate(c webrtc.ICECandidateInit) {
	if err := s.signal.Send(protocol.Candidate(s.id, c)); err != nil {
		s.logger.Error().Err(err).Msg("send ice candidate")
	}
}

// armTimeoutLocked is the negotiation timeout extension point. Zero means
// an unanswered offer waits forever.
func (s *Session) armTimeoutLocked() {
	if s.timeout <= 0 {
		return
	}
	s.timer = time.AfterFunc(s.timeout, func() {
		if s.State() != domain.StateHaveLocalOffer {
			return
		}
		s.logger.Warn().Dur("timeout", s.timeout).Msg("offer not answered, stopping session")
		s.Stop()
	})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
