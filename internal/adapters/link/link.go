// Package link is the agent's websocket connection to the relay. It
// reconnects forever with a fixed delay and never queues outgoing
// envelopes.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Remote/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("relay link not connected")

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	writeWait             = 5 * time.Second
)

type Options struct {
	ReconnectDelay time.Duration
	// PingPeriod of zero disables keepalive pings.
	PingPeriod time.Duration
	ReadLimit  int64
}

type Link struct {
	opts   Options
	dialer websocket.Dialer
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	onMessage func(protocol.Envelope)
	onState   func(State)
	cancel    context.CancelFunc
	done      chan struct{}

	// writeMu serializes writers on conn.
	writeMu sync.Mutex
}

func New(opts Options) *Link {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	return &Link{
		opts: opts,
		dialer: websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		logger: log.With().Str("module", "link").Logger(),
		state:  StateDisconnected,
	}
}

// NormalizeURL turns an http(s) or bare relay address into a ws(s) url.
func NormalizeURL(u string) string {
	switch {
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "ws://"), strings.HasPrefix(u, "wss://"):
		return u
	default:
		return "ws://" + u
	}
}

func (l *Link) OnMessage(fn func(protocol.Envelope)) {
	l.mu.Lock()
	l.onMessage = fn
	l.mu.Unlock()
}

func (l *Link) OnStateChange(fn func(State)) {
	l.mu.Lock()
	l.onState = fn
	l.mu.Unlock()
}

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Connect starts the connection lifecycle in the background and returns
// immediately. A second call while running is ignored.
func (l *Link) Connect(ctx context.Context, url string) {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		l.logger.Warn().Msg("connect ignored: already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go l.run(ctx, NormalizeURL(url), done)
}

// Close stops reconnecting and closes the current connection.
func (l *Link) Close() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Send writes env to the relay. It fails fast with ErrNotConnected while
// the link is down; nothing is queued for later.
func (l *Link) Send(env protocol.Envelope) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		l.logger.Error().Str("type", string(env.Type)).Msg("send while disconnected, envelope dropped")
		return fmt.Errorf("send %s: %w", env.Type, ErrNotConnected)
	}
	b, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		l.logger.Error().Err(err).Str("type", string(env.Type)).Msg("write")
		return fmt.Errorf("send %s: %w", env.Type, err)
	}
	return nil
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	if l.state == s {
		l.mu.Unlock()
		return
	}
	l.state = s
	fn := l.onState
	l.mu.Unlock()
	l.logger.Info().Str("state", string(s)).Msg("link state")
	if fn != nil {
		fn(s)
	}
}

func (l *Link) run(ctx context.Context, url string, done chan struct{}) {
	defer close(done)
	defer l.setState(StateDisconnected)
	for {
		l.setState(StateConnecting)
		conn, _, err := l.dialer.DialContext(ctx, url, nil)
		if err != nil {
			l.logger.Error().Err(err).Str("url", url).Msg("dial relay")
		} else {
			l.serve(ctx, conn)
		}
		l.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.opts.ReconnectDelay):
		}
		l.logger.Info().Dur("delay", l.opts.ReconnectDelay).Msg("reconnecting")
	}
}

// serve runs one connection until it fails or ctx ends.
func (l *Link) serve(ctx context.Context, conn *websocket.Conn) {
	if l.opts.ReadLimit > 0 {
		conn.SetReadLimit(l.opts.ReadLimit)
	}
	connCtx, stop := context.WithCancel(ctx)
	defer stop()

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	l.setState(StateConnected)

	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()
	if l.opts.PingPeriod > 0 {
		go l.pingLoop(connCtx, conn)
	}

	defer func() {
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Error().Err(err).Msg("relay connection lost")
			}
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			l.logger.Error().Err(err).Int("bytes", len(data)).Msg("bad frame discarded")
			continue
		}
		l.mu.Lock()
		fn := l.onMessage
		l.mu.Unlock()
		if fn != nil {
			fn(env)
		}
	}
}

func (l *Link) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(l.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.logger.Error().Err(err).Msg("ping")
				return
			}
		}
	}
}
