package orch

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/pion/webrtc/v4"
)

type sentLog struct {
	mu   sync.Mutex
	envs []protocol.Envelope
	err  error
}

func (s *sentLog) Send(e protocol.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.envs = append(s.envs, e)
	return nil
}

func (s *sentLog) ofType(t protocol.Type) []protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.Envelope
	for _, e := range s.envs {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type stubChannel struct {
	mu    sync.Mutex
	open  bool
	onMsg func([]byte)
	sent  []string
}

func (c *stubChannel) Label() string { return "control" }

func (c *stubChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *stubChannel) OnOpen(func()) {}

func (c *stubChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	c.onMsg = fn
	c.mu.Unlock()
}

func (c *stubChannel) SendText(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, s)
	return nil
}

func (c *stubChannel) Close() error { return nil }

func (c *stubChannel) deliver(data string) {
	c.mu.Lock()
	fn := c.onMsg
	c.mu.Unlock()
	fn([]byte(data))
}

type stubTransport struct {
	label    string
	dc       *stubChannel
	onDC     func(core.DataChannel)
	onTrack  func(*webrtc.TrackRemote)
	onClosed func()
}

func (t *stubTransport) AddLocalTrack(webrtc.TrackLocal) error { return nil }

func (t *stubTransport) CreateDataChannel(string) (core.DataChannel, error) {
	t.dc = &stubChannel{open: true}
	return t.dc, nil
}

func (t *stubTransport) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-" + t.label}, nil
}

func (t *stubTransport) SetRemoteDescription(webrtc.SessionDescription) error { return nil }

func (t *stubTransport) CreateAndSetAnswer() (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-" + t.label}, nil
}

func (t *stubTransport) AddICECandidate(webrtc.ICECandidateInit) error { return nil }
func (t *stubTransport) OnICECandidate(func(webrtc.ICECandidateInit))  {}
func (t *stubTransport) OnDataChannel(fn func(core.DataChannel))       { t.onDC = fn }
func (t *stubTransport) OnTrack(fn func(*webrtc.TrackRemote))          { t.onTrack = fn }
func (t *stubTransport) OnClosed(fn func())                            { t.onClosed = fn }
func (t *stubTransport) Close()                                        {}

type transports struct {
	mu  sync.Mutex
	all []*stubTransport
}

func (ts *transports) factory(label string) (core.Transport, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &stubTransport{label: fmt.Sprintf("%s#%d", label, len(ts.all)+1)}
	ts.all = append(ts.all, t)
	return t, nil
}

func (ts *transports) last() *stubTransport {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.all[len(ts.all)-1]
}

type stubBinding struct {
	mu     sync.Mutex
	id     string
	closed int
}

func (b *stubBinding) Tracks() []webrtc.TrackLocal { return nil }

func (b *stubBinding) Close() error {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
	return nil
}

func (b *stubBinding) closedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type stubMedia struct {
	mu     sync.Mutex
	opened []*stubBinding
}

func (m *stubMedia) Cameras(context.Context) ([]protocol.Camera, error) {
	return []protocol.Camera{{DeviceID: "cam-0", Label: "Front"}}, nil
}

func (m *stubMedia) Screens(context.Context) ([]protocol.Screen, error) {
	return []protocol.Screen{{ID: "screen-0", Name: "Main"}, {ID: "screen-1", Name: "Side"}}, nil
}

func (m *stubMedia) Open(_ context.Context, kind domain.MediaKind, id string) (core.MediaBinding, error) {
	if id != "cam-0" && id != "screen-0" && id != "screen-1" {
		return nil, fmt.Errorf("%s %q: %w", kind, id, core.ErrSourceNotFound)
	}
	b := &stubBinding{id: id}
	m.mu.Lock()
	m.opened = append(m.opened, b)
	m.mu.Unlock()
	return b, nil
}

type countingInjector struct {
	mu    sync.Mutex
	calls []string
}

func (i *countingInjector) rec(s string) error {
	i.mu.Lock()
	i.calls = append(i.calls, s)
	i.mu.Unlock()
	return nil
}

func (i *countingInjector) MoveMouse(x, y float64) error {
	return i.rec(fmt.Sprintf("move %v %v", x, y))
}
func (i *countingInjector) Click(string, bool) error                 { return i.rec("click") }
func (i *countingInjector) MouseDown(string, float64, float64) error { return i.rec("down") }
func (i *countingInjector) MouseUp(string, float64, float64) error   { return i.rec("up") }
func (i *countingInjector) Scroll(float64, float64) error            { return i.rec("scroll") }
func (i *countingInjector) KeyTap(key string, _ []string) error      { return i.rec("key " + key) }
func (i *countingInjector) TypeText(text string) error               { return i.rec("type " + text) }

func (i *countingInjector) got() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.calls...)
}
