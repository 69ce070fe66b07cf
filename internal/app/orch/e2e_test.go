package orch_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	router "github.com/dkeye/Remote/internal/adapters/http"
	"github.com/dkeye/Remote/internal/adapters/link"
	"github.com/dkeye/Remote/internal/adapters/media"
	"github.com/dkeye/Remote/internal/adapters/rtc"
	"github.com/dkeye/Remote/internal/app"
	"github.com/dkeye/Remote/internal/app/control"
	"github.com/dkeye/Remote/internal/app/orch"
	"github.com/dkeye/Remote/internal/app/sfu"
	"github.com/dkeye/Remote/internal/config"
	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

type moves struct {
	mu sync.Mutex
	xy [][2]float64
}

func (m *moves) MoveMouse(x, y float64) error {
	m.mu.Lock()
	m.xy = append(m.xy, [2]float64{x, y})
	m.mu.Unlock()
	return nil
}

func (m *moves) Click(string, bool) error                 { return nil }
func (m *moves) MouseDown(string, float64, float64) error { return nil }
func (m *moves) MouseUp(string, float64, float64) error   { return nil }
func (m *moves) Scroll(float64, float64) error            { return nil }
func (m *moves) KeyTap(string, []string) error            { return nil }
func (m *moves) TypeText(string) error                    { return nil }

func (m *moves) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.xy)
}

func eventually(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func stateOf(reg *app.Registry, sid domain.SessionID) domain.SessionState {
	s, ok := reg.Get(sid)
	if !ok {
		return ""
	}
	return s.State()
}

func TestScreenShareThroughRelay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{Mode: "test", Secret: "e2e", StaticPath: t.TempDir(), ReadLimit: 1 << 20, SendBuffer: 64}
	hub := &orch.Orchestrator{Hub: core.NewHub(), Policy: app.SimplePolicy{}}
	srv := httptest.NewServer(router.SetupRouter(ctx, cfg, hub))
	defer srv.Close()
	relayURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	api, err := rtc.NewAPI(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	factory := rtc.NewFactory(api, webrtc.Configuration{})

	// Host side.
	hostLink := link.New(link.Options{ReconnectDelay: 100 * time.Millisecond})
	hostReg := app.NewRegistry(app.RegistryConfig{NewTransport: factory, Signal: hostLink})
	inj := &moves{}
	src := media.NewStaticSource(config.MediaConfig{
		Screens: []config.SourceConfig{{ID: "screen-0", Label: "Main"}},
	})
	host := orch.NewHost(ctx, hostReg, src, control.NewRouter(inj, true), hostLink)
	hostLink.OnMessage(host.OnEnvelope)
	defer host.Close()

	// Viewer side.
	viewerLink := link.New(link.Options{ReconnectDelay: 100 * time.Millisecond})
	viewerReg := app.NewRegistry(app.RegistryConfig{NewTransport: factory, Signal: viewerLink})
	viewer := orch.NewViewer(ctx, viewerReg, viewerLink, sfu.NewRelayManager(), "")
	viewerLink.OnMessage(viewer.OnEnvelope)
	defer viewer.Close()

	hostLink.Connect(ctx, relayURL)
	viewerLink.Connect(ctx, relayURL)
	defer hostLink.Close()
	defer viewerLink.Close()
	eventually(t, 3*time.Second, "both links on the relay", func() bool { return hub.Hub.PeerCount() == 2 })

	if err := viewer.RequestScreens(); err != nil {
		t.Fatalf("request screens: %v", err)
	}
	eventually(t, 3*time.Second, "screen list", func() bool { return len(viewer.Screens()) == 1 })

	if err := viewer.StartScreenShare(viewer.Screens()[0].ID); err != nil {
		t.Fatalf("start screen share: %v", err)
	}
	sid := domain.Named(domain.ScreenSession)
	eventually(t, 5*time.Second, "negotiation", func() bool {
		return stateOf(hostReg, sid) == domain.StateConnected && stateOf(viewerReg, sid) == domain.StateConnected
	})
	if !host.Router.Sharing() {
		t.Fatal("sharing not enabled on the host")
	}

	// The control channel opens once ICE and DTLS complete.
	eventually(t, 15*time.Second, "control channel", func() bool {
		return viewer.SendCommand(sid, protocol.MouseMove(0.5, 0.5)) == nil
	})
	eventually(t, 5*time.Second, "command injected", func() bool { return inj.count() >= 1 })

	// Stopping on the viewer and asking again gives a brand new session.
	if err := viewer.StopScreenShare(); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, "host session stopped", func() bool { return stateOf(hostReg, sid) == "" })
	// The host may notice the closed transport before the stop request.
	eventually(t, 3*time.Second, "sharing disabled", func() bool { return !host.Router.Sharing() })
}
