package core

import (
	"context"
	"errors"

	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/pion/webrtc/v4"
)

var ErrSourceNotFound = errors.New("media source not found")

// MediaBinding is a captured media handle. A session owns it and calls
// Close exactly once when it stops.
type MediaBinding interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// MediaSource enumerates and opens cameras and screens.
// Open reports ErrSourceNotFound for unknown ids.
type MediaSource interface {
	Cameras(ctx context.Context) ([]protocol.Camera, error)
	Screens(ctx context.Context) ([]protocol.Screen, error)
	Open(ctx context.Context, kind domain.MediaKind, id string) (MediaBinding, error)
}

// InputInjector performs control commands on the local OS.
// Unknown key or modifier names are passed through best-effort.
type InputInjector interface {
	MoveMouse(x, y float64) error
	Click(button string, double bool) error
	MouseDown(button string, x, y float64) error
	MouseUp(button string, x, y float64) error
	Scroll(dx, dy float64) error
	KeyTap(key string, modifiers []string) error
	TypeText(text string) error
}
