// Package media provides a MediaSource backed by configuration. Each
// opened source is a sample track that capture code can write into.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Remote/internal/config"
	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const streamID = "remote"

type StaticSource struct {
	cameras []config.SourceConfig
	screens []config.SourceConfig
}

func NewStaticSource(cfg config.MediaConfig) *StaticSource {
	return &StaticSource{cameras: cfg.Cameras, screens: cfg.Screens}
}

func (s *StaticSource) Cameras(context.Context) ([]protocol.Camera, error) {
	out := make([]protocol.Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		out = append(out, protocol.Camera{DeviceID: c.ID, Label: c.Label})
	}
	return out, nil
}

func (s *StaticSource) Screens(context.Context) ([]protocol.Screen, error) {
	out := make([]protocol.Screen, 0, len(s.screens))
	for _, c := range s.screens {
		out = append(out, protocol.Screen{ID: c.ID, Name: c.Label})
	}
	return out, nil
}

func (s *StaticSource) Open(_ context.Context, kind domain.MediaKind, id string) (core.MediaBinding, error) {
	list := s.cameras
	if kind == domain.MediaScreen {
		list = s.screens
	}
	for _, c := range list {
		if c.ID != id {
			continue
		}
		mime := c.MimeType
		if mime == "" {
			mime = webrtc.MimeTypeVP8
		}
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: mime},
			fmt.Sprintf("%s-%s", kind, id),
			streamID,
		)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, id, err)
		}
		log.Info().Str("module", "media").Str("kind", string(kind)).Str("source", id).Str("mime", mime).Msg("source opened")
		return &Binding{kind: kind, id: id, track: track}, nil
	}
	return nil, fmt.Errorf("%s %q: %w", kind, id, core.ErrSourceNotFound)
}

// Binding is one opened source. Track is exported so capture code can
// write samples into it.
type Binding struct {
	kind  domain.MediaKind
	id    string
	track *webrtc.TrackLocalStaticSample

	mu     sync.Mutex
	closed bool
}

func (b *Binding) Track() *webrtc.TrackLocalStaticSample { return b.track }
func (b *Binding) Tracks() []webrtc.TrackLocal           { return []webrtc.TrackLocal{b.track} }

func (b *Binding) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Binding) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	log.Info().Str("module", "media").Str("kind", string(b.kind)).Str("source", b.id).Msg("source released")
	return nil
}
