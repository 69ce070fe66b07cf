package sfu

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Remote/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

type chanSource struct {
	id  string
	pkt chan *rtp.Packet
}

func newChanSource(id string) *chanSource {
	return &chanSource{id: id, pkt: make(chan *rtp.Packet)}
}

func (s *chanSource) ID() string { return s.id }

func (s *chanSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	p, ok := <-s.pkt
	if !ok {
		return nil, nil, io.EOF
	}
	return p, nil, nil
}

type memSink struct {
	mu   sync.Mutex
	seqs []uint16
	err  error
}

func (s *memSink) WriteRTP(p *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seqs = append(s.seqs, p.SequenceNumber)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seqs)
}

func packet(seq uint16) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 96, SequenceNumber: seq, SSRC: 42},
		Payload: []byte{1, 2, 3},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRelayFansOutAndDropsFailingSinks(t *testing.T) {
	m := NewRelayManager()
	src := newChanSource("video")
	sid := domain.Named(domain.CameraSession)
	relay := m.StartRelay(context.Background(), sid, src)
	key := RelayKey{Session: sid, Track: "video"}

	good, muted, bad := &memSink{}, &memSink{}, &memSink{err: errors.New("gone")}
	if !m.AddSubscriber(key, "good", good) || !m.AddSubscriber(key, "muted", muted) || !m.AddSubscriber(key, "bad", bad) {
		t.Fatal("subscriber not attached")
	}
	m.SetMuted(key, "muted", true)

	src.pkt <- packet(1)
	src.pkt <- packet(2)
	waitFor(t, func() bool { return good.count() == 2 })

	if muted.count() != 0 {
		t.Fatalf("muted sink got %d packets", muted.count())
	}
	waitFor(t, func() bool { return relay.Subscribers() == 2 })

	m.SetMuted(key, "muted", false)
	src.pkt <- packet(3)
	waitFor(t, func() bool { return muted.count() == 1 })

	close(src.pkt)
	<-relay.Done()
}

func TestRelayAddSubscriberWithoutRelay(t *testing.T) {
	m := NewRelayManager()
	if m.AddSubscriber(RelayKey{Session: domain.Implicit, Track: "video"}, "x", &memSink{}) {
		t.Fatal("subscriber attached to a missing relay")
	}
}

func TestMarkSubscriberDeleteDetachesOnNextPacket(t *testing.T) {
	m := NewRelayManager()
	src := newChanSource("video")
	sid := domain.Named(domain.ScreenSession)
	relay := m.StartRelay(context.Background(), sid, src)
	key := RelayKey{Session: sid, Track: "video"}

	keep, gone := &memSink{}, &memSink{}
	m.AddSubscriber(key, "keep", keep)
	m.AddSubscriber(key, "gone", gone)
	if !m.MarkSubscriberDelete(key, "gone") {
		t.Fatal("subscriber not found")
	}
	if m.MarkSubscriberDelete(key, "missing") {
		t.Fatal("missing subscriber reported as marked")
	}

	src.pkt <- packet(1)
	waitFor(t, func() bool { return keep.count() == 1 })
	waitFor(t, func() bool { return relay.Subscribers() == 1 })
	if gone.count() != 0 {
		t.Fatalf("deleted sink got %d packets", gone.count())
	}
	if _, ok := relay.OutTrack("gone"); ok {
		t.Fatal("deleted subscriber still attached")
	}

	close(src.pkt)
	<-relay.Done()
}

func TestStopRelayEndsLoop(t *testing.T) {
	m := NewRelayManager()
	src := newChanSource("video")
	sid := domain.Named(domain.ScreenSession)
	relay := m.StartRelay(context.Background(), sid, src)
	sink := &memSink{}
	m.AddSubscriber(RelayKey{Session: sid, Track: "video"}, "s", sink)

	m.StopRelay(sid)
	if m.HasRelay(sid) {
		t.Fatal("relay still registered")
	}
	// The loop notices cancellation after its pending read returns.
	src.pkt <- packet(1)
	select {
	case <-relay.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("relay loop still running")
	}
	if sink.count() != 0 {
		t.Fatalf("stopped relay forwarded %d packets", sink.count())
	}
}

func TestStartRelayReplacesSameTrack(t *testing.T) {
	m := NewRelayManager()
	sid := domain.Named(domain.CameraSession)
	key := RelayKey{Session: sid, Track: "video"}
	first := m.StartRelay(context.Background(), sid, newChanSource("video"))
	m.AddSubscriber(key, "s", &memSink{})
	second := m.StartRelay(context.Background(), sid, newChanSource("video"))

	ot, ok := first.OutTrack("s")
	if !ok || ot.GetState() != TrackStateDelete {
		t.Fatal("old relay subscribers not marked for delete")
	}
	if cur, ok := m.Relay(key); !ok || cur != second {
		t.Fatal("manager does not hold the replacement")
	}
	m.StopAll()
}

func TestSessionTracksRelayIndependently(t *testing.T) {
	m := NewRelayManager()
	sid := domain.Named(domain.CameraSession)
	video, audio := newChanSource("video"), newChanSource("audio")
	m.StartRelay(context.Background(), sid, video)
	audioRelay := m.StartRelay(context.Background(), sid, audio)

	vSink, aSink := &memSink{}, &memSink{}
	m.AddSubscriber(RelayKey{Session: sid, Track: "video"}, "s", vSink)
	m.AddSubscriber(RelayKey{Session: sid, Track: "audio"}, "s", aSink)
	if n := len(m.Tracks(sid)); n != 2 {
		t.Fatalf("tracks = %d", n)
	}

	video.pkt <- packet(1)
	audio.pkt <- packet(2)
	waitFor(t, func() bool { return vSink.count() == 1 && aSink.count() == 1 })

	// An ended track leaves the manager; its sibling keeps running.
	close(audio.pkt)
	<-audioRelay.Done()
	waitFor(t, func() bool { return len(m.Tracks(sid)) == 1 })
	video.pkt <- packet(3)
	waitFor(t, func() bool { return vSink.count() == 2 })

	m.StopRelay(sid)
	if m.HasRelay(sid) {
		t.Fatal("relays of the session still registered")
	}
	close(video.pkt)
}

func TestUDPSinkForwardsPackets(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	sink, err := NewUDPSink(pc.LocalAddr().String())
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	defer sink.Close()

	if err := sink.WriteRTP(packet(7)); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 1500)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got rtp.Packet
	if err := got.Unmarshal(buf[:n]); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.SequenceNumber != 7 || got.SSRC != 42 || len(got.Payload) != 3 {
		t.Fatalf("packet = %+v", got.Header)
	}
}
