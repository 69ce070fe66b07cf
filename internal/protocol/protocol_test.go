package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/Remote/internal/domain"
	"github.com/pion/webrtc/v4"
)

func TestDecodeEnvelopeSessionID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.SessionID
	}{
		{"absent", `{"type":"answer","sdp":"v=0"}`, domain.Implicit},
		{"named", `{"sdp":"v=0","sessionId":"screen","type":"answer"}`, domain.Named("screen")},
		{"empty", `{"type":"answer","sessionId":""}`, domain.Named("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := env.Session(); got != tt.want {
				t.Fatalf("session = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xfe, '{'}); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatalf("expected json error")
	}
	if _, err := Decode([]byte(`{"sdp":"x"}`)); !errors.Is(err, ErrMissingType) {
		t.Fatalf("expected ErrMissingType, got %v", err)
	}
}

func TestCandidateEnvelopeCarriesInit(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	env := Candidate(domain.Named("camera"), webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	})
	b, err := Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["sessionId"] != "camera" || raw["type"] != "ice-candidate" {
		t.Fatalf("unexpected envelope: %s", b)
	}
	cand, ok := raw["candidate"].(map[string]any)
	if !ok || cand["sdpMid"] != "0" {
		t.Fatalf("candidate not encoded as object: %s", b)
	}
	if _, ok := raw["x"]; ok {
		t.Fatalf("control fields must be omitted: %s", b)
	}
}

func TestImplicitEnvelopeOmitsSessionID(t *testing.T) {
	b, err := Encode(Offer(domain.Implicit, "v=0"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if _, ok := raw["sessionId"]; ok {
		t.Fatalf("implicit session must not carry sessionId: %s", b)
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		raw     string
		want    Command
		wantErr error
	}{
		{raw: `{"type":"mouse-move","x":10,"y":20.5}`, want: MouseMove(10, 20.5)},
		{raw: `{"type":"mouse-move","x":0,"y":0}`, want: MouseMove(0, 0)},
		{raw: `{"type":"mouse-move","x":10}`, wantErr: ErrMissingField},
		{raw: `{"type":"mouse-click"}`, want: MouseClick("left", false)},
		{raw: `{"type":"mouse-click","button":"right","doubleClick":true}`, want: MouseClick("right", true)},
		{raw: `{"type":"mouse-down","x":1,"y":2}`, want: MouseDown("left", 1, 2)},
		{raw: `{"type":"mouse-up","button":"middle","x":1,"y":2}`, want: MouseUp("middle", 1, 2)},
		{raw: `{"type":"mouse-scroll","x":0,"y":-120}`, want: MouseScroll(0, -120)},
		{raw: `{"type":"key-press","key":"a","modifiers":["control","shift"]}`, want: KeyPress("a", "control", "shift")},
		{raw: `{"type":"key-press","modifiers":["control"]}`, wantErr: ErrMissingField},
		{raw: `{"type":"key-type","text":""}`, want: KeyType("")},
		{raw: `{"type":"key-type"}`, wantErr: ErrMissingField},
		{raw: `{"type":"offer","sdp":"v=0"}`, wantErr: ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Type != tt.want.Type || got.X != tt.want.X || got.Y != tt.want.Y ||
				got.Button != tt.want.Button || got.DoubleClick != tt.want.DoubleClick ||
				got.Key != tt.want.Key || got.Text != tt.want.Text ||
				len(got.Modifiers) != len(tt.want.Modifiers) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodeCommandKeepsZeroCoordinates(t *testing.T) {
	b, err := EncodeCommand(MouseMove(0, 0))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(b) != `{"type":"mouse-move","x":0,"y":0}` {
		t.Fatalf("unexpected record %s", b)
	}
	if _, err := EncodeCommand(Command{Type: "wiggle"}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestEnvelopeCommand(t *testing.T) {
	env, err := Decode([]byte(`{"type":"key-press","key":"Enter"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cmd, err := env.Command()
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if cmd.Key != "Enter" {
		t.Fatalf("key = %q", cmd.Key)
	}
	if KeyType("hi").Envelope().Type != TypeKeyType {
		t.Fatalf("command envelope must keep its type")
	}
}
