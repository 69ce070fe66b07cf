// Package protocol defines the relay envelope and the control command
// records carried over the relay and the control data channel.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dkeye/Remote/internal/domain"
	"github.com/pion/webrtc/v4"
)

var (
	ErrInvalidUTF8  = errors.New("payload is not valid utf-8")
	ErrMissingType  = errors.New("envelope has no type")
	ErrMissingField = errors.New("missing required field")
)

type Type string

const (
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"

	TypeGetCameras       Type = "get-cameras"
	TypeCameraList       Type = "camera-list"
	TypeGetScreens       Type = "get-screens"
	TypeScreenList       Type = "screen-list"
	TypeStartCamera      Type = "start-camera"
	TypeStopCamera       Type = "stop-camera"
	TypeStartScreenShare Type = "start-screen-share"
	TypeStopScreenShare  Type = "stop-screen-share"

	TypeMouseMove   Type = "mouse-move"
	TypeMouseClick  Type = "mouse-click"
	TypeMouseDown   Type = "mouse-down"
	TypeMouseUp     Type = "mouse-up"
	TypeMouseScroll Type = "mouse-scroll"
	TypeKeyPress    Type = "key-press"
	TypeKeyType     Type = "key-type"
)

// Camera is one video input device as listed by the host.
type Camera struct {
	DeviceID string `json:"deviceId"`
	Label    string `json:"label"`
}

// Screen is one shareable display or window.
type Screen struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Envelope is the flat record exchanged through the relay.
type Envelope struct {
	Type      Type                     `json:"type"`
	SessionID *string                  `json:"sessionId,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	DeviceID  string                   `json:"deviceId,omitempty"`
	ScreenID  string                   `json:"screenId,omitempty"`
	Cameras   []Camera                 `json:"cameras,omitempty"`
	Screens   []Screen                 `json:"screens,omitempty"`

	CommandFields
}

// Session returns the session the envelope is addressed to.
func (e Envelope) Session() domain.SessionID {
	return domain.SessionIDFrom(e.SessionID)
}

// For returns a copy addressed to sid.
func (e Envelope) For(sid domain.SessionID) Envelope {
	e.SessionID = sid.Wire()
	return e
}

func Encode(e Envelope) ([]byte, error) {
	if e.Type == "" {
		return nil, ErrMissingType
	}
	return json.Marshal(e)
}

// Decode parses one relay text frame.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if !utf8.Valid(data) {
		return e, ErrInvalidUTF8
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Type == "" {
		return e, ErrMissingType
	}
	return e, nil
}

func Offer(sid domain.SessionID, sdp string) Envelope {
	return Envelope{Type: TypeOffer, SessionID: sid.Wire(), SDP: sdp}
}

func Answer(sid domain.SessionID, sdp string) Envelope {
	return Envelope{Type: TypeAnswer, SessionID: sid.Wire(), SDP: sdp}
}

func Candidate(sid domain.SessionID, c webrtc.ICECandidateInit) Envelope {
	return Envelope{Type: TypeICECandidate, SessionID: sid.Wire(), Candidate: &c}
}

// Request builds a payload-less envelope such as get-cameras or stop-camera.
func Request(t Type) Envelope { return Envelope{Type: t} }

func CameraList(cams []Camera) Envelope { return Envelope{Type: TypeCameraList, Cameras: cams} }
func ScreenList(scrs []Screen) Envelope { return Envelope{Type: TypeScreenList, Screens: scrs} }

func StartCamera(deviceID string) Envelope {
	return Envelope{Type: TypeStartCamera, DeviceID: deviceID}
}

func StartScreenShare(screenID string) Envelope {
	return Envelope{Type: TypeStartScreenShare, ScreenID: screenID}
}
