package core

import (
	"github.com/pion/webrtc/v4"
)

// DataChannel is the reliable ordered path that carries control records.
type DataChannel interface {
	Label() string
	IsOpen() bool
	OnOpen(func())
	OnMessage(func([]byte))
	SendText(string) error
	Close() error
}

// Transport is one peer-to-peer connection driven by a negotiation session.
type Transport interface {
	// AddLocalTrack attaches an outgoing media track before the offer is made.
	AddLocalTrack(webrtc.TrackLocal) error
	// CreateDataChannel opens a reliable ordered channel; offerer side only.
	CreateDataChannel(label string) (DataChannel, error)
	// CreateAndSetOffer creates an offer and applies it as local description.
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	// SetRemoteDescription applies a remote offer or answer.
	SetRemoteDescription(webrtc.SessionDescription) error
	// CreateAndSetAnswer answers an applied remote offer and sets it locally.
	CreateAndSetAnswer() (*webrtc.SessionDescription, error)
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnDataChannel sets a callback for channels opened by the remote side.
	OnDataChannel(func(DataChannel))
	// OnTrack sets a callback invoked when a new remote track arrives.
	OnTrack(func(*webrtc.TrackRemote))
	// OnClosed sets a callback for transport failure or close.
	OnClosed(func())
	Close()
}

// TransportFactory builds a fresh transport for one session.
type TransportFactory func(label string) (Transport, error)
