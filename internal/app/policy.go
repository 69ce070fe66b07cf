package app

import "github.com/dkeye/Remote/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickPeer
	DropFrame
)

// Policy decides what happens to a relay peer whose outbound queue is full.
type Policy interface {
	OnBackPressure(hub core.HubService, peer core.PeerSession) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(hub core.HubService, peer core.PeerSession) BackpressureAction {
	return KickPeer
}

// DropPolicy keeps slow peers connected; they just miss the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(hub core.HubService, peer core.PeerSession) BackpressureAction {
	return DropFrame
}

func PolicyByName(name string) Policy {
	switch name {
	case "drop":
		return DropPolicy{}
	default:
		return SimplePolicy{}
	}
}
