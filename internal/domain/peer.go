// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxClientTokenLen = 36

var ErrClientTokenTooLong = errors.New("client token too long")

type PeerID string

// Peer is one relay connection. The hub never looks past this meta.
type Peer struct {
	ID          PeerID    `json:"id"`
	ClientToken string    `json:"client_token,omitempty"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// NewPeer is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewPeer(remoteAddr, clientToken string) (*Peer, error) {
	if len(clientToken) > MaxClientTokenLen {
		return nil, ErrClientTokenTooLong
	}
	return &Peer{
		ID:          PeerID(uuid.NewString()),
		ClientToken: clientToken,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}, nil
}
