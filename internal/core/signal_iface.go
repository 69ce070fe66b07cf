package core

import "errors"

var ErrBackpressure = errors.New("backpressure")

// Frame is one relay message, passed through verbatim with its frame type.
type Frame struct {
	Data   []byte
	Binary bool
}

func TextFrame(data []byte) Frame { return Frame{Data: data} }

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
