package rtc

import (
	"github.com/pion/webrtc/v4"
)

// DataChannel adapts a pion data channel to core.DataChannel.
type DataChannel struct {
	dc *webrtc.DataChannel
}

func (d *DataChannel) Label() string { return d.dc.Label() }

func (d *DataChannel) IsOpen() bool {
	return d.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (d *DataChannel) OnOpen(fn func()) { d.dc.OnOpen(fn) }

func (d *DataChannel) OnMessage(fn func([]byte)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (d *DataChannel) SendText(s string) error { return d.dc.SendText(s) }
func (d *DataChannel) Close() error            { return d.dc.Close() }
