package sfu

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
)

// UDPSink forwards RTP to a local UDP address for an external player.
type UDPSink struct {
	conn *net.UDPConn
	buf  []byte
}

func NewUDPSink(addr string) (*UDPSink, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	log.Info().Str("module", "sfu.udp").Str("addr", raddr.String()).Msg("forwarding rtp")
	return &UDPSink{conn: conn, buf: make([]byte, 1500)}, nil
}

// WriteRTP is called from a single relay loop and reuses one buffer.
// A player that is not listening yet is not an error.
func (s *UDPSink) WriteRTP(pkt *rtp.Packet) error {
	if size := pkt.MarshalSize(); size > len(s.buf) {
		s.buf = make([]byte, size)
	}
	n, err := pkt.MarshalTo(s.buf)
	if err != nil {
		return fmt.Errorf("marshal rtp: %w", err)
	}
	if _, err := s.conn.Write(s.buf[:n]); err != nil && !errors.Is(err, syscall.ECONNREFUSED) {
		return err
	}
	return nil
}

func (s *UDPSink) Close() error { return s.conn.Close() }
