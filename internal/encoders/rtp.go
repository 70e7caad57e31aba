package encoders

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
)

// rtpListener counts valid RTP packets arriving on a UDP port.
type rtpListener struct {
	conn    net.PacketConn
	packets atomic.Int64
	wg      sync.WaitGroup
}

func listenRTP(port int) (*rtpListener, error) {
	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}
	l := &rtpListener{conn: conn}
	l.wg.Add(1)
	go l.read()
	return l, nil
}

func (l *rtpListener) read() {
	defer l.wg.Done()
	buf := make([]byte, 1500)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		var pkt rtp.Packet
		if pkt.Unmarshal(buf[:n]) == nil && pkt.Version == 2 {
			l.packets.Add(1)
		}
	}
}

// Packets returns the number of valid packets seen so far.
func (l *rtpListener) Packets() int64 {
	return l.packets.Load()
}

// Addr returns the bound address.
func (l *rtpListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Close stops the listener.
func (l *rtpListener) Close() {
	_ = l.conn.Close()
	l.wg.Wait()
}
