package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/voxgraph-go/internal/monitoring"
	"github.com/banshee-data/voxgraph-go/internal/pipeline"
)

// Decoder turns one received UDP payload into a pipeline message.
type Decoder interface {
	Decode(payload []byte, received time.Time) (pipeline.Message, error)
}

// Sink accepts decoded messages; internal/pipeline.Pipeline implements
// this directly.
type Sink interface {
	Insert(ctx context.Context, msg pipeline.Message)
}

// Stats receives per-packet counters; a caller that doesn't care can
// pass nil and NewUDPListener substitutes a noop.
type Stats interface {
	AddPacket(bytes int)
	AddDropped()
}

type noopStats struct{}

func (noopStats) AddPacket(int) {}
func (noopStats) AddDropped()   {}

// UDPListenerConfig configures a UDPListener, mirroring
// internal/lidar/network.UDPListenerConfig's shape.
type UDPListenerConfig struct {
	Address string
	RcvBuf  int
	Decoder Decoder
	Sink    Sink
	Stats   Stats
}

// UDPListener receives point cloud packets over UDP and forwards
// decoded messages to a Sink.
type UDPListener struct {
	cfg  UDPListenerConfig
	conn *net.UDPConn
}

// NewUDPListener builds a listener from cfg, substituting a noop Stats
// when none is supplied.
func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	if cfg.Stats == nil {
		cfg.Stats = noopStats{}
	}
	return &UDPListener{cfg: cfg}
}

// Start opens the UDP socket and reads until ctx is canceled, decoding
// each packet and forwarding it to the sink. Decode errors are logged
// and skipped rather than treated as fatal, matching the teacher's
// "don't fail on parse errors, just continue" handlePacket convention.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("transport: resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen UDP: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			monitoring.Logf("transport: failed to set UDP receive buffer to %d: %v", l.cfg.RcvBuf, err)
		}
	}
	monitoring.Logf("transport: UDP listener started on %s", l.cfg.Address)

	buffer := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("transport: UDP read error: %v", err)
			continue
		}

		l.cfg.Stats.AddPacket(n)
		l.handlePacket(ctx, buffer[:n])
	}
}

func (l *UDPListener) handlePacket(ctx context.Context, payload []byte) {
	if l.cfg.Decoder == nil || l.cfg.Sink == nil {
		return
	}
	msg, err := l.cfg.Decoder.Decode(payload, time.Now())
	if err != nil {
		l.cfg.Stats.AddDropped()
		monitoring.Logf("transport: decode failed: %v", err)
		return
	}
	l.cfg.Sink.Insert(ctx, msg)
}

// Close releases the UDP socket, if open.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
