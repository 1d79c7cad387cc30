//go:build pcap
// +build pcap

package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/voxgraph-go/internal/monitoring"
)

// ReadPCAPFile replays a captured PCAP file through decoder/sink,
// filtering to UDP packets on udpPort, grounded on
// internal/lidar/network/pcap_realtime.go's gopacket usage (BPF
// filter, packet source loop, UDP payload extraction) with the
// real-time pacing dropped: replay runs as fast as decode/insert allow,
// since spec.md names offline replay as an ingestion mode, not a
// timing-accurate simulation.
func ReadPCAPFile(ctx context.Context, path string, udpPort int, decoder Decoder, sink Sink, stats Stats) error {
	if stats == nil {
		stats = noopStats{}
	}

	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return fmt.Errorf("transport: open pcap %s: %w", path, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("transport: set BPF filter %q: %w", filter, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	count := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-source.Packets():
			if !ok || packet == nil {
				monitoring.Logf("transport: pcap replay of %s complete (%d packets)", path, count)
				return nil
			}
			count++

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			stats.AddPacket(len(udp.Payload))
			captureTime := packet.Metadata().Timestamp
			if captureTime.IsZero() {
				captureTime = time.Now()
			}

			msg, err := decoder.Decode(udp.Payload, captureTime)
			if err != nil {
				stats.AddDropped()
				monitoring.Logf("transport: pcap decode failed on packet %d: %v", count, err)
				continue
			}
			sink.Insert(ctx, msg)
		}
	}
}
