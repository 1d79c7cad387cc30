//go:build !pcap
// +build !pcap

package transport

import (
	"context"
	"fmt"
)

// ReadPCAPFile is a stub used when PCAP support is disabled. Rebuild
// with -tags=pcap to enable PCAP file replay.
func ReadPCAPFile(ctx context.Context, path string, udpPort int, decoder Decoder, sink Sink, stats Stats) error {
	return fmt.Errorf("transport: PCAP support not enabled: rebuild with -tags=pcap")
}
