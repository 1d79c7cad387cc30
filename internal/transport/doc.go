// Package transport ingests point clouds over the network: a UDP
// listener for live capture and a PCAP replay path for offline
// analysis, grounded on internal/lidar/network's listener.go (context-
// cancellable read loop with a deadline poll, stats interface with a
// noop default) and pcap_realtime.go/pcap_stub.go (the pcap build-tag
// split that keeps github.com/google/gopacket/pcap's cgo dependency
// out of default builds).
//
// Decoder and Sink are the seams that keep this package independent of
// internal/pipeline's concrete Pipeline type; both are expressed in
// terms of pipeline.Message, so the package does import
// internal/pipeline for that type.
package transport
