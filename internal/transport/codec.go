package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/banshee-data/voxgraph-go/internal/pipeline"
)

// wirePoint is one point cloud sample's fixed-size wire record:
// position, color, a has-color flag, and a freespace flag.
type wirePoint struct {
	X, Y, Z             float32
	R, G, B             uint8
	HasColor, Freespace uint8
}

// PointCloudCodec encodes/decodes pipeline.Message as a flat binary
// packet: a uint32 point count followed by that many wirePoint
// records, one flattened record per point. The freespace flag is
// carried in every record, but Encode writes the message's flag into
// all of them and Decode marks the whole message as freespace if any
// record has it set, so a packet cannot mix surface and freespace
// samples.
type PointCloudCodec struct{}

// Decode implements Decoder.
func (PointCloudCodec) Decode(payload []byte, received time.Time) (pipeline.Message, error) {
	r := bytes.NewReader(payload)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return pipeline.Message{}, fmt.Errorf("transport: read point count: %w", err)
	}

	points := make([]pipeline.PointRecord, 0, count)
	isFreespace := false
	for i := uint32(0); i < count; i++ {
		var wp wirePoint
		if err := binary.Read(r, binary.LittleEndian, &wp); err != nil {
			return pipeline.Message{}, fmt.Errorf("transport: read point %d: %w", i, err)
		}
		points = append(points, pipeline.PointRecord{
			X: float64(wp.X), Y: float64(wp.Y), Z: float64(wp.Z),
			Color:    [3]uint8{wp.R, wp.G, wp.B},
			HasColor: wp.HasColor != 0,
		})
		if wp.Freespace != 0 {
			isFreespace = true
		}
	}

	return pipeline.Message{Timestamp: received, Points: points, IsFreespace: isFreespace}, nil
}

// Encode serializes msg back to the wire format Decode expects, used
// by tests and by any forwarder replaying a message onward.
func (PointCloudCodec) Encode(msg pipeline.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(msg.Points))); err != nil {
		return nil, fmt.Errorf("transport: write point count: %w", err)
	}
	var freespace uint8
	if msg.IsFreespace {
		freespace = 1
	}
	for _, p := range msg.Points {
		wp := wirePoint{
			X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z),
			R: p.Color[0], G: p.Color[1], B: p.Color[2],
			Freespace: freespace,
		}
		if p.HasColor {
			wp.HasColor = 1
		}
		if err := binary.Write(&buf, binary.LittleEndian, wp); err != nil {
			return nil, fmt.Errorf("transport: write point: %w", err)
		}
	}
	return buf.Bytes(), nil
}
