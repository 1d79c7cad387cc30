package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// Action is the wire header's action tag (spec.md §6).
type Action uint8

const (
	ActionUpdate Action = iota
	ActionMerge
	ActionReset
)

// Header is the fixed-size record that opens every layer message.
type Header struct {
	VoxelSize     float32
	VoxelsPerSide int32
	Action        Action
}

// blockHeader is the fixed-size portion of a block record: 3xint32
// index, 3xfloat32 origin.
type blockHeader struct {
	IndexX, IndexY, IndexZ int32
	OriginX, OriginY, OriginZ float32
}

// wireVoxel is the exact 12-byte on-wire voxel record: distance
// float32, weight float32, color 3xuint8, padding uint8.
type wireVoxel struct {
	Distance float32
	Weight   float32
	Color    [3]uint8
	Padding  uint8
}

// BlockMessage is one decoded block record.
type BlockMessage struct {
	Index  voxel.BlockIndex
	Origin r3.Vec
	Voxels []voxel.Voxel
}

// LayerMessage is a fully decoded wire message: a header plus however
// many block records followed it.
type LayerMessage struct {
	Header Header
	Blocks []BlockMessage
}

// Encode writes every block of layer to w as one wire message tagged
// with action.
func Encode(w io.Writer, layer *voxel.Layer, action Action) error {
	hdr := Header{
		VoxelSize:     float32(layer.VoxelSize),
		VoxelsPerSide: int32(layer.VoxelsPerSide),
		Action:        action,
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.VoxelSize); err != nil {
		return fmt.Errorf("wire: write voxel_size: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.VoxelsPerSide); err != nil {
		return fmt.Errorf("wire: write voxels_per_side: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.Action); err != nil {
		return fmt.Errorf("wire: write action: %w", err)
	}

	for _, idx := range layer.IterateAll() {
		blk, ok := layer.Get(idx)
		if !ok {
			continue
		}
		if err := encodeBlock(w, idx, blk); err != nil {
			return err
		}
	}
	return nil
}

func encodeBlock(w io.Writer, idx voxel.BlockIndex, blk *voxel.Block) error {
	bh := blockHeader{
		IndexX: int32(idx[0]), IndexY: int32(idx[1]), IndexZ: int32(idx[2]),
		OriginX: float32(blk.Origin.X), OriginY: float32(blk.Origin.Y), OriginZ: float32(blk.Origin.Z),
	}
	if err := binary.Write(w, binary.LittleEndian, bh); err != nil {
		return fmt.Errorf("wire: write block header: %w", err)
	}

	snapshot := blk.Snapshot()
	wv := make([]wireVoxel, len(snapshot))
	for i, v := range snapshot {
		wv[i] = wireVoxel{Distance: v.Distance, Weight: v.Weight, Color: v.Color}
	}
	if err := binary.Write(w, binary.LittleEndian, wv); err != nil {
		return fmt.Errorf("wire: write block payload: %w", err)
	}
	return nil
}

// Decode reads one wire message from r in full.
func Decode(r io.Reader) (*LayerMessage, error) {
	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr.VoxelSize); err != nil {
		return nil, fmt.Errorf("wire: read voxel_size: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.VoxelsPerSide); err != nil {
		return nil, fmt.Errorf("wire: read voxels_per_side: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.Action); err != nil {
		return nil, fmt.Errorf("wire: read action: %w", err)
	}
	if hdr.VoxelsPerSide <= 0 {
		return nil, fmt.Errorf("wire: invalid voxels_per_side %d", hdr.VoxelsPerSide)
	}

	msg := &LayerMessage{Header: hdr}
	numVoxels := int(hdr.VoxelsPerSide) * int(hdr.VoxelsPerSide) * int(hdr.VoxelsPerSide)

	for {
		block, err := decodeBlock(r, numVoxels)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		msg.Blocks = append(msg.Blocks, block)
	}
	return msg, nil
}

func decodeBlock(r io.Reader, numVoxels int) (BlockMessage, error) {
	var bh blockHeader
	if err := binary.Read(r, binary.LittleEndian, &bh); err != nil {
		if err == io.EOF {
			return BlockMessage{}, io.EOF
		}
		return BlockMessage{}, fmt.Errorf("wire: read block header: %w", err)
	}

	wv := make([]wireVoxel, numVoxels)
	if err := binary.Read(r, binary.LittleEndian, wv); err != nil {
		return BlockMessage{}, fmt.Errorf("wire: read block payload: %w", err)
	}

	voxels := make([]voxel.Voxel, numVoxels)
	for i, v := range wv {
		voxels[i] = voxel.Voxel{Distance: v.Distance, Weight: v.Weight, Color: v.Color}
	}

	return BlockMessage{
		Index:  voxel.BlockIndex{int64(bh.IndexX), int64(bh.IndexY), int64(bh.IndexZ)},
		Origin: r3.Vec{X: float64(bh.OriginX), Y: float64(bh.OriginY), Z: float64(bh.OriginZ)},
		Voxels: voxels,
	}, nil
}

// Apply merges msg into layer per its header's action tag (spec.md
// §6): Update overwrites matching block indices wholesale, Merge folds
// each incoming voxel through the §4.B weighted-update rule
// (voxel.Update), and Reset clears layer first so the message becomes
// the receiver's entire content.
func Apply(layer *voxel.Layer, msg *LayerMessage, wMax float32) {
	if msg.Header.Action == ActionReset {
		layer.Clear()
	}

	for _, block := range msg.Blocks {
		blk := layer.AllocateOrGet(block.Index)
		for i, incoming := range block.Voxels {
			switch msg.Header.Action {
			case ActionMerge:
				blk.WithVoxel(i, func(v *voxel.Voxel) {
					obs := voxel.Observation{
						Distance: incoming.Distance,
						Weight:   incoming.Weight,
						Color:    incoming.Color,
						HasColor: incoming.Weight > 0,
					}
					*v = voxel.Update(*v, obs, wMax)
				})
			default: // ActionUpdate, ActionReset
				blk.SetVoxel(i, incoming)
			}
		}
	}
}
