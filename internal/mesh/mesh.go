package mesh

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// Triangle is one output triangle in world (layer) coordinates.
type Triangle struct {
	A, B, C r3.Vec
}

// Tile is one block's worth of mesh output: the mesh message spec.md
// §4.G describes as referencing block indices and their triangle
// buffers, plus the dirty bit downstream consumers check.
type Tile struct {
	Triangles []Triangle
	Updated   bool
}

// Mesh is the mesh layer: a sparse map from BlockIndex to Tile,
// read-only to publishers and owned by the mesher (spec.md §9's
// cyclic-reference-risk note: this package looks up the TSDF layer,
// it does not own it).
type Mesh struct {
	mu    sync.RWMutex
	tiles map[voxel.BlockIndex]*Tile
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{tiles: make(map[voxel.BlockIndex]*Tile)}
}

// Tile returns the tile at idx, if generated.
func (m *Mesh) Tile(idx voxel.BlockIndex) (*Tile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tiles[idx]
	return t, ok
}

// Indices returns a snapshot of every tile index, matching the
// layer's snapshot-iteration convention.
func (m *Mesh) Indices() []voxel.BlockIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]voxel.BlockIndex, 0, len(m.tiles))
	for idx := range m.tiles {
		out = append(out, idx)
	}
	return out
}

// Clear removes every tile (spec.md §8's clear() invariant: "the mesh
// layer contains zero meshes").
func (m *Mesh) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles = make(map[voxel.BlockIndex]*Tile)
}

func (m *Mesh) setTile(idx voxel.BlockIndex, tris []Triangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles[idx] = &Tile{Triangles: tris, Updated: true}
}

// EvictBlocks implements internal/pipeline.MeshEvictor and
// internal/submap.MeshEvictor: a vanished (pruned) block is emitted
// with zero triangles and its updated bit set, so downstream
// consumers erase it (spec.md §4.G).
func (m *Mesh) EvictBlocks(indices []voxel.BlockIndex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, idx := range indices {
		m.tiles[idx] = &Tile{Updated: true}
	}
}

// ClearTileDirty clears a tile's updated bit once a consumer has seen
// it, mirroring the TSDF's per-consumer flag ownership (spec.md §9).
func (m *Mesh) ClearTileDirty(idx voxel.BlockIndex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tiles[idx]; ok {
		t.Updated = false
	}
}
