package service

import "gonum.org/v1/gonum/spatial/r3"

// ColoredPoint is one sample of any of the point-cloud output kinds:
// a world-frame position, optional color, and the distance the sample
// was drawn from (zero for kinds that are not distance-derived).
type ColoredPoint struct {
	Position r3.Vec
	Color    [3]uint8
	Distance float32
}

// PointCloudKind selects which of spec.md §6's named point-cloud
// products a PublishPointClouds call streams.
type PointCloudKind int

const (
	// UpdatedVoxelCloud emits every voxel touched since the last call
	// (spec.md's "updated-voxel point cloud").
	UpdatedVoxelCloud PointCloudKind = iota
	// IsosurfaceCloud emits voxels near the TSDF zero crossing.
	IsosurfaceCloud
	// OccupancyCloud emits voxels within the occupied band
	// (negative distance, within the truncation distance).
	OccupancyCloud
	// SliceCloud emits a thin horizontal cross-section at a chosen Z.
	SliceCloud
	// ReprojectedCloud emits every observed voxel's center,
	// regardless of distance, i.e. the full reprojected map.
	ReprojectedCloud
)

// PointCloudRequest configures a PublishPointClouds stream.
type PointCloudRequest struct {
	Kind PointCloudKind
	// SliceZ selects the cross-section height for SliceCloud; ignored
	// otherwise.
	SliceZ float64
	// SliceThickness is the half-thickness (world units) of the
	// SliceCloud cross-section band around SliceZ.
	SliceThickness float64
}

// PointCloudMessage is one streamed frame of points.
type PointCloudMessage struct {
	Points []ColoredPoint
}

// MeshMessage is one streamed mesh update: the mesh's current
// triangles, grouped by the source block so a client can incrementally
// patch its own copy.
type MeshMessage struct {
	Blocks []MeshBlock
	// History is populated only when PublishMapRequest.WithHistory is
	// set: it is the growing list of every MeshBlock sent with history
	// so far (this frame's blocks included), kept per service and reset
	// by ClearMap, spec.md §6's optional "mesh message with history"
	// variant.
	History []MeshBlock
}

// MeshBlock is one block's worth of triangles.
type MeshBlock struct {
	BlockIndex [3]int64
	Triangles  []Triangle
}

// Triangle is three world-frame vertices.
type Triangle struct {
	A, B, C r3.Vec
}

// PublishMapRequest configures a PublishMap stream.
type PublishMapRequest struct {
	WithHistory bool
}

// GenerateMeshRequest triggers a one-shot mesh (re)generation.
type GenerateMeshRequest struct {
	OnlyUpdated bool
}

// GenerateMeshResponse reports how many blocks were (re)meshed.
type GenerateMeshResponse struct {
	BlocksGenerated int
}

// ClearMapRequest clears the active map state.
type ClearMapRequest struct{}

// ClearMapResponse is empty; the call either succeeds or returns an error.
type ClearMapResponse struct{}

// SaveMapRequest names the destination for save_map.
type SaveMapRequest struct {
	Path string
}

// SaveMapResponse is empty; the call either succeeds or returns an error.
type SaveMapResponse struct{}

// LoadMapRequest names the source for load_map.
type LoadMapRequest struct {
	Path string
}

// LoadMapResponse reports what was restored.
type LoadMapResponse struct {
	SubmapsLoaded int
	NodesLoaded   int
}

// ToggleMappingRequest enables or disables further map updates without
// tearing down the service (spec.md §6's toggle_mapping).
type ToggleMappingRequest struct {
	Enabled bool
}

// ToggleMappingResponse reports the resulting state.
type ToggleMappingResponse struct {
	Enabled bool
}
