// Package mesh implements the mesh extractor interface (component G):
// per-block triangle generation from a TSDF layer, with neighbor
// voxel access across block boundaries, dirty-bit mirroring of the
// TSDF's Mesh flag, and zero-triangle emission for pruned blocks
// (spec.md §4.G).
//
// Triangulation here is a simplified surface-nets variant (one active
// vertex per sign-changing cell, stitched into quads along the xy
// orientation only) rather than a full marching-cubes case table or
// complete dual-contouring edge stitching: spec.md names the mesh
// extractor as an interface around the TSDF, not a specific
// triangulation algorithm, and the case-table itself is out of this
// component's scope. The triangulation lives in cellVertex and
// stitchXYQuads; there is no separate triangulator interface.
package mesh
