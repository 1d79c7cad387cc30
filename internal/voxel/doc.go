// Package voxel implements the sparse block-based TSDF layer: the
// block store (component A) and the per-voxel weighted update rule
// (component B).
package voxel
