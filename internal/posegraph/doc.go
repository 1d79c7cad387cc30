// Package posegraph implements the pose graph (component H):
// 4-DoF (x, y, z, yaw) submap and reference-frame nodes, absolute-
// pose/relative-pose/registration constraints, and a
// Levenberg-Marquardt nonlinear least-squares solve built on
// gonum.org/v1/gonum/mat for the normal-equation solve and marginal
// covariance extraction (spec.md §4.H).
//
// No teacher grounding exists for the numerics (the old tracker never
// optimized anything larger than a per-frame assignment problem); the
// node/constraint surface -- including the add-only-at-construction
// vs toggle-constant-later distinction, and the reset methods -- is
// grounded directly on _examples/original_source's voxgraph/pose_graph.h
// (see SPEC_FULL.md's supplemented features).
package posegraph
