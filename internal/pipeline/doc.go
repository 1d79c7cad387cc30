// Package pipeline implements the pointcloud insertion pipeline
// (component E): admission control, the transform-resolution queue,
// the optional ICP refinement hook, integration, the deintegration
// sliding window, and distant-block eviction (spec.md §4.E).
//
// The staged shape (admit -> enqueue -> drain -> process) is grounded
// on internal/lidar/pipeline/tracking_pipeline.go's composition-root
// callback pipeline: a fixed sequence of named stages invoked from one
// serialized entry point, each stage doing one job and handing off to
// the next.
package pipeline
