package main

import (
	"sync"
	"time"

	"github.com/banshee-data/voxgraph-go/internal/geom"
)

// latestPoseOracle is a minimal stand-in for spec.md's "coordinate-frame
// lookup service" (explicitly named an external collaborator and out of
// scope for this system). It resolves any timestamp to the most
// recently published body pose, rather than interpolating a true
// timestamp-indexed transform history; a real deployment wires its own
// TF-style buffer behind the same pipeline.TransformOracle interface
// instead.
type latestPoseOracle struct {
	mu      sync.RWMutex
	pose    geom.Transform
	haveAny bool
}

// newLatestPoseOracle starts resolved at identity, so ingestion can
// proceed immediately when no localization source calls SetPose: the
// sensor frame is treated as the world frame until told otherwise.
func newLatestPoseOracle() *latestPoseOracle {
	return &latestPoseOracle{pose: geom.Identity(), haveAny: true}
}

// SetPose publishes the current best estimate of the sensor-to-world
// transform. A real deployment calls this from its localization stack;
// main wires no such source, so nothing calls SetPose and every message
// resolves to identity.
func (o *latestPoseOracle) SetPose(t geom.Transform) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pose = t
	o.haveAny = true
}

// Resolve implements pipeline.TransformOracle. It always succeeds once
// any pose has been published; timestamp is accepted but unused, since
// this stand-in has no notion of a time-indexed buffer.
func (o *latestPoseOracle) Resolve(_ time.Time) (geom.Transform, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pose, o.haveAny
}
