package pipeline

import (
	"time"

	"github.com/banshee-data/voxgraph-go/internal/geom"
)

// TransformOracle resolves the world-to-sensor transform for a given
// message timestamp. Resolve returns ok=false when the transform is
// not yet available (spec.md §7's TransportTransient kind); the
// pipeline leaves the message queued and retries on the next drain.
type TransformOracle interface {
	Resolve(timestamp time.Time) (geom.Transform, bool)
}

// TransformOracleFunc adapts a function to TransformOracle.
type TransformOracleFunc func(timestamp time.Time) (geom.Transform, bool)

func (f TransformOracleFunc) Resolve(timestamp time.Time) (geom.Transform, bool) {
	return f(timestamp)
}
