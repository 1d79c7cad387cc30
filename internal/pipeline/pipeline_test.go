package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/integrator"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

func testPipeline(t *testing.T, cfg Config, oracle TransformOracle) (*Pipeline, *voxel.Layer) {
	t.Helper()
	layer := voxel.NewLayer(0.1, 8)
	integ := integrator.New(integrator.Simple, integrator.Config{
		VoxelSize:      0.1,
		VoxelsPerSide:  8,
		TruncationDist: 0.3,
		MaxWeight:      10000,
		MaxRayLength:   20,
		MinRayLength:   0.05,
		Threads:        2,
	}, voxel.ConstantWeight{})
	p := New(layer, integ, oracle, nil, nil, nil, cfg)
	return p, layer
}

func alwaysIdentity() TransformOracle {
	return TransformOracleFunc(func(time.Time) (geom.Transform, bool) {
		return geom.Identity(), true
	})
}

func cloud(n int, x float64) []PointRecord {
	pts := make([]PointRecord, n)
	for i := 0; i < n; i++ {
		pts[i] = PointRecord{X: x, Y: float64(i) * 0.5, Z: 0}
	}
	return pts
}

func TestInsert_DropsWhilePaused(t *testing.T) {
	p, layer := testPipeline(t, Config{}, alwaysIdentity())
	p.SetPaused(true)
	p.Insert(context.Background(), Message{Timestamp: time.Now(), Points: cloud(5, 2)})
	assert.Equal(t, 0, layer.Len())
}

func TestInsert_ThrottlesByMinTimeBetweenMsgs(t *testing.T) {
	p, layer := testPipeline(t, Config{MinTimeBetweenMsgs: time.Second}, alwaysIdentity())
	base := time.Now()

	p.Insert(context.Background(), Message{Timestamp: base, Points: cloud(5, 2)})
	require.Greater(t, layer.Len(), 0)
	firstCount := layer.Len()

	p.Insert(context.Background(), Message{Timestamp: base.Add(100 * time.Millisecond), Points: cloud(5, 3)})
	assert.Equal(t, firstCount, layer.Len(), "message within throttle window should be dropped")

	p.Insert(context.Background(), Message{Timestamp: base.Add(2 * time.Second), Points: cloud(5, 3)})
	assert.Greater(t, layer.Len(), firstCount, "message outside throttle window should be accepted")
}

func TestInsert_LeavesMessageQueuedWhenTransformUnavailable(t *testing.T) {
	resolved := false
	oracle := TransformOracleFunc(func(time.Time) (geom.Transform, bool) {
		return geom.Identity(), resolved
	})
	p, layer := testPipeline(t, Config{}, oracle)

	p.Insert(context.Background(), Message{Timestamp: time.Now(), Points: cloud(5, 2)})
	assert.Equal(t, 0, layer.Len())
	assert.Len(t, p.queue, 1)

	resolved = true
	p.Insert(context.Background(), Message{Timestamp: time.Now(), Points: cloud(5, 3)})
	assert.Greater(t, layer.Len(), 0)
	assert.Len(t, p.queue, 0)
}

func TestInsert_OverflowDropsOldest(t *testing.T) {
	resolved := false
	oracle := TransformOracleFunc(func(time.Time) (geom.Transform, bool) {
		return geom.Identity(), resolved
	})
	p, _ := testPipeline(t, Config{}, oracle)

	for i := 0; i < kMaxQueueSize+5; i++ {
		p.Insert(context.Background(), Message{Timestamp: time.Now(), Points: cloud(1, 2)})
	}
	assert.LessOrEqual(t, len(p.queue), kMaxQueueSize)
}

func TestInsert_SlidingDeintegrationWindow(t *testing.T) {
	p, _ := testPipeline(t, Config{DeintegrationWindow: 3}, alwaysIdentity())
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 4; i++ {
		p.Insert(ctx, Message{Timestamp: base.Add(time.Duration(i) * time.Second), Points: cloud(10, 2)})
	}

	assert.True(t, p.NeedsPruning)
	assert.Len(t, p.deintegrate, 3)
}

func TestInsert_EvictsDistantBlocks(t *testing.T) {
	p, layer := testPipeline(t, Config{MaxBlockDistanceFromBody: 0.5}, alwaysIdentity())
	p.Insert(context.Background(), Message{Timestamp: time.Now(), Points: cloud(10, 2)})
	// the wall at x=2 is far from the body at the origin with a 0.5m radius
	assert.Equal(t, 0, layer.Len())
}

func TestInsert_SkipsInvalidPoints(t *testing.T) {
	p, layer := testPipeline(t, Config{}, alwaysIdentity())
	p.Insert(context.Background(), Message{Timestamp: time.Now(), Points: []PointRecord{
		{X: 2, Y: 0, Z: 0},
		{X: math.NaN(), Y: 0, Z: 0},
	}})
	assert.Greater(t, layer.Len(), 0)
}
