package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/posegraph"
	"github.com/banshee-data/voxgraph-go/internal/submap"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

type fakeLookup struct{ layers map[int64]*voxel.Layer }

func (f fakeLookup) SubmapLayer(id int64) (*voxel.Layer, bool) {
	l, ok := f.layers[id]
	return l, ok
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndLoadMap_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	start := time.Unix(1000, 0)
	collection := submap.New(submap.Config{VoxelSize: 0.1, VoxelsPerSide: 4}, start, geom.FromYaw(0, 0, 0, 0), nil)
	current := collection.Current()
	current.RecordPose(start, geom.FromYaw(1, 2, 0, 0.1))
	current.Layer.AllocateOrGet(voxel.BlockIndex{X: 0, Y: 0, Z: 0}).WithVoxel(0, func(v *voxel.Voxel) {
		*v = voxel.Voxel{Distance: 0.05, Weight: 3}
	})

	graph := posegraph.New(fakeLookup{})
	graph.AddReferenceFrameNode(100, geom.FromYaw(0, 0, 0, 0))
	graph.AddSubmapNode(0, geom.FromYaw(1, 2, 0, 0.1))
	require.NoError(t, graph.AddAbsolutePoseConstraint(posegraph.AbsolutePoseConstraint{
		Node:     100,
		Measured: geom.FromYaw(0, 0, 0, 0),
	}))
	require.NoError(t, graph.AddRelativePoseConstraint(posegraph.RelativePoseConstraint{
		A: 100, B: 0,
		Measured: geom.FromYaw(1, 2, 0, 0.1),
	}))

	require.NoError(t, SaveMap(db, collection, graph))

	loaded, err := LoadMap(db, fakeLookup{})
	require.NoError(t, err)

	require.Len(t, loaded.Submaps, 1)
	gotSubmap := loaded.Submaps[0]
	assert.Equal(t, int64(0), gotSubmap.ID)
	assert.Equal(t, 0.1, gotSubmap.Layer.VoxelSize)
	assert.Equal(t, 4, gotSubmap.Layer.VoxelsPerSide)
	require.Len(t, gotSubmap.PoseHistory, 1)
	assert.InDelta(t, 1.0, gotSubmap.PoseHistory[0].Pose.Pose4()[0], 1e-9)

	blk, ok := gotSubmap.Layer.Get(voxel.BlockIndex{X: 0, Y: 0, Z: 0})
	require.True(t, ok)
	v := blk.Voxel(0)
	assert.InDelta(t, 0.05, v.Distance, 1e-6)

	assert.True(t, loaded.Graph.HasNode(100))
	assert.True(t, loaded.Graph.HasNode(0))
	absolute, relative, registration, forced := loaded.Graph.Constraints()
	assert.Len(t, absolute, 1)
	assert.Len(t, relative, 1)
	assert.Len(t, registration, 0)
	assert.Len(t, forced, 0)
}

func TestSaveMap_OverwritesPriorSave(t *testing.T) {
	db := openTestDB(t)
	start := time.Unix(0, 0)

	collectionA := submap.New(submap.Config{VoxelSize: 0.1, VoxelsPerSide: 2}, start, geom.FromYaw(0, 0, 0, 0), nil)
	require.NoError(t, SaveMap(db, collectionA, posegraph.New(nil)))

	collectionB := submap.New(submap.Config{VoxelSize: 0.2, VoxelsPerSide: 2}, start, geom.FromYaw(0, 0, 0, 0), nil)
	require.NoError(t, SaveMap(db, collectionB, posegraph.New(nil)))

	loaded, err := LoadMap(db, nil)
	require.NoError(t, err)
	require.Len(t, loaded.Submaps, 1)
	assert.Equal(t, 0.2, loaded.Submaps[0].Layer.VoxelSize)
}

func TestTableStats_CountsRows(t *testing.T) {
	db := openTestDB(t)
	start := time.Unix(0, 0)
	collection := submap.New(submap.Config{VoxelSize: 0.1, VoxelsPerSide: 2}, start, geom.FromYaw(0, 0, 0, 0), nil)
	require.NoError(t, SaveMap(db, collection, posegraph.New(nil)))

	stats, err := db.TableStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["submaps"])
}
