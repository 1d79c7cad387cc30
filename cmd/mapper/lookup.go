package main

import (
	"github.com/banshee-data/voxgraph-go/internal/submap"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// collectionLookup implements posegraph.TSDFLookup over the live
// submap collection, resolving a pose-graph node id to its submap's
// TSDF layer for registration-constraint residual evaluation
// (spec.md §4.H).
type collectionLookup struct {
	collection *submap.Collection
}

func (l collectionLookup) SubmapLayer(id int64) (*voxel.Layer, bool) {
	if current := l.collection.Current(); current != nil && current.ID == id {
		return current.Layer, true
	}
	for _, sm := range l.collection.Finished() {
		if sm.ID == id {
			return sm.Layer, true
		}
	}
	return nil, false
}
