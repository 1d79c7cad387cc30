package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/voxgraph-go/internal/mesh"
	"github.com/banshee-data/voxgraph-go/internal/monitoring"
	"github.com/banshee-data/voxgraph-go/internal/posegraph"
	"github.com/banshee-data/voxgraph-go/internal/security"
	"github.com/banshee-data/voxgraph-go/internal/storage"
	"github.com/banshee-data/voxgraph-go/internal/submap"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// MappingToggle lets the service pause/resume ingestion without
// tearing the pipeline down; internal/pipeline.Pipeline implements
// this directly via its existing SetPaused/Paused methods.
type MappingToggle interface {
	SetPaused(paused bool)
	Paused() bool
}

// MapperService implements the unary and streaming RPCs named in
// spec.md §6, operating on the live submap collection, pose graph,
// and mesh the composition root wires in. One instance per mapper
// process, matching visualiser.Server's one-instance-per-process
// shape.
type MapperService struct {
	mu sync.RWMutex

	collection *submap.Collection
	graph      *posegraph.PoseGraph
	meshOut    *mesh.Mesh
	toggle     MappingToggle
	db         *storage.DB

	meshHistory []MeshBlock
}

// Config wires MapperService's dependencies, all owned by the
// composition root (cmd/mapper).
type Config struct {
	Collection *submap.Collection
	Graph      *posegraph.PoseGraph
	Mesh       *mesh.Mesh
	Toggle     MappingToggle
	DB         *storage.DB
}

// New builds a MapperService over cfg's dependencies.
func New(cfg Config) *MapperService {
	return &MapperService{
		collection: cfg.Collection,
		graph:      cfg.Graph,
		meshOut:    cfg.Mesh,
		toggle:     cfg.Toggle,
		db:         cfg.DB,
	}
}

// currentLayer returns the TSDF layer GenerateMesh/PublishPointClouds
// read from: the currently open submap's layer, matching spec.md §6's
// treatment of these as live-map operations rather than per-submap
// exports.
func (s *MapperService) currentLayer() *voxel.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return nil
	}
	current := s.collection.Current()
	if current == nil {
		return nil
	}
	return current.Layer
}

// GenerateMesh implements spec.md §6's generate_mesh operation.
func (s *MapperService) GenerateMesh(ctx context.Context, req *GenerateMeshRequest) (*GenerateMeshResponse, error) {
	layer := s.currentLayer()
	if layer == nil {
		return nil, fmt.Errorf("service: generate_mesh: no active submap")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meshOut.Generate(layer, req.OnlyUpdated, true)
	return &GenerateMeshResponse{BlocksGenerated: len(s.meshOut.Indices())}, nil
}

// ClearMap implements spec.md §6's clear_map operation: it drops the
// mesh cache and the pose graph's constraint collections. The submap
// collection's current/finished submaps are left for the caller to
// replace (this service has no authority to construct a fresh
// Collection, since that requires a start time and origin pose the
// composition root owns).
func (s *MapperService) ClearMap(ctx context.Context, req *ClearMapRequest) (*ClearMapResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meshOut != nil {
		s.meshOut.Clear()
	}
	if s.graph != nil {
		s.graph.ResetRegistrationConstraints()
		s.graph.ResetRelativePoseConstraints()
		s.graph.ResetForceRegistrationConstraints()
	}
	s.meshHistory = nil
	return &ClearMapResponse{}, nil
}

// SaveMap implements spec.md §6's save_map(path) operation. req.Path
// names where the caller believes the map lives on disk; the database
// connection itself is fixed at composition-root startup, but the
// path is still validated against traversal outside the process's
// working/temp directories before SaveMap proceeds, the same guard
// internal/security provides for other export operations in the
// teacher tree.
func (s *MapperService) SaveMap(ctx context.Context, req *SaveMapRequest) (*SaveMapResponse, error) {
	if s.db == nil {
		return nil, fmt.Errorf("service: save_map: no database configured")
	}
	if req.Path != "" {
		if err := security.ValidateExportPath(req.Path); err != nil {
			return nil, fmt.Errorf("service: save_map: %w", err)
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := storage.SaveMap(s.db, s.collection, s.graph); err != nil {
		return nil, fmt.Errorf("service: save_map: %w", err)
	}
	return &SaveMapResponse{}, nil
}

// LoadMap implements spec.md §6's load_map(path) operation. It
// restores submaps and pose graph state but, like ClearMap, does not
// splice them back into a live Collection: the composition root reads
// LoadMapResponse's counts and rebuilds its own Collection/PoseGraph
// from storage.LoadMap's result, since Collection has no "replace my
// contents" seam (submaps are only ever appended via MaybeRotate).
func (s *MapperService) LoadMap(ctx context.Context, req *LoadMapRequest) (*LoadMapResponse, error) {
	if s.db == nil {
		return nil, fmt.Errorf("service: load_map: no database configured")
	}
	if req.Path != "" {
		if err := security.ValidateExportPath(req.Path); err != nil {
			return nil, fmt.Errorf("service: load_map: %w", err)
		}
	}
	loaded, err := storage.LoadMap(s.db, s.graph)
	if err != nil {
		return nil, fmt.Errorf("service: load_map: %w", err)
	}
	return &LoadMapResponse{
		SubmapsLoaded: len(loaded.Submaps),
		NodesLoaded:   len(loaded.Graph.Nodes()),
	}, nil
}

// ToggleMapping implements spec.md §6's toggle_mapping operation.
func (s *MapperService) ToggleMapping(ctx context.Context, req *ToggleMappingRequest) (*ToggleMappingResponse, error) {
	if s.toggle == nil {
		return nil, fmt.Errorf("service: toggle_mapping: no pipeline configured")
	}
	s.toggle.SetPaused(!req.Enabled)
	return &ToggleMappingResponse{Enabled: !s.toggle.Paused()}, nil
}

// pointCloudStream is the minimal surface PublishPointClouds needs
// from a grpc.ServerStream, grounded on
// pb.VisualiserService_StreamFramesServer's role in grpc_server.go.
type pointCloudStream interface {
	Context() context.Context
	SendMsg(m interface{}) error
}

// PublishPointClouds streams PointCloudMessage frames at a fixed rate
// until the client disconnects, one of spec.md §6's streaming RPCs.
// Decode errors are not possible here (requests are read once, up
// front); the loop structure mirrors
// visualiser.Server.streamFromPublisher's ctx.Done()-driven send loop.
func (s *MapperService) PublishPointClouds(req *PointCloudRequest, stream pointCloudStream) error {
	const interval = 200 * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
			layer := s.currentLayer()
			if layer == nil {
				continue
			}
			points := generatePointCloud(layer, *req)
			if err := stream.SendMsg(&PointCloudMessage{Points: points}); err != nil {
				monitoring.Logf("service: PublishPointClouds send failed: %v", err)
				return err
			}
		}
	}
}

// PublishMap streams MeshMessage frames, optionally carrying the
// growing history of prior snapshots when req.WithHistory is set
// (spec.md §6's optional mesh-with-history message).
func (s *MapperService) PublishMap(req *PublishMapRequest, stream pointCloudStream) error {
	const interval = 500 * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
			s.mu.Lock()
			if s.meshOut == nil {
				s.mu.Unlock()
				continue
			}
			blocks := meshBlocksFrom(s.meshOut)
			msg := &MeshMessage{Blocks: blocks}
			if req.WithHistory {
				s.meshHistory = append(s.meshHistory, blocks...)
				msg.History = s.meshHistory
			}
			s.mu.Unlock()

			if err := stream.SendMsg(msg); err != nil {
				monitoring.Logf("service: PublishMap send failed: %v", err)
				return err
			}
		}
	}
}

func meshBlocksFrom(m *mesh.Mesh) []MeshBlock {
	indices := m.Indices()
	out := make([]MeshBlock, 0, len(indices))
	for _, idx := range indices {
		tile, ok := m.Tile(idx)
		if !ok {
			continue
		}
		triangles := make([]Triangle, len(tile.Triangles))
		for i, tri := range tile.Triangles {
			triangles[i] = Triangle{A: tri.A, B: tri.B, C: tri.C}
		}
		out = append(out, MeshBlock{BlockIndex: [3]int64{idx[0], idx[1], idx[2]}, Triangles: triangles})
	}
	return out
}

// ServiceDesc is the hand-authored equivalent of what
// protoc-gen-go-grpc would emit for this service: five unary RPCs plus
// the two server-streaming RPCs. A grpc.ServerStream already satisfies
// pointCloudStream (it has Context and SendMsg), so the stream
// handlers below need no adapter beyond reading the one request
// message the client sends up front.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "voxgraph.Mapper",
	HandlerType: (*MapperService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateMesh", Handler: generateMeshHandler},
		{MethodName: "ClearMap", Handler: clearMapHandler},
		{MethodName: "SaveMap", Handler: saveMapHandler},
		{MethodName: "LoadMap", Handler: loadMapHandler},
		{MethodName: "ToggleMapping", Handler: toggleMappingHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "PublishPointClouds", Handler: publishPointCloudsHandler, ServerStreams: true},
		{StreamName: "PublishMap", Handler: publishMapHandler, ServerStreams: true},
	},
}

func publishPointCloudsHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(PointCloudRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*MapperService).PublishPointClouds(req, stream)
}

func publishMapHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(PublishMapRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*MapperService).PublishMap(req, stream)
}

func generateMeshHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GenerateMeshRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*MapperService).GenerateMesh(ctx, req)
}

func clearMapHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ClearMapRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*MapperService).ClearMap(ctx, req)
}

func saveMapHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(SaveMapRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*MapperService).SaveMap(ctx, req)
}

func loadMapHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(LoadMapRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*MapperService).LoadMap(ctx, req)
}

func toggleMappingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ToggleMappingRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*MapperService).ToggleMapping(ctx, req)
}

// Register mounts all of MapperService's unary and streaming RPCs on
// grpcServer.
func Register(grpcServer *grpc.Server, svc *MapperService) {
	grpcServer.RegisterService(&ServiceDesc, svc)
}
