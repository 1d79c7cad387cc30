// Package service exposes the mapper's gRPC surface: unary RPCs for
// generate_mesh, clear_map, save_map, load_map, toggle_mapping, and
// streaming RPCs for the output message kinds spec.md §6 names
// (updated-voxel, isosurface, occupancy, slice, and reprojected point
// clouds, plus the mesh message and its optional with-history variant).
//
// Grounded on internal/lidar/visualiser/grpc_server.go's Server/
// RegisterService shape (a struct embedding generated server state,
// one method per RPC, ctx.Done()-driven streaming loops), but without
// a generated pb package: no .proto or protoc-gen-go output for this
// domain exists anywhere in the retrieval pack, and hand-authoring
// protoreflect-backed message types without protoc would be fabricated
// boilerplate rather than a grounded adaptation. Instead, the service
// registers an encoding/gob-based encoding.Codec under the "proto"
// name grpc-go looks up by default
// (google.golang.org/grpc/encoding.RegisterCodec is exactly the
// extension point the library documents for a non-protobuf payload
// type), and hand-writes a grpc.ServiceDesc the way protoc-gen-go-grpc
// would have generated one. See DESIGN.md for the full justification.
package service
