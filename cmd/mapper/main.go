// Command mapper is the voxgraph-go composition root: it wires the UDP
// or PCAP point-cloud ingestion transport into the pointcloud pipeline
// (component E), drives submap rotation and pose-graph maintenance on
// fixed intervals (components F/H), periodically re-meshes the live
// submap (component G), and exposes the save_map/load_map/generate_mesh/
// toggle_mapping/publish surface of spec.md §6 over gRPC, alongside a
// tailsql/tsweb debug console for the backing sqlite database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/voxgraph-go/internal/config"
	"github.com/banshee-data/voxgraph-go/internal/fsutil"
	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/integrator"
	"github.com/banshee-data/voxgraph-go/internal/mesh"
	"github.com/banshee-data/voxgraph-go/internal/monitoring"
	"github.com/banshee-data/voxgraph-go/internal/pipeline"
	"github.com/banshee-data/voxgraph-go/internal/posegraph"
	"github.com/banshee-data/voxgraph-go/internal/service"
	"github.com/banshee-data/voxgraph-go/internal/storage"
	"github.com/banshee-data/voxgraph-go/internal/submap"
	"github.com/banshee-data/voxgraph-go/internal/transport"
	"github.com/banshee-data/voxgraph-go/internal/version"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

var (
	configPath = flag.String("config", "", "Path to a tuning config JSON file (defaults to config/mapper.defaults.json if present)")
	dbFile     = flag.String("db", "map.db", "Path to the sqlite map database")
	loadOnBoot = flag.Bool("load", false, "Restore pose-graph state from -db on startup")

	udpAddr = flag.String("udp-addr", ":7000", "UDP address to listen for point cloud packets")
	rcvBuf  = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes")

	pcapFile = flag.String("pcap", "", "Replay a captured PCAP file instead of listening on UDP (requires the pcap build tag)")
	pcapPort = flag.Int("pcap-udp-port", 7000, "UDP port to filter for when replaying -pcap")

	grpcAddr = flag.String("grpc-addr", ":50061", "gRPC listen address for the mapper service")
	httpAddr = flag.String("http-addr", ":8082", "HTTP listen address for the /debug/ admin console")

	showVersion = flag.Bool("version", false, "Print build version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mapper %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := loadConfig(*configPath)

	layerSize := cfg.GetVoxelSize()
	layerSide := cfg.GetVoxelsPerSide()

	weighting := weightingPolicyFor(cfg)
	integ := integrator.New(integrator.Method(cfg.GetMethod()), integrator.Config{
		VoxelSize:      layerSize,
		VoxelsPerSide:  layerSide,
		TruncationDist: cfg.GetTruncationDistance(),
		MaxWeight:      cfg.GetMaxWeight(),
		MaxRayLength:   cfg.GetMaxRayLengthM(),
		MinRayLength:   cfg.GetMinRayLengthM(),
		Threads:        cfg.GetIntegratorThreads(),
	}, weighting)

	meshOut := mesh.New()

	collection := submap.New(submap.Config{
		SubmapInterval: time.Duration(cfg.GetSubmapIntervalSec() * float64(time.Second)),
		VoxelSize:      layerSize,
		VoxelsPerSide:  layerSide,
	}, time.Now(), geom.Identity(), meshOut)

	graph := posegraph.New(collectionLookup{collection: collection})

	oracle := newLatestPoseOracle()

	p := pipeline.New(collection.Current().Layer, integ, oracle, meshOut, collection, nil, pipeline.Config{
		MinTimeBetweenMsgs:       time.Duration(cfg.GetMinTimeBetweenMsgsSec() * float64(time.Second)),
		MaxBlockDistanceFromBody: cfg.GetMaxBlockDistanceFromBody(),
		DeintegrationWindow:      cfg.GetPointcloudDeintegrationQueueLength(),
		EnableICP:                cfg.GetEnableICP(),
		AccumulateICPCorrections: cfg.GetAccumulateICPCorrections(),
	})

	db, err := storage.Open(*dbFile)
	if err != nil {
		log.Fatalf("mapper: open database %s: %v", *dbFile, err)
	}
	defer db.Close()

	if *loadOnBoot {
		loaded, err := storage.LoadMap(db, collectionLookup{collection: collection})
		if err != nil {
			log.Printf("mapper: load_map at startup failed: %v", err)
		} else {
			// Restored nodes/constraints become the live graph outright;
			// restored submaps are reported but not spliced into
			// collection, which has no "replace my contents" seam (see
			// internal/service's LoadMap doc comment for the same
			// limitation at the RPC layer).
			graph = loaded.Graph
			monitoring.Logf("mapper: loaded %d submap(s), %d pose graph node(s) from %s",
				len(loaded.Submaps), len(loaded.Graph.Nodes()), *dbFile)
		}
	}

	svc := service.New(service.Config{
		Collection: collection,
		Graph:      graph,
		Mesh:       meshOut,
		Toggle:     p,
		DB:         db,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runIngestion(ctx, p)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSubmapRotation(ctx, time.Duration(cfg.GetSubmapIntervalSec()*float64(time.Second)), collection, graph, integ, oracle, p)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runMeshRegeneration(ctx, time.Duration(cfg.GetUpdateMeshEveryNSec()*float64(time.Second)), collection, meshOut)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runGraphOptimization(ctx, 5*time.Second, graph)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runGRPCServer(ctx, *grpcAddr, svc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runAdminHTTP(ctx, *httpAddr, db)
	}()

	wg.Wait()
	log.Println("mapper: graceful shutdown complete")
}

// loadConfig loads cfg from -config if given, otherwise probes for the
// checked-in defaults file with fsutil before falling back to the
// accessor-level hardcoded defaults in internal/config.
func loadConfig(path string) *config.MapperConfig {
	if path != "" {
		cfg, err := config.LoadMapperConfig(path)
		if err != nil {
			log.Fatalf("mapper: load config %s: %v", path, err)
		}
		return cfg
	}

	var fs fsutil.FileSystem = fsutil.OSFileSystem{}
	if fs.Exists(config.DefaultConfigPath) {
		cfg, err := config.LoadMapperConfig(config.DefaultConfigPath)
		if err != nil {
			log.Printf("mapper: failed to load %s, using built-in defaults: %v", config.DefaultConfigPath, err)
			return config.EmptyMapperConfig()
		}
		return cfg
	}
	return config.EmptyMapperConfig()
}

func weightingPolicyFor(cfg *config.MapperConfig) voxel.WeightingPolicy {
	switch {
	case cfg.GetUseConstWeight():
		return voxel.ConstantWeight{}
	case cfg.GetUseWeightDropoff():
		return voxel.QuadraticDropoffWeight{}
	default:
		return voxel.LinearWeight{}
	}
}

// runIngestion starts either the UDP listener or, when -pcap is set, a
// one-shot PCAP replay, forwarding decoded messages into p.
func runIngestion(ctx context.Context, p *pipeline.Pipeline) {
	codec := transport.PointCloudCodec{}
	if *pcapFile != "" {
		if err := transport.ReadPCAPFile(ctx, *pcapFile, *pcapPort, codec, p, nil); err != nil {
			log.Printf("mapper: pcap replay error: %v", err)
		}
		return
	}

	listener := transport.NewUDPListener(transport.UDPListenerConfig{
		Address: *udpAddr,
		RcvBuf:  *rcvBuf,
		Decoder: codec,
		Sink:    p,
	})
	if err := listener.Start(ctx); err != nil && err != context.Canceled {
		log.Printf("mapper: UDP listener error: %v", err)
	}
}

func runGRPCServer(ctx context.Context, addr string, svc *service.MapperService) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("mapper: gRPC listen on %s: %v", addr, err)
		return
	}

	grpcServer := grpc.NewServer()
	service.Register(grpcServer, svc)

	go func() {
		log.Printf("mapper: gRPC server listening on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("mapper: gRPC server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	grpcServer.GracefulStop()
}

func runAdminHTTP(ctx context.Context, addr string, db *storage.DB) {
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		log.Printf("mapper: attach admin routes: %v", err)
		return
	}

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("mapper: admin HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("mapper: admin HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
	}
}
