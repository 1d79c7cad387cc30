package storage

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/posegraph"
	"github.com/banshee-data/voxgraph-go/internal/submap"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
	"github.com/banshee-data/voxgraph-go/internal/wire"
)

// LoadedMap is the restored state from LoadMap: the saved submaps,
// finished ones and the in-progress one alike, ordered by submap ID,
// and the pose graph reconstructed from
// its persisted nodes and constraints, grounded on TSDFLookup so a
// caller can fold it straight back into a live PoseGraph.
type LoadedMap struct {
	Submaps []*submap.Submap
	Graph   *posegraph.PoseGraph
}

// SaveMap persists every finished submap in collection plus the
// current in-progress one, and graph's nodes/constraints, into db.
// Implements spec.md §6's save_map(path) operation. Runs inside a
// single transaction so a save is all-or-nothing.
func SaveMap(db *DB, collection *submap.Collection, graph *posegraph.PoseGraph) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM submap_trajectory`); err != nil {
		return fmt.Errorf("storage: clear submap_trajectory: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM submaps`); err != nil {
		return fmt.Errorf("storage: clear submaps: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM pose_graph_nodes`); err != nil {
		return fmt.Errorf("storage: clear pose_graph_nodes: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM pose_graph_constraints`); err != nil {
		return fmt.Errorf("storage: clear pose_graph_constraints: %w", err)
	}

	all := collection.Finished()
	if current := collection.Current(); current != nil {
		all = append(all, current)
	}
	for _, sm := range all {
		if err := saveSubmap(tx, sm); err != nil {
			return err
		}
	}

	if graph != nil {
		if err := saveGraph(tx, graph); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit save transaction: %w", err)
	}
	return nil
}

func saveSubmap(tx *sql.Tx, sm *submap.Submap) error {
	var buf bytes.Buffer
	if err := wire.Encode(&buf, sm.Layer, wire.ActionUpdate); err != nil {
		return fmt.Errorf("storage: encode submap %d layer: %w", sm.ID, err)
	}

	origin := sm.Origin.Pose4()
	_, err := tx.Exec(`
		INSERT INTO submaps (submap_id, voxel_size, voxels_per_side, origin_x, origin_y, origin_z, origin_yaw, start_unix_nanos, end_unix_nanos, layer_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sm.ID, sm.Layer.VoxelSize, sm.Layer.VoxelsPerSide,
		origin[0], origin[1], origin[2], origin[3],
		sm.StartTime.UnixNano(), sm.EndTime.UnixNano(), buf.Bytes())
	if err != nil {
		return fmt.Errorf("storage: insert submap %d: %w", sm.ID, err)
	}

	for seq, sample := range sm.PoseHistory {
		p := sample.Pose.Pose4()
		_, err := tx.Exec(`
			INSERT INTO submap_trajectory (submap_id, seq, unix_nanos, x, y, z, yaw)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sm.ID, seq, sample.Timestamp.UnixNano(), p[0], p[1], p[2], p[3])
		if err != nil {
			return fmt.Errorf("storage: insert submap %d trajectory sample %d: %w", sm.ID, seq, err)
		}
	}
	return nil
}

func saveGraph(tx *sql.Tx, graph *posegraph.PoseGraph) error {
	for _, n := range graph.Nodes() {
		p := n.Pose.Pose4()
		constant := 0
		if n.Constant {
			constant = 1
		}
		_, err := tx.Exec(`
			INSERT INTO pose_graph_nodes (node_id, kind, constant, x, y, z, yaw)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, nodeKindLabel(n.Kind), constant, p[0], p[1], p[2], p[3])
		if err != nil {
			return fmt.Errorf("storage: insert pose graph node %d: %w", n.ID, err)
		}
	}

	absolute, relative, registration, forced := graph.Constraints()
	if err := insertConstraints(tx, "absolute", absolute); err != nil {
		return err
	}
	if err := insertConstraints(tx, "relative", relative); err != nil {
		return err
	}
	if err := insertConstraints(tx, "registration", registration); err != nil {
		return err
	}
	if err := insertConstraints(tx, "force_registration", forced); err != nil {
		return err
	}
	return nil
}

func insertConstraints[T any](tx *sql.Tx, kind string, items []T) error {
	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("storage: marshal %s constraint: %w", kind, err)
		}
		if _, err := tx.Exec(`INSERT INTO pose_graph_constraints (kind, params_json) VALUES (?, ?)`, kind, string(payload)); err != nil {
			return fmt.Errorf("storage: insert %s constraint: %w", kind, err)
		}
	}
	return nil
}

func nodeKindLabel(k posegraph.NodeKind) string {
	if k == posegraph.ReferenceFrameNode {
		return "reference_frame"
	}
	return "submap"
}

// LoadMap restores the submap set and pose graph persisted by SaveMap.
// lookup is wired into the returned graph for registration-constraint
// residual evaluation (spec.md §4.H). Implements spec.md §6's
// load_map(path) operation.
func LoadMap(db *DB, lookup posegraph.TSDFLookup) (*LoadedMap, error) {
	submaps, err := loadSubmaps(db)
	if err != nil {
		return nil, err
	}
	graph, err := loadGraph(db, lookup)
	if err != nil {
		return nil, err
	}
	return &LoadedMap{Submaps: submaps, Graph: graph}, nil
}

func loadSubmaps(db *DB) ([]*submap.Submap, error) {
	rows, err := db.Query(`
		SELECT submap_id, voxel_size, voxels_per_side, origin_x, origin_y, origin_z, origin_yaw, start_unix_nanos, end_unix_nanos, layer_blob
		FROM submaps ORDER BY submap_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: query submaps: %w", err)
	}
	defer rows.Close()

	var out []*submap.Submap
	for rows.Next() {
		var id int64
		var voxelSize float64
		var voxelsPerSide int
		var ox, oy, oz, oyaw float64
		var startNanos, endNanos int64
		var blob []byte
		if err := rows.Scan(&id, &voxelSize, &voxelsPerSide, &ox, &oy, &oz, &oyaw, &startNanos, &endNanos, &blob); err != nil {
			return nil, fmt.Errorf("storage: scan submap row: %w", err)
		}

		msg, err := wire.Decode(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("storage: decode submap %d layer: %w", id, err)
		}
		layer := voxel.NewLayer(voxelSize, voxelsPerSide)
		wire.Apply(layer, msg, voxel.WMaxEpsilon)

		sm := &submap.Submap{
			ID:         id,
			ExternalID: uuid.New(),
			Origin:     geom.FromYaw(ox, oy, oz, oyaw),
			Layer:      layer,
			StartTime:  timeFromNanos(startNanos),
			EndTime:    timeFromNanos(endNanos),
			Finished:   endNanos != 0,
		}

		history, err := loadTrajectory(db, id)
		if err != nil {
			return nil, err
		}
		sm.PoseHistory = history
		out = append(out, sm)
	}
	return out, rows.Err()
}

func loadTrajectory(db *DB, submapID int64) ([]submap.PoseSample, error) {
	rows, err := db.Query(`
		SELECT unix_nanos, x, y, z, yaw FROM submap_trajectory
		WHERE submap_id = ? ORDER BY seq`, submapID)
	if err != nil {
		return nil, fmt.Errorf("storage: query trajectory for submap %d: %w", submapID, err)
	}
	defer rows.Close()

	var out []submap.PoseSample
	for rows.Next() {
		var nanos int64
		var x, y, z, yaw float64
		if err := rows.Scan(&nanos, &x, &y, &z, &yaw); err != nil {
			return nil, fmt.Errorf("storage: scan trajectory sample for submap %d: %w", submapID, err)
		}
		out = append(out, submap.PoseSample{
			Timestamp: timeFromNanos(nanos),
			Pose:      geom.FromYaw(x, y, z, yaw),
		})
	}
	return out, rows.Err()
}

func loadGraph(db *DB, lookup posegraph.TSDFLookup) (*posegraph.PoseGraph, error) {
	graph := posegraph.New(lookup)

	rows, err := db.Query(`SELECT node_id, kind, constant, x, y, z, yaw FROM pose_graph_nodes ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: query pose_graph_nodes: %w", err)
	}
	for rows.Next() {
		var id int64
		var kind string
		var constant int
		var x, y, z, yaw float64
		if err := rows.Scan(&id, &kind, &constant, &x, &y, &z, &yaw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage: scan pose_graph_nodes row: %w", err)
		}
		pose := geom.FromYaw(x, y, z, yaw)
		if kind == "reference_frame" {
			graph.AddReferenceFrameNode(id, pose)
		} else {
			graph.AddSubmapNode(id, pose)
		}
		if constant != 0 {
			graph.SetSubmapConstant(id, true)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	crows, err := db.Query(`SELECT kind, params_json FROM pose_graph_constraints ORDER BY constraint_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: query pose_graph_constraints: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var kind, payload string
		if err := crows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("storage: scan pose_graph_constraints row: %w", err)
		}
		if err := applyConstraint(graph, kind, payload); err != nil {
			return nil, err
		}
	}
	return graph, crows.Err()
}

func applyConstraint(graph *posegraph.PoseGraph, kind, payload string) error {
	switch kind {
	case "absolute":
		var c posegraph.AbsolutePoseConstraint
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return fmt.Errorf("storage: unmarshal absolute constraint: %w", err)
		}
		return graph.AddAbsolutePoseConstraint(c)
	case "relative":
		var c posegraph.RelativePoseConstraint
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return fmt.Errorf("storage: unmarshal relative constraint: %w", err)
		}
		return graph.AddRelativePoseConstraint(c)
	case "registration":
		var c posegraph.RegistrationConstraint
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return fmt.Errorf("storage: unmarshal registration constraint: %w", err)
		}
		return graph.AddRegistrationConstraint(c)
	case "force_registration":
		var c posegraph.RegistrationConstraint
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return fmt.Errorf("storage: unmarshal force registration constraint: %w", err)
		}
		return graph.AddForceRegistrationConstraint(c)
	default:
		return fmt.Errorf("storage: unknown constraint kind %q", kind)
	}
}

func timeFromNanos(nanos int64) time.Time {
	return time.Unix(0, nanos)
}
