package storage

import (
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/voxgraph-go/internal/httputil"
)

// AttachAdminRoutes mounts a tailsql live-debugging console and basic
// table-size stats under mux's /debug/ tree, grounded directly on the
// teacher's db.go AttachAdminRoutes (tsweb.Debugger + tailsql.NewServer
// with a fixed RoutePrefix, SetDB pointed at this connection).
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("storage: create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://map.db", db.DB, &tailsql.DBOptions{
		Label: "Map DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("map-stats", "Submap and pose graph table sizes (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.TableStats()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to get table stats: %v", err))
			return
		}
		httputil.WriteJSONOK(w, stats)
	}))

	return nil
}

// TableStats reports row counts for the persisted map tables, used by
// the map-stats debug route and by tests.
func (db *DB) TableStats() (map[string]int, error) {
	tables := []string{"submaps", "submap_trajectory", "pose_graph_nodes", "pose_graph_constraints"}
	out := make(map[string]int, len(tables))
	for _, table := range tables {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("storage: count %s: %w", table, err)
		}
		out[table] = count
	}
	return out, nil
}
