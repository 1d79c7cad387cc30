package storage

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxgraph-go/internal/testutil"
)

func TestAttachAdminRoutes_MapStatsReportsTableCounts(t *testing.T) {
	db := openTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := testutil.NewTestRequest(http.MethodGet, "/debug/map-stats")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var stats map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	for _, table := range []string{"submaps", "submap_trajectory", "pose_graph_nodes", "pose_graph_constraints"} {
		if _, ok := stats[table]; !ok {
			t.Fatalf("map-stats missing table %q: %v", table, stats)
		}
	}
}
