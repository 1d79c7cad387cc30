package monitoring

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// SubmapSample is one submap's worth of operator-facing status, grounded
// on the teacher's inclusion of go-echarts for operator dashboards.
type SubmapSample struct {
	SubmapID   int64
	BlockCount int
	QueueDepth int
}

// Dashboard builds a bar chart with two series per submap, block count
// and deintegration queue depth; RenderDashboard writes it as HTML.
func Dashboard(samples []SubmapSample) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "submap block counts"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "submap id"}),
	)

	ids := make([]string, len(samples))
	blockCounts := make([]opts.BarData, len(samples))
	queueDepths := make([]opts.BarData, len(samples))
	for i, s := range samples {
		ids[i] = idLabel(s.SubmapID)
		blockCounts[i] = opts.BarData{Value: s.BlockCount}
		queueDepths[i] = opts.BarData{Value: s.QueueDepth}
	}

	bar.SetXAxis(ids).
		AddSeries("blocks", blockCounts).
		AddSeries("deintegration queue depth", queueDepths)

	return bar
}

// RenderDashboard writes the dashboard's HTML to w.
func RenderDashboard(samples []SubmapSample, w io.Writer) error {
	return Dashboard(samples).Render(w)
}

func idLabel(id int64) string {
	return "submap-" + strconv.FormatInt(id, 10)
}
