package chainview

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStatisticsCollector(t *testing.T) {
	stats := NewStatistics()
	stats.RecordTick(TickerAppends, 12)
	stats.MeasureTime(HistogramViewHeight, 10)
	stats.MeasureTime(HistogramViewHeight, 20)

	reg := prometheus.NewPedanticRegistry()
	if err := RegisterStatistics(reg, stats, "test"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) != int(TickerEnumMax)+int(HistogramEnumMax) {
		t.Errorf("gathered %d families, want %d", len(families), int(TickerEnumMax)+int(HistogramEnumMax))
	}

	var appends, heightCount, heightSum float64
	found := 0
	for _, mf := range families {
		switch mf.GetName() {
		case "test_index_appends_total":
			appends = mf.GetMetric()[0].GetCounter().GetValue()
			found++
		case "test_reader_view_height":
			s := mf.GetMetric()[0].GetSummary()
			heightCount = float64(s.GetSampleCount())
			heightSum = s.GetSampleSum()
			found++
		}
	}
	if found != 2 {
		t.Fatalf("found %d of the expected metrics", found)
	}
	if appends != 12 {
		t.Errorf("appends = %v, want 12", appends)
	}
	if heightCount != 2 || heightSum != 30 {
		t.Errorf("view height summary = count %v sum %v, want 2 and 30", heightCount, heightSum)
	}
}

func TestStatisticsCollectorDefaultNamespace(t *testing.T) {
	if got := metricName("chainview", "chainview.reader.views.freed"); got != "chainview_reader_views_freed" {
		t.Errorf("metricName = %q", got)
	}
	c := NewStatisticsCollector(nil, "")
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	if len(ch) != 0 {
		t.Error("nil statistics produced metrics")
	}
}
