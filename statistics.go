package chainview

// statistics.go implements the Statistics interface for collecting chain
// index and reader metrics.

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// TickerType represents different types of counters.
type TickerType int

const (
	// TickerAppends is the count of successful ChainIndex appends.
	TickerAppends TickerType = iota
	// TickerMerges is the count of tail-into-base merges.
	TickerMerges
	// TickerSequenceViolations is the count of rejected appends.
	TickerSequenceViolations
	// TickerSnapshots is the count of GetSnapshot calls.
	TickerSnapshots
	// TickerEntriesPersisted is the count of entries written to the store.
	TickerEntriesPersisted
	// TickerHandlesAcquired is the count of ChainHandles handed out.
	TickerHandlesAcquired
	// TickerHandlesReleased is the count of ChainHandles released.
	TickerHandlesReleased
	// TickerViewsPublished is the count of reader views published.
	TickerViewsPublished
	// TickerViewsFreed is the count of reader views whose last reference was dropped.
	TickerViewsFreed
	// TickerRefreshes is the count of successful reader refreshes.
	TickerRefreshes
	// TickerRefreshFailures is the count of failed reader loads.
	TickerRefreshFailures
	// TickerEntriesLoaded is the count of entries read from the store by readers.
	TickerEntriesLoaded
	// TickerEntriesFiltered is the count of loaded entries below the validated threshold.
	TickerEntriesFiltered
	// TickerWriterProbes is the count of advisory lock probes.
	TickerWriterProbes

	// TickerEnumMax is the maximum ticker type for sizing arrays.
	TickerEnumMax
)

var tickerNames = [TickerEnumMax]string{
	"chainview.index.appends",
	"chainview.index.merges",
	"chainview.index.sequence.violations",
	"chainview.index.snapshots",
	"chainview.writer.entries.persisted",
	"chainview.reader.handles.acquired",
	"chainview.reader.handles.released",
	"chainview.reader.views.published",
	"chainview.reader.views.freed",
	"chainview.reader.refreshes",
	"chainview.reader.refresh.failures",
	"chainview.reader.entries.loaded",
	"chainview.reader.entries.filtered",
	"chainview.reader.writer.probes",
}

// String returns the name of the ticker type.
func (t TickerType) String() string {
	if t >= 0 && t < TickerEnumMax {
		return tickerNames[t]
	}
	return "unknown"
}

// HistogramType represents different types of histograms.
type HistogramType int

const (
	// HistogramAppendMicros is the histogram for ChainIndex.Append latency.
	HistogramAppendMicros HistogramType = iota
	// HistogramMergeEntries is the histogram for entries copied per merge.
	HistogramMergeEntries
	// HistogramRefreshMicros is the histogram for reader load-and-publish latency.
	HistogramRefreshMicros
	// HistogramViewHeight is the histogram for published reader view heights.
	HistogramViewHeight

	// HistogramEnumMax is the maximum histogram type for sizing arrays.
	HistogramEnumMax
)

var histogramNames = [HistogramEnumMax]string{
	"chainview.index.append.micros",
	"chainview.index.merge.entries",
	"chainview.reader.refresh.micros",
	"chainview.reader.view.height",
}

// String returns the name of the histogram type.
func (h HistogramType) String() string {
	if h >= 0 && h < HistogramEnumMax {
		return histogramNames[h]
	}
	return "unknown"
}

// HistogramData contains histogram statistics.
type HistogramData struct {
	Average float64
	Max     float64
	Min     float64
	Count   uint64
	Sum     uint64
}

// Statistics collects and reports metrics.
type Statistics interface {
	// GetTickerCount returns the current value of a ticker.
	GetTickerCount(tickerType TickerType) uint64

	// RecordTick increments a ticker by count.
	RecordTick(tickerType TickerType, count uint64)

	// SetTickerCount sets the ticker to a specific value.
	SetTickerCount(tickerType TickerType, count uint64)

	// GetHistogramData returns histogram statistics.
	GetHistogramData(histogramType HistogramType) HistogramData

	// MeasureTime records a value to a histogram.
	MeasureTime(histogramType HistogramType, value uint64)

	// Reset clears all statistics.
	Reset()

	// String returns a formatted string of all statistics.
	String() string
}

// statisticsImpl is the default implementation of Statistics.
type statisticsImpl struct {
	tickers    [TickerEnumMax]atomic.Uint64
	histograms [HistogramEnumMax]histogramImpl
}

// histogramImpl is a simple lock-free histogram.
type histogramImpl struct {
	min   atomic.Uint64
	max   atomic.Uint64
	sum   atomic.Uint64
	count atomic.Uint64
}

func (h *histogramImpl) reset() {
	h.count.Store(0)
	h.sum.Store(0)
	h.max.Store(0)
	h.min.Store(^uint64(0))
}

// NewStatistics creates a new Statistics instance.
func NewStatistics() Statistics {
	s := &statisticsImpl{}
	for i := range s.histograms {
		s.histograms[i].min.Store(^uint64(0))
	}
	return s
}

// GetTickerCount returns the current value of a ticker.
func (s *statisticsImpl) GetTickerCount(tickerType TickerType) uint64 {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return 0
	}
	return s.tickers[tickerType].Load()
}

// RecordTick increments a ticker by count.
func (s *statisticsImpl) RecordTick(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Add(count)
}

// SetTickerCount sets the ticker to a specific value.
func (s *statisticsImpl) SetTickerCount(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Store(count)
}

// GetHistogramData returns histogram statistics.
func (s *statisticsImpl) GetHistogramData(histogramType HistogramType) HistogramData {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return HistogramData{}
	}

	h := &s.histograms[histogramType]
	count := h.count.Load()
	if count == 0 {
		return HistogramData{}
	}
	sum := h.sum.Load()
	return HistogramData{
		Count:   count,
		Sum:     sum,
		Min:     float64(h.min.Load()),
		Max:     float64(h.max.Load()),
		Average: float64(sum) / float64(count),
	}
}

// MeasureTime records a value to a histogram.
func (s *statisticsImpl) MeasureTime(histogramType HistogramType, value uint64) {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return
	}

	h := &s.histograms[histogramType]
	h.count.Add(1)
	h.sum.Add(value)

	for {
		old := h.min.Load()
		if value >= old || h.min.CompareAndSwap(old, value) {
			break
		}
	}
	for {
		old := h.max.Load()
		if value <= old || h.max.CompareAndSwap(old, value) {
			break
		}
	}
}

// Reset clears all statistics.
func (s *statisticsImpl) Reset() {
	for i := range s.tickers {
		s.tickers[i].Store(0)
	}
	for i := range s.histograms {
		s.histograms[i].reset()
	}
}

// String returns a formatted string of all statistics.
func (s *statisticsImpl) String() string {
	var b strings.Builder
	for i := range TickerEnumMax {
		fmt.Fprintf(&b, "%s COUNT : %d\n", i, s.GetTickerCount(i))
	}
	for i := range HistogramEnumMax {
		d := s.GetHistogramData(i)
		fmt.Fprintf(&b, "%s COUNT : %d SUM : %d MIN : %.0f MAX : %.0f AVG : %.2f\n",
			i, d.Count, d.Sum, d.Min, d.Max, d.Average)
	}
	return b.String()
}

// recordTick is a nil-safe RecordTick.
func recordTick(s Statistics, t TickerType, count uint64) {
	if s != nil {
		s.RecordTick(t, count)
	}
}

// measureSince records the microseconds elapsed since start, if s is non-nil.
func measureSince(s Statistics, h HistogramType, start time.Time) {
	if s != nil {
		s.MeasureTime(h, uint64(time.Since(start).Microseconds()))
	}
}

// measure is a nil-safe MeasureTime.
func measure(s Statistics, h HistogramType, value uint64) {
	if s != nil {
		s.MeasureTime(h, value)
	}
}
