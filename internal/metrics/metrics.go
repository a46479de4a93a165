package metrics

// Request metrics for model service calls

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric is one model service request.
type Metric struct {
	Timestamp time.Time
	Operation string
	URL       string
	Success   bool
	RTTMs     float64
	Error     string
}

// Sink collects and aggregates metrics
type Sink struct {
	mu      sync.RWMutex
	metrics []Metric
	summary *Summary
}

// Summary contains aggregated statistics
type Summary struct {
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	TimeoutCount       int
	ConnectionFailures int
	MinRTT             float64
	MaxRTT             float64
	AvgRTT             float64
	P50RTT             float64
	P90RTT             float64
	P95RTT             float64
	P99RTT             float64
	RTTBuckets         map[string]int
	ByOperation        map[string]*OperationStats
}

// OperationStats contains statistics for one operation
type OperationStats struct {
	Count   int
	Success int
	Failed  int
	MinRTT  float64
	MaxRTT  float64
	AvgRTT  float64
	SumRTT  float64
}

func newSummary() *Summary {
	return &Summary{
		RTTBuckets:  make(map[string]int),
		ByOperation: make(map[string]*OperationStats),
	}
}

// NewSink creates a new metrics sink
func NewSink() *Sink {
	return &Sink{summary: newSummary()}
}

// Record records a new metric
func (s *Sink) Record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
	s.updateSummary(m)
}

// Metrics returns a copy of all recorded metrics
func (s *Sink) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// Summary returns a copy of the aggregated summary with percentiles filled in.
func (s *Sink) Summary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := *s.summary
	sum.RTTBuckets = make(map[string]int)
	sum.ByOperation = make(map[string]*OperationStats, len(s.summary.ByOperation))
	for op, stats := range s.summary.ByOperation {
		cp := *stats
		sum.ByOperation[op] = &cp
	}

	rtts := make([]float64, 0, len(s.metrics))
	for _, m := range s.metrics {
		if m.Success && m.RTTMs > 0 {
			rtts = append(rtts, m.RTTMs)
			incrementBucket(sum.RTTBuckets, m.RTTMs)
		}
	}
	p := computePercentiles(rtts)
	sum.P50RTT, sum.P90RTT, sum.P95RTT, sum.P99RTT = p[0], p[1], p[2], p[3]
	return &sum
}

func (s *Sink) updateSummary(m Metric) {
	s.summary.TotalRequests++

	if m.Success {
		s.summary.SuccessfulRequests++
	} else {
		s.summary.FailedRequests++
		if strings.Contains(m.Error, "timeout") || strings.Contains(m.Error, "deadline exceeded") {
			s.summary.TimeoutCount++
		}
		if strings.Contains(m.Error, "connect") {
			s.summary.ConnectionFailures++
		}
	}

	if m.Success && m.RTTMs > 0 {
		if s.summary.MinRTT == 0 || m.RTTMs < s.summary.MinRTT {
			s.summary.MinRTT = m.RTTMs
		}
		if m.RTTMs > s.summary.MaxRTT {
			s.summary.MaxRTT = m.RTTMs
		}
		totalRTT := s.summary.AvgRTT * float64(s.summary.SuccessfulRequests-1)
		totalRTT += m.RTTMs
		s.summary.AvgRTT = totalRTT / float64(s.summary.SuccessfulRequests)
	}

	opStats, exists := s.summary.ByOperation[m.Operation]
	if !exists {
		opStats = &OperationStats{}
		s.summary.ByOperation[m.Operation] = opStats
	}
	opStats.Count++
	if !m.Success {
		opStats.Failed++
		return
	}
	opStats.Success++
	if m.RTTMs > 0 {
		if opStats.MinRTT == 0 || m.RTTMs < opStats.MinRTT {
			opStats.MinRTT = m.RTTMs
		}
		if m.RTTMs > opStats.MaxRTT {
			opStats.MaxRTT = m.RTTMs
		}
		opStats.SumRTT += m.RTTMs
		opStats.AvgRTT = opStats.SumRTT / float64(opStats.Success)
	}
}

func incrementBucket(buckets map[string]int, value float64) {
	switch {
	case value < 1:
		buckets["lt_1ms"]++
	case value < 5:
		buckets["1_5ms"]++
	case value < 10:
		buckets["5_10ms"]++
	case value < 50:
		buckets["10_50ms"]++
	case value < 100:
		buckets["50_100ms"]++
	case value < 500:
		buckets["100_500ms"]++
	default:
		buckets["gt_500ms"]++
	}
}

func computePercentiles(values []float64) [4]float64 {
	var result [4]float64
	if len(values) == 0 {
		return result
	}
	sort.Float64s(values)
	result[0] = percentile(values, 0.50)
	result[1] = percentile(values, 0.90)
	result[2] = percentile(values, 0.95)
	result[3] = percentile(values, 0.99)
	return result
}

func percentile(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// WriteText prints the summary as the plain table shown by --stats.
func (sum *Summary) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Requests: %d (ok %d, failed %d", sum.TotalRequests, sum.SuccessfulRequests, sum.FailedRequests)
	if sum.TimeoutCount > 0 {
		fmt.Fprintf(w, ", timeouts %d", sum.TimeoutCount)
	}
	if sum.ConnectionFailures > 0 {
		fmt.Fprintf(w, ", connection failures %d", sum.ConnectionFailures)
	}
	fmt.Fprintln(w, ")")
	if sum.SuccessfulRequests > 0 {
		fmt.Fprintf(w, "RTT ms: min %.2f avg %.2f p50 %.2f p95 %.2f max %.2f\n",
			sum.MinRTT, sum.AvgRTT, sum.P50RTT, sum.P95RTT, sum.MaxRTT)
	}

	ops := make([]string, 0, len(sum.ByOperation))
	for op := range sum.ByOperation {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		st := sum.ByOperation[op]
		fmt.Fprintf(w, "  %-16s %3d ok %3d failed  avg %.2f ms\n", op, st.Success, st.Failed, st.AvgRTT)
	}
}
