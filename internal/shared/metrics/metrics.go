package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	jobsStartedTotal   atomic.Uint64
	jobsCompletedTotal atomic.Uint64
	jobsFailedTotal    atomic.Uint64
	rendersTotal       atomic.Uint64

	queueReceivedTotal             atomic.Uint64
	queueDeletedUnrecoverableTotal atomic.Uint64

	tailorDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncJobStarted increments the started counter.
func IncJobStarted() {
	jobsStartedTotal.Add(1)
}

// IncJobCompleted increments the completed counter.
func IncJobCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobFailed increments the failed counter.
func IncJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncRender increments the render counter.
func IncRender() {
	rendersTotal.Add(1)
}

// IncQueueReceived increments the worker receive counter.
func IncQueueReceived() {
	queueReceivedTotal.Add(1)
}

// IncQueueDeletedUnrecoverable counts poison messages removed from the queue.
func IncQueueDeletedUnrecoverable() {
	queueDeletedUnrecoverableTotal.Add(1)
}

// ObserveTailorDurationMs records a tailoring duration in milliseconds.
func ObserveTailorDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	tailorDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "tailor_jobs_started_total", "Total tailoring jobs started", jobsStartedTotal.Load())
	writeCounter(&buf, "tailor_jobs_completed_total", "Total tailoring jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "tailor_jobs_failed_total", "Total tailoring jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "tailor_renders_total", "Total render requests served", rendersTotal.Load())
	writeCounter(&buf, "tailor_queue_received_total", "Total queue messages received", queueReceivedTotal.Load())
	writeCounter(&buf, "tailor_queue_deleted_unrecoverable_total", "Total unrecoverable queue messages deleted", queueDeletedUnrecoverableTotal.Load())
	writeHistogram(&buf, "tailor_duration_ms", "Tailoring duration in milliseconds", tailorDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// DurationMs converts a start/end pair to milliseconds for observation.
func DurationMs(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}
