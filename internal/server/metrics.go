package server

import (
	"maps"
	"sync"
	"time"
)

// Metrics holds in-process counters for one server.
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadDurationTotal time.Duration
	uploadsRejected     map[string]int64 // by reason

	// Asset metrics
	assetsServedTotal   int64
	assetBytesServed    int64
	assetsNotFoundTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64

	startTime time.Time
}

func newMetrics() *Metrics {
	return &Metrics{
		uploadsRejected: make(map[string]int64),
		startTime:       time.Now(),
	}
}

// RecordUpload records a stored upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadRejected records a failed upload under reason.
func (m *Metrics) RecordUploadRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsRejected[reason]++
}

func (m *Metrics) RecordAssetServed(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assetsServedTotal++
	m.assetBytesServed += bytes
}

func (m *Metrics) RecordAssetMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assetsNotFoundTotal++
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:        m.uploadsTotal,
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		UploadsRejected:     maps.Clone(m.uploadsRejected),
		AssetsServedTotal:   m.assetsServedTotal,
		AssetBytesServed:    m.assetBytesServed,
		AssetsNotFoundTotal: m.assetsNotFoundTotal,
		RequestsTotal:       m.requestsTotal,
		RequestErrors5xx:    m.requestErrors5xx,
		RequestErrors4xx:    m.requestErrors4xx,
		UptimeSeconds:       time.Since(m.startTime).Seconds(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsTotal        int64            `json:"uploads_total"`
	UploadBytesTotal    int64            `json:"upload_bytes_total"`
	UploadAvgDurationMs float64          `json:"upload_avg_duration_ms"`
	UploadsRejected     map[string]int64 `json:"uploads_rejected"`

	AssetsServedTotal   int64 `json:"assets_served_total"`
	AssetBytesServed    int64 `json:"asset_bytes_served"`
	AssetsNotFoundTotal int64 `json:"assets_not_found_total"`

	RequestsTotal    int64   `json:"requests_total"`
	RequestErrors5xx int64   `json:"request_errors_5xx"`
	RequestErrors4xx int64   `json:"request_errors_4xx"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
