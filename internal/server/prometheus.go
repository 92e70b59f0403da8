// prometheus.go - Prometheus text exposition of in-process metrics
package server

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

const metricPrefix = "image_drop_"

// handleMetrics serves GET /metrics in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()

	var out strings.Builder

	writeMetric(&out, "requests_total", "counter", "Total number of HTTP requests", snap.RequestsTotal)
	writeMetric(&out, "request_errors_4xx_total", "counter", "HTTP responses with a 4xx status", snap.RequestErrors4xx)
	writeMetric(&out, "request_errors_5xx_total", "counter", "HTTP responses with a 5xx status", snap.RequestErrors5xx)
	writeMetric(&out, "uploads_total", "counter", "Total number of stored uploads", snap.UploadsTotal)
	writeMetric(&out, "upload_bytes_total", "counter", "Total bytes stored by uploads", snap.UploadBytesTotal)

	fmt.Fprintf(&out, "# HELP %suploads_rejected_total Uploads rejected, by reason\n", metricPrefix)
	fmt.Fprintf(&out, "# TYPE %suploads_rejected_total counter\n", metricPrefix)
	reasons := make([]string, 0, len(snap.UploadsRejected))
	for reason := range snap.UploadsRejected {
		reasons = append(reasons, reason)
	}
	slices.Sort(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(&out, "%suploads_rejected_total{reason=\"%s\"} %d\n",
			metricPrefix, prometheusLabel(reason), snap.UploadsRejected[reason])
	}
	out.WriteString("\n")

	writeMetric(&out, "assets_served_total", "counter", "Total number of assets served", snap.AssetsServedTotal)
	writeMetric(&out, "asset_bytes_served_total", "counter", "Total asset bytes served", snap.AssetBytesServed)
	writeMetric(&out, "assets_not_found_total", "counter", "Asset lookups that found nothing", snap.AssetsNotFoundTotal)

	fmt.Fprintf(&out, "# HELP %suptime_seconds Application uptime in seconds\n", metricPrefix)
	fmt.Fprintf(&out, "# TYPE %suptime_seconds gauge\n", metricPrefix)
	fmt.Fprintf(&out, "%suptime_seconds %.0f\n", metricPrefix, snap.UptimeSeconds)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.String()))
}

func writeMetric(out *strings.Builder, name, kind, help string, value int64) {
	fmt.Fprintf(out, "# HELP %s%s %s\n", metricPrefix, name, help)
	fmt.Fprintf(out, "# TYPE %s%s %s\n", metricPrefix, name, kind)
	fmt.Fprintf(out, "%s%s %d\n\n", metricPrefix, name, value)
}

// prometheusLabel escapes quotes and backslashes in a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}
