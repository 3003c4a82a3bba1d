// metrics.go - Request and domain counters for the file sharing service.
//
// Counts requests by status class plus uploads, downloads, deletes,
// logins, grant merges and share link outcomes, and serves them at
// /metrics in the Prometheus text exposition format.
package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Link events counted by Metrics.
const (
	linkMinted   = "minted"
	linkRevoked  = "revoked"
	linkResolved = "resolved"
	linkUpgraded = "upgraded"
	linkExpired  = "expired"
	linkNotFound = "not_found"
)

// Metrics holds request and domain counters for one Server.
type Metrics struct {
	mu      sync.Mutex
	started time.Time

	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64

	uploadsTotal       int64
	uploadBytesTotal   int64
	downloadsTotal     int64
	downloadBytesTotal int64
	deletesTotal       int64

	loginSuccessTotal  int64
	loginFailuresTotal int64

	grantMergesTotal int64
	linkEvents       map[string]int64
}

// newMetrics returns zeroed counters with the uptime clock started.
func newMetrics() *Metrics {
	return &Metrics{started: time.Now(), linkEvents: make(map[string]int64)}
}

// RecordRequest counts a finished request and classifies 4xx and 5xx
// responses.
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case statusCode >= 500:
		m.requestErrors5xx++
	case statusCode >= 400:
		m.requestErrors4xx++
	}
}

// RecordUpload counts one stored file of the given size.
func (m *Metrics) RecordUpload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
}

// RecordDownload counts one served file and the bytes copied to the client.
func (m *Metrics) RecordDownload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
}

// RecordDelete counts one deleted file.
func (m *Metrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletesTotal++
}

// RecordLogin counts a login attempt by outcome.
func (m *Metrics) RecordLogin(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailuresTotal++
	}
}

// RecordGrantMerge counts a successful grant merge.
func (m *Metrics) RecordGrantMerge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantMergesTotal++
}

// RecordLinkEvent counts a share link event such as linkMinted.
func (m *Metrics) RecordLinkEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkEvents[event]++
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	RequestsTotal      int64
	RequestErrors4xx   int64
	RequestErrors5xx   int64
	UploadsTotal       int64
	UploadBytesTotal   int64
	DownloadsTotal     int64
	DownloadBytesTotal int64
	DeletesTotal       int64
	LoginSuccessTotal  int64
	LoginFailuresTotal int64
	GrantMergesTotal   int64
	LinkEvents         map[string]int64
	Uptime             time.Duration
}

// Snapshot copies the counters under the lock.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := make(map[string]int64, len(m.linkEvents))
	for k, v := range m.linkEvents {
		links[k] = v
	}
	return MetricsSnapshot{
		RequestsTotal:      m.requestsTotal,
		RequestErrors4xx:   m.requestErrors4xx,
		RequestErrors5xx:   m.requestErrors5xx,
		UploadsTotal:       m.uploadsTotal,
		UploadBytesTotal:   m.uploadBytesTotal,
		DownloadsTotal:     m.downloadsTotal,
		DownloadBytesTotal: m.downloadBytesTotal,
		DeletesTotal:       m.deletesTotal,
		LoginSuccessTotal:  m.loginSuccessTotal,
		LoginFailuresTotal: m.loginFailuresTotal,
		GrantMergesTotal:   m.grantMergesTotal,
		LinkEvents:         links,
		Uptime:             time.Since(m.started),
	}
}

// prometheusLabel escapes a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return strings.ReplaceAll(value, "\n", "\\n")
}

// writeMetric writes one unlabelled sample with its HELP and TYPE lines.
func writeMetric(b *strings.Builder, name, kind, help string, value int64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
}

// handleMetrics serves the counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snap := s.metrics.Snapshot()
	var b strings.Builder

	writeMetric(&b, "sfs_requests_total", "counter", "Total number of HTTP requests", snap.RequestsTotal)
	b.WriteString("# HELP sfs_request_errors_total HTTP error responses by class\n")
	b.WriteString("# TYPE sfs_request_errors_total counter\n")
	fmt.Fprintf(&b, "sfs_request_errors_total{class=\"4xx\"} %d\n", snap.RequestErrors4xx)
	fmt.Fprintf(&b, "sfs_request_errors_total{class=\"5xx\"} %d\n\n", snap.RequestErrors5xx)

	writeMetric(&b, "sfs_uploads_total", "counter", "Files stored", snap.UploadsTotal)
	writeMetric(&b, "sfs_upload_bytes_total", "counter", "Bytes stored", snap.UploadBytesTotal)
	writeMetric(&b, "sfs_downloads_total", "counter", "Files served", snap.DownloadsTotal)
	writeMetric(&b, "sfs_download_bytes_total", "counter", "Bytes served", snap.DownloadBytesTotal)
	writeMetric(&b, "sfs_deletes_total", "counter", "Files deleted", snap.DeletesTotal)
	writeMetric(&b, "sfs_login_success_total", "counter", "Successful logins", snap.LoginSuccessTotal)
	writeMetric(&b, "sfs_login_failures_total", "counter", "Rejected logins", snap.LoginFailuresTotal)
	writeMetric(&b, "sfs_grant_merges_total", "counter", "Successful grant merges", snap.GrantMergesTotal)

	events := make([]string, 0, len(snap.LinkEvents))
	for e := range snap.LinkEvents {
		events = append(events, e)
	}
	sort.Strings(events)
	b.WriteString("# HELP sfs_link_events_total Share link events by outcome\n")
	b.WriteString("# TYPE sfs_link_events_total counter\n")
	for _, e := range events {
		fmt.Fprintf(&b, "sfs_link_events_total{event=\"%s\"} %d\n", prometheusLabel(e), snap.LinkEvents[e])
	}
	b.WriteString("\n")

	b.WriteString("# HELP sfs_uptime_seconds Seconds since the server was created\n")
	b.WriteString("# TYPE sfs_uptime_seconds gauge\n")
	fmt.Fprintf(&b, "sfs_uptime_seconds %.0f\n", snap.Uptime.Seconds())

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}
