package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for the status API and the supervised
// client. In-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	parserLinesTotal = make(map[string]int64)
	transitionsTotal = make(map[string]int64)
	childExitsTotal  = make(map[string]int64)
	provisionTotal   = make(map[string]int64)
	notifyTotal      = make(map[string]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordParserLine counts a classified output line by kind.
func RecordParserLine(kind string) {
	mu.Lock()
	defer mu.Unlock()
	parserLinesTotal[kind]++
}

// RecordTransition counts an applied status transition into phase.
func RecordTransition(phase string) {
	mu.Lock()
	defer mu.Unlock()
	transitionsTotal[phase]++
}

// RecordChildExit counts child process exits by their exit description
// (exit code or signal name).
func RecordChildExit(exit string) {
	mu.Lock()
	defer mu.Unlock()
	childExitsTotal[exit]++
}

// RecordProvision counts dependency provisioning runs.
func RecordProvision(success bool) {
	mu.Lock()
	defer mu.Unlock()
	provisionTotal[boolLabel(success)]++
}

// RecordNotify counts status publications to the notifier.
func RecordNotify(success bool) {
	mu.Lock()
	defer mu.Unlock()
	notifyTotal[boolLabel(success)]++
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP pairwatch_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE pairwatch_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "pairwatch_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP pairwatch_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE pairwatch_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP pairwatch_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE pairwatch_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "pairwatch_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "pairwatch_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	writeLabeled(&b, "pairwatch_parser_lines_total", "Child output lines by classification", "kind", parserLinesTotal)
	writeLabeled(&b, "pairwatch_status_transitions_total", "Applied status transitions by target phase", "phase", transitionsTotal)
	writeLabeled(&b, "pairwatch_child_exits_total", "Child process exits by exit status", "exit", childExitsTotal)
	writeLabeled(&b, "pairwatch_provision_runs_total", "Dependency provisioning runs", "success", provisionTotal)
	writeLabeled(&b, "pairwatch_notify_publish_total", "Status publications to the notifier", "success", notifyTotal)

	return b.String()
}

func writeLabeled(b *strings.Builder, name, help, label string, values map[string]int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s{%s=\"%s\"} %d\n", name, label, k, values[k])
	}
}
