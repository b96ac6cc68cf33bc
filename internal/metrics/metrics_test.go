package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	// Record a single request and ensure it appears in the export.
	RecordRequest("GET", "/api/qr-status", 200, 3)

	out := Export()
	if !strings.Contains(out, "pairwatch_http_requests_total{method=\"GET\",path=\"/api/qr-status\",status=\"200\"}") {
		t.Fatalf("expected HTTP request metric for GET /api/qr-status in export, got:\n%s", out)
	}
	if !strings.Contains(out, "pairwatch_http_request_duration_ms_sum") || !strings.Contains(out, "pairwatch_http_request_duration_ms_count") {
		t.Fatalf("expected latency metrics headers in export, got:\n%s", out)
	}
}

func TestRecordSupervisionMetrics(t *testing.T) {
	RecordParserLine("artifact_body")
	RecordTransition("connected")
	RecordChildExit("1")
	RecordProvision(false)
	RecordNotify(true)

	out := Export()
	for _, want := range []string{
		"pairwatch_parser_lines_total{kind=\"artifact_body\"}",
		"pairwatch_status_transitions_total{phase=\"connected\"}",
		"pairwatch_child_exits_total{exit=\"1\"}",
		"pairwatch_provision_runs_total{success=\"false\"}",
		"pairwatch_notify_publish_total{success=\"true\"}",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in export, got:\n%s", want, out)
		}
	}
}

func TestExportIsSorted(t *testing.T) {
	RecordParserLine("zz_kind")
	RecordParserLine("aa_kind")

	out := Export()
	a := strings.Index(out, "pairwatch_parser_lines_total{kind=\"aa_kind\"}")
	z := strings.Index(out, "pairwatch_parser_lines_total{kind=\"zz_kind\"}")
	if a < 0 || z < 0 || a > z {
		t.Fatalf("expected sorted parser line kinds, got:\n%s", out)
	}
}
