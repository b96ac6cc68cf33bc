package parser

import (
	"bytes"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"pairwatch/internal/status"
)

func run(t *testing.T, lines []string) (*Parser, *status.Store) {
	t.Helper()
	st := status.NewStore()
	p := New(st, nil, nil)
	p.Run(slices.Values(lines))
	return p, st
}

func TestParserScenarios(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		phase    status.Phase
		artifact string
	}{
		{
			name:     "artifact block terminated by plain line",
			lines:    []string{"Escaneie com seu WhatsApp", "█▄▀█▄▀", "▄▀█▄▀█", "done"},
			phase:    status.PhaseArtifactReady,
			artifact: "█▄▀█▄▀\n▄▀█▄▀█",
		},
		{
			name:  "ready after noise",
			lines: []string{"noise", "tudo pronto para uso"},
			phase: status.PhaseConnected,
		},
		{
			name:  "ready overrides collection in progress",
			lines: []string{"QR Code recebido", "▄▄▄", "ready now"},
			phase: status.PhaseConnected,
		},
		{
			name:  "no output",
			lines: nil,
			phase: status.PhaseStarting,
		},
		{
			name:  "marker without body keeps awaiting",
			lines: []string{"QR Code recebido", "", "loading", "   "},
			phase: status.PhaseAwaitingArtifact,
		},
		{
			name:     "surrounding whitespace is stripped",
			lines:    []string{"  QR Code recebido  ", "\t █▀ \t", "", "later"},
			phase:    status.PhaseArtifactReady,
			artifact: "█▀",
		},
		{
			name:  "ready marker is case-insensitive",
			lines: []string{"Client is READY"},
			phase: status.PhaseConnected,
		},
		{
			name:  "artifact marker is case-sensitive",
			lines: []string{"qr code recebido", "█▀", "end"},
			phase: status.PhaseStarting,
		},
		{
			name:  "glyph lines outside a block are noise",
			lines: []string{"█▀█", "▄▄▄"},
			phase: status.PhaseStarting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, st := run(t, tt.lines)
			snap := st.Snapshot()
			if snap.Phase != tt.phase {
				t.Fatalf("expected phase %q, got %q", tt.phase, snap.Phase)
			}
			if snap.Artifact != tt.artifact {
				t.Fatalf("expected artifact %q, got %q", tt.artifact, snap.Artifact)
			}
		})
	}
}

func TestFinishWithoutOutputFails(t *testing.T) {
	p, st := run(t, nil)
	p.Finish("exited with code 1")

	snap := st.Snapshot()
	if snap.Phase != status.PhaseFailed {
		t.Fatalf("expected failed, got %q", snap.Phase)
	}
	if snap.Message != "exited with code 1" {
		t.Fatalf("expected failure reason in message, got %q", snap.Message)
	}
}

func TestFinishAfterConnectKeepsConnected(t *testing.T) {
	p, st := run(t, []string{"pronto"})
	p.Finish("exited")
	if got := st.Snapshot().Phase; got != status.PhaseConnected {
		t.Fatalf("expected connected, got %q", got)
	}
}

func TestFinishKeepsExplicitFailure(t *testing.T) {
	st := status.NewStore()
	if _, err := st.Fail("launch failed"); err != nil {
		t.Fatalf("Fail error: %v", err)
	}
	p := New(st, nil, nil)
	p.Finish("stream ended")
	if got := st.Snapshot().Message; got != "launch failed" {
		t.Fatalf("expected original failure message, got %q", got)
	}
}

func TestFinishDropsPartialBlock(t *testing.T) {
	p, st := run(t, []string{"QR Code recebido", "█▀█"})
	if !p.Collecting() {
		t.Fatalf("expected parser to be collecting")
	}
	p.Finish("exited")
	snap := st.Snapshot()
	if snap.Phase != status.PhaseFailed || snap.Artifact != "" {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestConnectedNeverReverts(t *testing.T) {
	_, st := run(t, []string{
		"Escaneie com seu WhatsApp",
		"█▀",
		"",
		"client ready",
		"QR Code recebido",
		"█▄",
		"▀▀",
		"end",
	})
	snap := st.Snapshot()
	if snap.Phase != status.PhaseConnected {
		t.Fatalf("expected connected, got %q", snap.Phase)
	}
	if snap.Artifact != "" {
		t.Fatalf("expected empty artifact, got %q", snap.Artifact)
	}
}

func TestArtifactRotation(t *testing.T) {
	st := status.NewStore()
	p := New(st, nil, nil)

	p.Run(slices.Values([]string{"QR Code recebido", "█▀", "", "noise"}))
	first := st.Snapshot()
	if first.Artifact != "█▀" {
		t.Fatalf("expected first artifact, got %q", first.Artifact)
	}

	// A new start marker withdraws the old code until the next one is complete.
	p.Feed("QR Code recebido")
	if snap := st.Snapshot(); snap.Phase != status.PhaseAwaitingArtifact || snap.Artifact != "" {
		t.Fatalf("expected awaiting with no artifact, got %#v", snap)
	}
	p.Feed("▄█")
	p.Feed("▀▄")
	p.Feed("x")

	second := st.Snapshot()
	if second.Artifact != "▄█\n▀▄" {
		t.Fatalf("expected second artifact, got %q", second.Artifact)
	}
	if second.ArtifactID == first.ArtifactID {
		t.Fatalf("expected a new artifact id")
	}
}

func TestNoiseInsideBlockBeforeBody(t *testing.T) {
	_, st := run(t, []string{"QR Code recebido", "", "[debug] rendering", "█▀", "▀█", "", "█▀ after end"})
	snap := st.Snapshot()
	if snap.Artifact != "█▀\n▀█" {
		t.Fatalf("expected only the contiguous block, got %q", snap.Artifact)
	}
}

func TestMalformedLineEchoedButNotParsed(t *testing.T) {
	var echo bytes.Buffer
	st := status.NewStore()
	p := New(st, nil, &echo)
	p.Run(slices.Values([]string{"QR Code recebido", "█▀", "\xff\xfe ready", "▄█", "end"}))

	snap := st.Snapshot()
	if snap.Phase != status.PhaseArtifactReady {
		t.Fatalf("expected malformed ready line to be skipped, got %q", snap.Phase)
	}
	if snap.Artifact != "█▀\n▄█" {
		t.Fatalf("unexpected artifact %q", snap.Artifact)
	}
	out := echo.String()
	if !utf8.ValidString(out) {
		t.Fatalf("echo must stay valid UTF-8, got %q", out)
	}
	if !strings.Contains(out, "\uFFFD ready\n") {
		t.Fatalf("expected sanitized malformed line in echo, got %q", out)
	}
}

func TestEchoesEveryLine(t *testing.T) {
	var echo bytes.Buffer
	st := status.NewStore()
	p := New(st, nil, &echo)
	n := p.Run(slices.Values([]string{"  hello ", "QR Code recebido", "█"}))
	if n != 3 {
		t.Fatalf("expected 3 lines read, got %d", n)
	}
	if echo.String() != "hello\nQR Code recebido\n█\n" {
		t.Fatalf("unexpected echo output %q", echo.String())
	}
}

// The published artifact is always exactly the glyph lines between the
// start marker and the terminator, joined by newlines.
func TestArtifactMatchesCollectedLines(t *testing.T) {
	blocks := [][]string{
		{"█"},
		{"█▀▄", "▄▀█", "▀▀▀", "███"},
		{"█ █ █", "▄ ▄"},
	}
	for _, block := range blocks {
		lines := append([]string{"Escaneie com seu WhatsApp", "warming up"}, block...)
		lines = append(lines, "--")
		_, st := run(t, lines)
		if got, want := st.Snapshot().Artifact, strings.Join(block, "\n"); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
