// Package parser turns the supervised client's console output into
// status transitions.
//
// The client prints a pairing code as a block of dense glyph lines framed
// only by a marker line before it and a non-glyph line after it. The
// parser is a two-state line classifier (idle, collecting); every other
// line is diagnostic noise and passes through untouched.
package parser

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"unicode/utf8"

	"pairwatch/internal/metrics"
	"pairwatch/internal/status"
)

// Artifact-start markers, matched case-sensitively.
var artifactMarkers = []string{
	"QR Code recebido",
	"Escaneie com seu WhatsApp",
}

// Ready markers, matched case-insensitively anywhere in the line. This
// also matches unrelated text such as "already"; kept for compatibility
// with the client's output.
var readyMarkers = []string{
	"pronto",
	"ready",
}

// Glyphs used by the client's terminal QR renderer.
const artifactGlyphs = "█▄▀"

// Parser owns write access to the status store for the lifetime of one
// child process. It is not safe for concurrent use.
type Parser struct {
	store  *status.Store
	logger *slog.Logger
	echo   io.Writer

	collecting bool
	pending    []string
}

// New returns a Parser writing transitions into store. Each line is
// echoed to echo when it is non-nil.
func New(store *status.Store, logger *slog.Logger, echo io.Writer) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{store: store, logger: logger, echo: echo}
}

// Collecting reports whether the parser is inside an artifact block.
func (p *Parser) Collecting() bool {
	return p.collecting
}

// Feed classifies one raw output line and applies the resulting
// transition, if any.
func (p *Parser) Feed(raw string) {
	if !utf8.ValidString(raw) {
		if p.echo != nil {
			fmt.Fprintln(p.echo, strings.TrimSpace(strings.ToValidUTF8(raw, "\uFFFD")))
		}
		metrics.RecordParserLine("malformed")
		p.logger.Warn("skipping malformed output line", "bytes", len(raw))
		return
	}

	line := strings.TrimSpace(raw)
	if p.echo != nil {
		fmt.Fprintln(p.echo, line)
	}

	switch {
	case isArtifactStart(line):
		metrics.RecordParserLine("artifact_start")
		p.collecting = true
		p.pending = p.pending[:0]
		p.apply("await_artifact", p.store.AwaitArtifact)

	case isReady(line):
		metrics.RecordParserLine("ready")
		p.collecting = false
		p.pending = p.pending[:0]
		if _, ok := p.apply("connect", p.store.Connect); ok {
			p.logger.Info("client connected")
		}

	case p.collecting:
		p.collect(line)

	default:
		metrics.RecordParserLine("noise")
	}
}

func (p *Parser) collect(line string) {
	if line != "" && strings.ContainsAny(line, artifactGlyphs) {
		metrics.RecordParserLine("artifact_body")
		p.pending = append(p.pending, line)
		return
	}
	if len(p.pending) == 0 {
		metrics.RecordParserLine("noise")
		return
	}

	metrics.RecordParserLine("artifact_end")
	artifact := strings.Join(p.pending, "\n")
	p.collecting = false
	p.pending = p.pending[:0]

	snap, ok := p.apply("artifact_ready", func() (status.Status, error) {
		return p.store.PublishArtifact(artifact)
	})
	if ok {
		p.logger.Info("pairing code updated", "artifact_id", snap.ArtifactID, "lines", strings.Count(artifact, "\n")+1)
	}
}

// Run feeds every line of lines and returns how many were read. It
// returns when the sequence ends.
func (p *Parser) Run(lines iter.Seq[string]) int {
	n := 0
	for line := range lines {
		n++
		p.Feed(line)
	}
	return n
}

// Finish is called once the output stream has ended. Unless the client
// reached a terminal phase, the status becomes failed with reason.
func (p *Parser) Finish(reason string) {
	p.collecting = false
	p.pending = p.pending[:0]

	if p.store.Snapshot().Phase.Terminal() {
		return
	}
	if _, ok := p.apply("fail", func() (status.Status, error) { return p.store.Fail(reason) }); ok {
		p.logger.Warn("client stopped before connecting", "reason", reason)
	}
}

func (p *Parser) apply(event string, fn func() (status.Status, error)) (status.Status, bool) {
	snap, err := fn()
	if err != nil {
		if errors.Is(err, status.ErrTransitionRejected) {
			p.logger.Debug("ignoring transition", "event", event, "phase", snap.Phase, "error", err)
			return snap, false
		}
		p.logger.Error("status transition failed", "event", event, "error", err)
		return snap, false
	}
	return snap, true
}

func isArtifactStart(line string) bool {
	for _, m := range artifactMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func isReady(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range readyMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
