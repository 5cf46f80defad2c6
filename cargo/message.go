package cargo

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// maxMessageBytes bounds a single stream line. Artifact envelopes carry
// every generated filename, so they can get long on large workspaces.
const maxMessageBytes = 4 * 1024 * 1024

// Envelope reasons cargo is known to emit. Anything else passes through
// unrecognized and unused.
const (
	reasonCompilerArtifact = "compiler-artifact"
	reasonCompilerMessage  = "compiler-message"
)

// Diagnostic is one compiler-message envelope from the stream. The engine
// does not interpret its contents; it is handed to the caller unmodified.
type Diagnostic struct {
	PackageID string            `json:"package_id"`
	Target    Target            `json:"target"`
	Message   DiagnosticMessage `json:"message"`
}

// DiagnosticMessage is the rustc diagnostic inside a compiler-message
// envelope. Rendered contains the human-readable text with embedded ANSI
// color codes, per the message format requested by the engine.
type DiagnosticMessage struct {
	Rendered string           `json:"rendered"`
	Level    string           `json:"level"`
	Message  string           `json:"message"`
	Code     *DiagnosticCode  `json:"code"`
	Spans    []DiagnosticSpan `json:"spans"`
}

// DiagnosticCode is the optional error code of a diagnostic (e.g. E0308).
type DiagnosticCode struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// DiagnosticSpan is a source span referenced by a diagnostic.
type DiagnosticSpan struct {
	FileName    string `json:"file_name"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	ColumnStart int    `json:"column_start"`
	ColumnEnd   int    `json:"column_end"`
	IsPrimary   bool   `json:"is_primary"`
}

// messageSink receives the demultiplexed records of one cargo stdout
// stream. artifact is called once per compiler-artifact envelope and may
// abort the drain by returning an error.
type messageSink struct {
	diag     chan<- Diagnostic
	artifact func(Artifact) error
	logger   zerolog.Logger
}

func (s *messageSink) handleDiagnostic(d Diagnostic) {
	s.logger.Debug().
		Str("level", d.Message.Level).
		Str("message", d.Message.Message).
		Msg("compiler message")
	if s.diag != nil {
		s.diag <- d
	}
}

// drainMessages consumes r as newline-delimited JSON envelopes until the
// pipe closes. It must run while the child is still executing: the pipe
// buffer is bounded, and a child blocked on a full stdout pipe never
// exits.
func drainMessages(r io.Reader, sink *messageSink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var probe struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			// Not an envelope. Cargo keeps its structured stream clean, but
			// newer toolchains may interleave lines we don't know about.
			sink.logger.Debug().Str("line", string(line)).Msg("ignoring unparseable stream line")
			continue
		}

		switch probe.Reason {
		case reasonCompilerMessage:
			var d Diagnostic
			if err := json.Unmarshal(line, &d); err != nil {
				sink.logger.Debug().Err(err).Msg("ignoring malformed compiler-message envelope")
				continue
			}
			sink.handleDiagnostic(d)
		case reasonCompilerArtifact:
			var a Artifact
			if err := json.Unmarshal(line, &a); err != nil {
				sink.logger.Debug().Err(err).Msg("ignoring malformed compiler-artifact envelope")
				continue
			}
			if err := sink.artifact(a); err != nil {
				return err
			}
		default:
			// build-script-executed, build-finished, ...
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading cargo stdout: %w", err)
	}
	return nil
}
