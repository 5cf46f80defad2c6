package cargo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// ListError reports that a test binary's listing invocation
// (`<binary> --list`) exited non-zero. The usual cause is a crate using a
// custom test harness instead of libtest; that is a known limitation, not
// a toolchain bug.
type ListError struct {
	Stderr string
}

func (e *ListError) Error() string {
	return "test binary --list failed (custom test harness?), stderr: " + e.Stderr
}

// ParseError reports that a listing invocation's stdout did not follow
// the `<name>: <kind>` grammar. Output holds the full original text (with
// invalid UTF-8 replaced) for diagnosis; no partial results are returned.
type ParseError struct {
	Output string
}

func (e *ParseError) Error() string {
	return "failed to parse test binary --list output (custom test harness?), got: " + e.Output
}

// listLineRe matches one terse listing line. Greedy, so a name containing
// ": " keeps everything up to the final separator, like libtest prints it.
var listLineRe = regexp.MustCompile(`^(.*): (.*)$`)

// discover runs the built artifact itself (not cargo) with a listing flag
// and the name filter, and parses the tests it reports.
func (b *TestBuilder) discover(ctx context.Context, exe ExecutableArtifact) (TestArtifact, error) {
	args := append([]string{"--list", "--format=terse"}, b.name.RunArgs()...)

	cmd := exec.CommandContext(ctx, exe.Executable, args...)
	cmd.Dir = b.workspace
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.logger.Debug().Str("executable", exe.Executable).Strs("args", args).Msg("listing tests")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TestArtifact{}, &SpawnError{Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return TestArtifact{}, &ListError{Stderr: stderr.String()}
		}
		return TestArtifact{}, &SpawnError{Err: fmt.Errorf("run %s: %w", exe.Executable, err)}
	}

	if !utf8.Valid(stdout.Bytes()) {
		b.logger.Error().Str("executable", exe.Executable).Msg("test binary stdout not valid UTF-8")
		return TestArtifact{}, &ParseError{Output: strings.ToValidUTF8(stdout.String(), "�")}
	}

	tests, err := parseTestListing(stdout.String(), b.logger)
	if err != nil {
		return TestArtifact{}, err
	}
	return TestArtifact{Artifact: exe, Tests: tests, nameSpec: b.name}, nil
}

// parseTestListing parses libtest's terse listing: one `<name>: <kind>`
// line per test. Kinds other than "test" and "benchmark" (e.g. ignored
// placeholders) are skipped with a warning; a line that doesn't match the
// grammar at all fails the entire listing.
func parseTestListing(stdout string, logger zerolog.Logger) ([]TestFn, error) {
	var tests []TestFn
	for line := range strings.Lines(stdout) {
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}
		m := listLineRe.FindStringSubmatch(line)
		if m == nil {
			return nil, &ParseError{Output: stdout}
		}
		name, kind := m[1], m[2]
		switch kind {
		case "test":
			tests = append(tests, TestFn{Name: name, Kind: TestFnTest})
		case "benchmark":
			tests = append(tests, TestFn{Name: name, Kind: TestFnBench})
		default:
			logger.Warn().Str("name", name).Str("kind", kind).Msg("ignoring unsupported test kind")
		}
	}
	return tests, nil
}
