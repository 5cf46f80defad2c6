package cargo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// invocation describes one cargo child process.
type invocation struct {
	cargoPath string
	dir       string
	args      []string
	logger    zerolog.Logger
}

// run spawns cargo with piped stdout/stderr and a null stdin, parses the
// stdout stream into sink while the child executes, and classifies stderr
// if the child exits non-zero.
//
// Both pipes are drained concurrently: the calling goroutine parses
// stdout while a second goroutine buffers stderr for the whole child
// lifetime. A failing build that floods stderr while its stdout pipe is
// full can therefore never deadlock against the parent.
func (inv invocation) run(ctx context.Context, sink *messageSink) error {
	path := inv.cargoPath
	if path == "" {
		path = defaultCargoPath
	}

	cmd := exec.CommandContext(ctx, path, inv.args...)
	cmd.Dir = inv.dir
	cmd.Stdin = nil // /dev/null

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	inv.logger.Debug().Str("cargo", path).Strs("args", inv.args).Str("dir", inv.dir).Msg("spawning cargo")

	if err := cmd.Start(); err != nil {
		return &SpawnError{Err: err}
	}

	var stderrBuf bytes.Buffer
	var stderrErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, stderrErr = io.Copy(&stderrBuf, stderr)
	}()

	parseErr := drainMessages(stdout, sink)
	if parseErr != nil {
		// The sink aborted. Keep the child from wedging on a full pipe
		// before reaping it.
		_, _ = io.Copy(io.Discard, stdout)
	}
	wg.Wait()

	waitErr := cmd.Wait()
	if parseErr != nil {
		return parseErr
	}
	if waitErr != nil {
		// A cancelled context kills the child; its exit status and partial
		// stderr mean nothing then.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &SpawnError{Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			err := classifyStderr(stderrBuf.String(), stderrErr)
			inv.logger.Debug().Err(err).Int("exit_code", exitErr.ExitCode()).Msg("cargo exited with failure")
			return err
		}
		return &SpawnError{Err: waitErr}
	}
	return nil
}
