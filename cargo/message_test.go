package cargo

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainMessages_When_MixedEnvelopes(t *testing.T) {
	t.Parallel()

	stream := strings.Join([]string{
		diagnosticLine("warning", "unused variable: `x`"),
		artifactLine("hello_world", "/work/target/debug/hello_world", false, nil),
		`{"reason":"build-finished","success":true}`,
		"",
		"not json at all",
	}, "\n")

	diags := make(chan Diagnostic, 4)
	var artifacts []Artifact
	sink := &messageSink{
		diag:   diags,
		logger: zerolog.Nop(),
		artifact: func(a Artifact) error {
			artifacts = append(artifacts, a)
			return nil
		},
	}

	err := drainMessages(strings.NewReader(stream), sink)
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	assert.Equal(t, "hello_world", artifacts[0].Target.Name)
	assert.Equal(t, "/work/target/debug/hello_world", artifacts[0].Executable)
	assert.Equal(t, "/work/hello_world/src/main.rs", artifacts[0].Target.SrcPath)
	assert.False(t, artifacts[0].Fresh)

	require.Len(t, diags, 1)
	d := <-diags
	assert.Equal(t, "warning", d.Message.Level)
	assert.Contains(t, d.Message.Rendered, "unused variable")
}

func TestDrainMessages_When_NoObserverRegistered(t *testing.T) {
	t.Parallel()

	stream := diagnosticLine("error", "mismatched types")

	sink := &messageSink{
		logger:   zerolog.Nop(),
		artifact: func(Artifact) error { return nil },
	}

	// A nil diagnostics channel must not block or panic.
	err := drainMessages(strings.NewReader(stream), sink)
	require.NoError(t, err)
}

func TestDrainMessages_When_NullExecutable(t *testing.T) {
	t.Parallel()

	stream := artifactLine("hello_world_lib", "", false, nil)

	var artifacts []Artifact
	sink := &messageSink{
		logger: zerolog.Nop(),
		artifact: func(a Artifact) error {
			artifacts = append(artifacts, a)
			return nil
		},
	}

	err := drainMessages(strings.NewReader(stream), sink)
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	assert.Empty(t, artifacts[0].Executable)

	_, ok := executableArtifact(artifacts[0])
	assert.False(t, ok)
}

func TestDrainMessages_When_SinkAborts(t *testing.T) {
	t.Parallel()

	stream := strings.Join([]string{
		artifactLine("first", "/work/target/debug/first", false, nil),
		artifactLine("second", "/work/target/debug/second", false, nil),
	}, "\n")

	calls := 0
	sink := &messageSink{
		logger: zerolog.Nop(),
		artifact: func(Artifact) error {
			calls++
			if calls > 1 {
				return &InvariantError{Reason: "too many executables"}
			}
			return nil
		},
	}

	err := drainMessages(strings.NewReader(stream), sink)

	var invariant *InvariantError
	require.ErrorAs(t, err, &invariant)
	assert.Equal(t, 2, calls)
}

func TestDrainMessages_When_TestProfileFlagged(t *testing.T) {
	t.Parallel()

	stream := artifactLine("integration_tests_1", "/work/target/debug/deps/integration_tests_1-abc", true, nil)

	var artifacts []Artifact
	sink := &messageSink{
		logger: zerolog.Nop(),
		artifact: func(a Artifact) error {
			artifacts = append(artifacts, a)
			return nil
		},
	}

	require.NoError(t, drainMessages(strings.NewReader(stream), sink))
	require.Len(t, artifacts, 1)
	assert.True(t, artifacts[0].Profile.Test)
}
