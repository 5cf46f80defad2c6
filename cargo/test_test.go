package cargo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestsBuild_When_TwoIntegrationArtifacts(t *testing.T) {
	t.Parallel()

	exe1 := fakeTestBinary(t, "integration_tests_1", "integration_tests_1_test: test")
	exe2 := fakeTestBinary(t, "integration_tests_2", "integration_tests_2_test: test")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe1),
		fmt.Sprintf("%s=%s", helperExe2EnvKey, exe2))

	artifacts, err := Tests(AnyName(), AllIntegrationTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())
	require.NoError(t, err)

	// The non-test-profile binary and the executable-less test output are
	// both excluded; only the two integration artifacts remain.
	require.Len(t, artifacts, 2)

	require.Len(t, artifacts[0].Tests, 1)
	assert.Equal(t, "integration_tests_1_test", artifacts[0].Tests[0].Name)
	assert.Equal(t, TestFnTest, artifacts[0].Tests[0].Kind)

	require.Len(t, artifacts[1].Tests, 1)
	assert.Equal(t, "integration_tests_2_test", artifacts[1].Tests[0].Name)
}

func TestTestsBuild_When_BenchDiscovered(t *testing.T) {
	t.Parallel()

	exe := fakeTestBinary(t, "lib_tests",
		"test_in_lib_1: test",
		"bench_push: benchmark")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	artifacts, err := Tests(AnyName(), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	assert.Equal(t, []TestFn{
		{Name: "test_in_lib_1", Kind: TestFnTest},
		{Name: "bench_push", Kind: TestFnBench},
	}, artifacts[0].Tests)
}

func TestTestsBuild_When_UnsupportedKindListed(t *testing.T) {
	t.Parallel()

	exe := fakeTestBinary(t, "lib_tests",
		"test_in_lib_1: test",
		"placeholder: ignored")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	artifacts, err := Tests(AnyName(), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	require.Len(t, artifacts[0].Tests, 1)
	assert.Equal(t, "test_in_lib_1", artifacts[0].Tests[0].Name)
}

func TestTestsBuild_When_ListingFails(t *testing.T) {
	t.Parallel()

	exe := brokenTestBinary(t, "custom harness does not understand --list")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	_, err := Tests(AnyName(), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())

	var listErr *ListError
	require.ErrorAs(t, err, &listErr)
	assert.Contains(t, listErr.Stderr, "custom harness")
}

func TestTestsBuild_When_ListingOutputMalformed(t *testing.T) {
	t.Parallel()

	exe := fakeTestBinary(t, "lib_tests",
		"test_in_lib_1: test",
		"running 1 test")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	_, err := Tests(AnyName(), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Output, "running 1 test")
}

func TestTestsBuild_When_ListingNotUTF8(t *testing.T) {
	t.Parallel()

	exe := nonUTF8TestBinary(t)
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	_, err := Tests(AnyName(), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())

	// The invalid bytes are replaced, the decodable rest is kept.
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Output, "�")
	assert.Contains(t, parseErr.Output, "test_one: test")
}

func TestTestsBuild_When_CancelledDuringListing(t *testing.T) {
	t.Parallel()

	exe := sleepingScript(t, "hung_tests")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Tests(AnyName(), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(ctx)

	// The killed listing process must not masquerade as a harness failure.
	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTestsBuild_When_BuildFails(t *testing.T) {
	t.Parallel()

	_, err := Tests(AnyName(), IntegrationTests("missing")).
		CargoPath(fakeCargo(t, "fail-not-found")).
		Logger(zerolog.Nop()).
		Build(context.Background())

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestTestsBuild_When_RunArgsDerived(t *testing.T) {
	t.Parallel()

	exe := fakeTestBinary(t, "example_tests", "test_in_example_1: test")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	artifacts, err := Tests(SubstringName("test_in_example_1"), ExampleTests("example_1")).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	assert.Equal(t, []string{"test_in_example_1"}, artifacts[0].RunArgs())

	fn := artifacts[0].Tests[0]
	assert.Equal(t, []string{"--exact", "test_in_example_1"}, fn.RunArgs())
}

func TestTestsBuild_When_FilterRoundTrips(t *testing.T) {
	t.Parallel()

	lines := []string{
		"test_in_lib_1: test",
		"module::test_in_module: test",
	}
	exe := filteringTestBinary(t, "lib_tests", lines...)
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	// Discover with an exact filter; only the named unit may appear even
	// though the binary contains two.
	artifacts, err := Tests(ExactName("module::test_in_module"), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	require.Len(t, artifacts[0].Tests, 1)
	assert.Equal(t, "module::test_in_module", artifacts[0].Tests[0].Name)

	// The same binary re-listed with the derived run arguments reports
	// only the matched unit again.
	again, err := Tests(ExactName(artifacts[0].Tests[0].Name), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, artifacts[0].Tests, again[0].Tests)
	assert.Equal(t, []string{"--exact", "module::test_in_module"}, again[0].RunArgs())
}

func TestTestsBuild_When_SubstringFilters(t *testing.T) {
	t.Parallel()

	exe := filteringTestBinary(t, "lib_tests",
		"test_in_lib_1: test",
		"module::test_in_module: test",
		"bench_push: benchmark")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	artifacts, err := Tests(SubstringName("test_in"), LibTests()).
		CargoPath(cargo).
		Logger(zerolog.Nop()).
		Build(context.Background())
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	assert.Equal(t, []TestFn{
		{Name: "test_in_lib_1", Kind: TestFnTest},
		{Name: "module::test_in_module", Kind: TestFnTest},
	}, artifacts[0].Tests)
}

func TestTestsBuild_When_ReleaseRequested(t *testing.T) {
	t.Parallel()

	exe := fakeTestBinary(t, "lib_tests", "test_in_lib_1: test")
	cargo := fakeCargo(t, "test-artifacts",
		fmt.Sprintf("%s=%s", helperExeEnvKey, exe))

	artifacts, err := Tests(AnyName(), LibTests()).
		CargoPath(cargo).
		Release(true).
		Logger(zerolog.Nop()).
		Build(context.Background())
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	assert.NotEqual(t, "0", artifacts[0].Artifact.Profile.OptLevel)
}
