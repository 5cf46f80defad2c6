package cargo

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTestListing_When_TestsAndBenches(t *testing.T) {
	t.Parallel()

	stdout := "test_in_lib_1: test\n" +
		"module::test_in_module: test\n" +
		"bench_push: benchmark\n"

	tests, err := parseTestListing(stdout, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []TestFn{
		{Name: "test_in_lib_1", Kind: TestFnTest},
		{Name: "module::test_in_module", Kind: TestFnTest},
		{Name: "bench_push", Kind: TestFnBench},
	}, tests)
}

func TestParseTestListing_When_Empty(t *testing.T) {
	t.Parallel()

	tests, err := parseTestListing("", zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, tests)
}

func TestParseTestListing_When_UnsupportedKind(t *testing.T) {
	t.Parallel()

	stdout := "test_one: test\n" +
		"placeholder: ignored\n" +
		"test_two: test\n"

	tests, err := parseTestListing(stdout, zerolog.Nop())
	require.NoError(t, err)

	// Exactly the unsupported line is dropped; no parse failure.
	assert.Equal(t, []TestFn{
		{Name: "test_one", Kind: TestFnTest},
		{Name: "test_two", Kind: TestFnTest},
	}, tests)
}

func TestParseTestListing_When_MalformedLine(t *testing.T) {
	t.Parallel()

	stdout := "test_one: test\nrunning 2 tests\n"

	tests, err := parseTestListing(stdout, zerolog.Nop())

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	// The whole listing fails; no partial results.
	assert.Nil(t, tests)
	assert.Equal(t, stdout, parseErr.Output)
}

func TestParseTestListing_When_NameContainsSeparator(t *testing.T) {
	t.Parallel()

	// Greedy match keeps everything before the final ": " as the name.
	tests, err := parseTestListing("odd: name: test\n", zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, tests, 1)
	assert.Equal(t, "odd: name", tests[0].Name)
}
