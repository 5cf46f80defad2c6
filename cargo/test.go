package cargo

import (
	"context"

	"github.com/rs/zerolog"
)

// NameSpec selects tests and benches by name, both at discovery time and
// when deriving re-run arguments. The zero value matches everything.
type NameSpec struct {
	kind nameKind
	name string
}

type nameKind int

const (
	nameAny nameKind = iota
	nameExact
	nameSubstring
)

// AnyName matches every test and bench.
func AnyName() NameSpec {
	return NameSpec{}
}

// ExactName matches only the exact name (i.e. `--exact`).
func ExactName(name string) NameSpec {
	return NameSpec{kind: nameExact, name: name}
}

// SubstringName matches anything containing the substring, libtest's
// default filter behavior.
func SubstringName(name string) NameSpec {
	return NameSpec{kind: nameSubstring, name: name}
}

// RunArgs returns the arguments to pass to a test binary to run (or
// list) only the tests this spec matches.
func (s NameSpec) RunArgs() []string {
	switch s.kind {
	case nameExact:
		return exactRunArgs(s.name)
	case nameSubstring:
		return []string{s.name}
	default:
		return nil
	}
}

func exactRunArgs(name string) []string {
	return []string{"--exact", name}
}

// TypeSpec selects the class of test artifacts to build. Names may
// contain globs (e.g. "frob_*").
type TypeSpec struct {
	kind typeKind
	name string
}

type typeKind int

const (
	typeAll typeKind = iota
	typeLib
	typeBin
	typeBins
	typeIntegration
	typeIntegrations
	typeExample
	typeExamples
	typeDoc
)

// AllTests selects every test-producing target. The zero TypeSpec is
// equivalent.
func AllTests() TypeSpec {
	return TypeSpec{}
}

// LibTests selects unit tests in the library.
func LibTests() TypeSpec {
	return TypeSpec{kind: typeLib}
}

// BinTests selects unit tests defined in the named binary.
func BinTests(name string) TypeSpec {
	return TypeSpec{kind: typeBin, name: name}
}

// AllBinTests selects unit tests defined in any binary.
func AllBinTests() TypeSpec {
	return TypeSpec{kind: typeBins}
}

// IntegrationTests selects the named integration test file
// (i.e. `cargo test --test <name>`).
func IntegrationTests(name string) TypeSpec {
	return TypeSpec{kind: typeIntegration, name: name}
}

// AllIntegrationTests selects every integration test file.
func AllIntegrationTests() TypeSpec {
	return TypeSpec{kind: typeIntegrations}
}

// ExampleTests selects unit tests defined in the named example.
func ExampleTests(name string) TypeSpec {
	return TypeSpec{kind: typeExample, name: name}
}

// AllExampleTests selects unit tests defined in any example.
func AllExampleTests() TypeSpec {
	return TypeSpec{kind: typeExamples}
}

// DocTests selects documentation tests.
func DocTests() TypeSpec {
	return TypeSpec{kind: typeDoc}
}

// Args returns the cargo selector arguments this spec serializes to.
// Empty for [AllTests]: cargo's default is every target.
func (s TypeSpec) Args() []string {
	switch s.kind {
	case typeLib:
		return []string{"--lib"}
	case typeBin:
		return []string{"--bin", s.name}
	case typeBins:
		return []string{"--bins"}
	case typeIntegration:
		return []string{"--test", s.name}
	case typeIntegrations:
		return []string{"--test", "*"}
	case typeExample:
		return []string{"--example", s.name}
	case typeExamples:
		return []string{"--examples"}
	case typeDoc:
		return []string{"--doc"}
	default:
		return nil
	}
}

// TestFnKind reports whether a discovered function is a test or a
// benchmark.
type TestFnKind int

const (
	// TestFnTest is an ordinary test (created with #[test]).
	TestFnTest TestFnKind = iota
	// TestFnBench is a benchmark (unstable, created with #[bench]).
	TestFnBench
)

func (k TestFnKind) String() string {
	if k == TestFnBench {
		return "bench"
	}
	return "test"
}

// TestFn is one test or bench discovered inside a compiled artifact. The
// name is fully qualified and may contain module path separators
// (e.g. "module::test_in_module").
type TestFn struct {
	Name string
	Kind TestFnKind
}

// RunArgs returns the arguments to pass to the test artifact to run only
// this test or bench.
func (fn TestFn) RunArgs() []string {
	return exactRunArgs(fn.Name)
}

// TestArtifact pairs a compiled test executable with the tests and
// benches inside it that matched the requested name spec.
type TestArtifact struct {
	// Artifact holds the details of the compiled output.
	Artifact ExecutableArtifact
	// Tests are the discovered functions matching the name spec.
	Tests []TestFn

	nameSpec NameSpec
}

// RunArgs returns the arguments to pass to the test artifact to re-run
// only the tests that matched the originating name spec.
func (a TestArtifact) RunArgs() []string {
	return a.nameSpec.RunArgs()
}

// TestBuilder compiles a class of test artifacts and discovers the
// matching tests inside each.
//
//	artifacts, err := cargo.Tests(
//	    cargo.SubstringName("test_in_lib_1"), cargo.LibTests()).
//	    Workspace("samples/hello_world").
//	    Build(ctx)
type TestBuilder struct {
	name      NameSpec
	testType  TypeSpec
	workspace string
	pkg       PackageSpec
	features  *FeatureSpec
	targetDir string
	release   bool
	diag      chan<- Diagnostic
	cargoPath string
	logger    zerolog.Logger
}

// Tests describes test artifacts to compile and the names to discover in
// them.
func Tests(name NameSpec, testType TypeSpec) *TestBuilder {
	return &TestBuilder{
		name:     name,
		testType: testType,
		logger:   defaultLogger(),
	}
}

// Workspace sets the directory cargo (and each listing invocation) runs
// in. Defaults to the current working directory.
func (b *TestBuilder) Workspace(dir string) *TestBuilder {
	b.workspace = dir
	return b
}

// Package sets the package to build tests for. Defaults to [AnyPackage].
func (b *TestBuilder) Package(pkg PackageSpec) *TestBuilder {
	b.pkg = pkg
	return b
}

// Features sets the feature flags to build with. When unset, cargo's
// defaults apply.
func (b *TestBuilder) Features(features FeatureSpec) *TestBuilder {
	b.features = &features
	return b
}

// TargetDir overrides where cargo puts build artifacts.
func (b *TestBuilder) TargetDir(dir string) *TestBuilder {
	b.targetDir = dir
	return b
}

// Release builds in release mode.
func (b *TestBuilder) Release(release bool) *TestBuilder {
	b.release = release
	return b
}

// Diagnostics supplies a channel that receives every compiler message
// exactly once, in stream order. Sends block, so the caller must drain
// the channel concurrently with Build. Regardless of this option,
// compiler messages are logged at debug level.
func (b *TestBuilder) Diagnostics(ch chan<- Diagnostic) *TestBuilder {
	b.diag = ch
	return b
}

// CargoPath overrides the toolchain executable. Defaults to "cargo" on
// PATH.
func (b *TestBuilder) CargoPath(path string) *TestBuilder {
	b.cargoPath = path
	return b
}

// Logger sets the logger used for debug and warning events. Defaults to
// the global zerolog logger.
func (b *TestBuilder) Logger(logger zerolog.Logger) *TestBuilder {
	b.logger = logger
	return b
}

// Build compiles the described test artifacts, then asks each produced
// binary for the tests and benches inside it that match the name spec. A
// request matching no targets returns an empty slice, not an error.
func (b *TestBuilder) Build(ctx context.Context) ([]TestArtifact, error) {
	executables, err := b.buildArtifacts(ctx)
	if err != nil {
		return nil, err
	}

	artifacts := make([]TestArtifact, 0, len(executables))
	for _, exe := range executables {
		artifact, err := b.discover(ctx, exe)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// buildArtifacts runs `cargo test --no-run` and collects every executable
// built in the test compilation profile, ignoring the name spec.
func (b *TestBuilder) buildArtifacts(ctx context.Context) ([]ExecutableArtifact, error) {
	args := []string{"test", "--no-run", msgFormat, "--package", b.pkg.Repr()}
	if b.features != nil {
		args = append(args, b.features.Args()...)
	}
	if b.release {
		args = append(args, "--release")
	}
	if b.targetDir != "" {
		args = append(args, "--target-dir", b.targetDir)
	}
	args = append(args, b.testType.Args()...)

	var executables []ExecutableArtifact
	sink := &messageSink{
		diag:   b.diag,
		logger: b.logger,
		artifact: func(a Artifact) error {
			if !a.Profile.Test {
				// cargo test also builds plain binaries so integration tests
				// can exec them; those are not test artifacts.
				return nil
			}
			if exe, ok := executableArtifact(a); ok {
				executables = append(executables, exe)
			}
			return nil
		},
	}

	inv := invocation{cargoPath: b.cargoPath, dir: b.workspace, args: args, logger: b.logger}
	if err := inv.run(ctx, sink); err != nil {
		return nil, err
	}
	return executables, nil
}
