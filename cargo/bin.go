package cargo

import (
	"context"

	"github.com/rs/zerolog"
)

// BinaryBuilder compiles a single binary or example (i.e. what you can
// `cargo run`) and returns its executable artifact.
//
//	artifact, err := cargo.Binary("hello_world").
//	    Workspace("samples/hello_world").
//	    Features(cargo.Features("non_default_feature")).
//	    Release(true).
//	    Build(ctx)
type BinaryBuilder struct {
	name      string
	isExample bool
	workspace string
	pkg       PackageSpec
	features  *FeatureSpec
	targetDir string
	release   bool
	diag      chan<- Diagnostic
	cargoPath string
	logger    zerolog.Logger
}

// Binary describes a binary to compile.
//
// Note: by default a crate's default binary has the name of the crate.
func Binary(name string) *BinaryBuilder {
	return newBinaryBuilder(name, false)
}

// Example describes an example to compile.
func Example(name string) *BinaryBuilder {
	return newBinaryBuilder(name, true)
}

func newBinaryBuilder(name string, isExample bool) *BinaryBuilder {
	return &BinaryBuilder{
		name:      name,
		isExample: isExample,
		logger:    defaultLogger(),
	}
}

// Workspace sets the directory cargo runs in. Defaults to the current
// working directory.
func (b *BinaryBuilder) Workspace(dir string) *BinaryBuilder {
	b.workspace = dir
	return b
}

// Package sets the package the binary is in. Defaults to [AnyPackage].
func (b *BinaryBuilder) Package(pkg PackageSpec) *BinaryBuilder {
	b.pkg = pkg
	return b
}

// Features sets the feature flags to build with. When unset, cargo's
// defaults apply.
func (b *BinaryBuilder) Features(features FeatureSpec) *BinaryBuilder {
	b.features = &features
	return b
}

// TargetDir overrides where cargo puts build artifacts.
func (b *BinaryBuilder) TargetDir(dir string) *BinaryBuilder {
	b.targetDir = dir
	return b
}

// Release builds in release mode.
func (b *BinaryBuilder) Release(release bool) *BinaryBuilder {
	b.release = release
	return b
}

// Diagnostics supplies a channel that receives every compiler message
// exactly once, in stream order. Sends block, so the caller must drain
// the channel concurrently with Build. Regardless of this option,
// compiler messages are logged at debug level.
func (b *BinaryBuilder) Diagnostics(ch chan<- Diagnostic) *BinaryBuilder {
	b.diag = ch
	return b
}

// CargoPath overrides the toolchain executable. Defaults to "cargo" on
// PATH.
func (b *BinaryBuilder) CargoPath(path string) *BinaryBuilder {
	b.cargoPath = path
	return b
}

// Logger sets the logger used for debug and warning events. Defaults to
// the global zerolog logger.
func (b *BinaryBuilder) Logger(logger zerolog.Logger) *BinaryBuilder {
	b.logger = logger
	return b
}

// Build compiles the described executable, blocking until cargo exits.
//
// A request that names a target or package cargo does not know yields
// *[NotFoundError] or *[PackageNotFoundError]; other build failures yield
// *[CargoError] with stderr attached. A toolchain that reports more than
// one executable for this request shape, or none despite a successful
// exit, yields *[InvariantError].
func (b *BinaryBuilder) Build(ctx context.Context) (*ExecutableArtifact, error) {
	args := []string{"build", msgFormat, "--package", b.pkg.Repr()}
	if b.features != nil {
		args = append(args, b.features.Args()...)
	}
	if b.release {
		args = append(args, "--release")
	}
	if b.targetDir != "" {
		args = append(args, "--target-dir", b.targetDir)
	}
	if b.isExample {
		args = append(args, "--example", b.name)
	} else {
		args = append(args, "--bin", b.name)
	}

	var found *Artifact
	sink := &messageSink{
		diag:   b.diag,
		logger: b.logger,
		artifact: func(a Artifact) error {
			if a.Executable == "" {
				// Non-primary outputs (rlibs, build scripts) are expected.
				return nil
			}
			if found != nil {
				return &InvariantError{
					Reason: "cargo build with --bin or --example produced more than one executable",
				}
			}
			found = &a
			return nil
		},
	}

	inv := invocation{cargoPath: b.cargoPath, dir: b.workspace, args: args, logger: b.logger}
	if err := inv.run(ctx, sink); err != nil {
		return nil, err
	}

	if found == nil {
		return nil, &InvariantError{
			Reason: "cargo build exited successfully without producing an executable",
		}
	}
	artifact, _ := executableArtifact(*found)
	return &artifact, nil
}
