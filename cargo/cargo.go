// Package cargo drives the cargo toolchain as a subprocess to build
// binaries and test artifacts, and to discover the runnable tests inside
// the artifacts it built.
//
// The main entrypoints are [Binary], [Example] and [Tests]:
//
//	artifact, err := cargo.Binary("hello_world").Release(true).Build(ctx)
//	artifacts, err := cargo.Tests(cargo.ExactName("test_frobs_baz"),
//	    cargo.IntegrationTests("frob_*")).Build(ctx)
//
// Cargo's structured stdout stream is parsed incrementally while the child
// runs; diagnostics are forwarded to an optional caller channel and
// artifacts are collected and correlated against the request shape. On
// failure, stderr is classified into typed errors ([NotFoundError],
// [PackageNotFoundError], [CargoError]) by best-effort pattern matching.
//
// Only the default libtest harness is supported for test discovery.
package cargo

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// msgFormat asks cargo for newline-delimited JSON with the rendered
// diagnostic text carrying embedded ANSI color codes, so rustc's default
// color scheme survives the round trip.
const msgFormat = "--message-format=json-diagnostic-rendered-ansi"

// defaultCargoPath is used when a builder is not given an explicit
// toolchain path.
const defaultCargoPath = "cargo"

// PackageSpec selects a package, i.e. what gets passed to cargo's
// --package flag. The zero value selects any package in the workspace.
type PackageSpec struct {
	repr string
}

const anyPackageRepr = "*"

// AnyPackage selects any package in the workspace.
func AnyPackage() PackageSpec {
	return PackageSpec{}
}

// PackageName selects a package by name.
func PackageName(name string) PackageSpec {
	return PackageSpec{repr: name}
}

// PackageID selects a package by its fully-qualified ID
// (e.g. "stevedore 0.1.0 (path+file:///home/me/stevedore)").
func PackageID(id string) PackageSpec {
	return PackageSpec{repr: id}
}

// Repr returns what you'd pass to the --package flag.
func (s PackageSpec) Repr() string {
	if s.repr == "" {
		return anyPackageRepr
	}
	return s.repr
}

// FeatureSpec describes a configuration of cargo feature flags.
// Construct one with [AllFeatures], [Features], [FeaturesNoDefault],
// [DefaultFeaturesOnly] or [NoFeatures].
type FeatureSpec struct {
	all            bool
	includeDefault bool
	features       []string
}

// AllFeatures enables every feature (--all-features).
func AllFeatures() FeatureSpec {
	return FeatureSpec{all: true}
}

// Features enables the named features on top of the default feature set
// (--features ...).
func Features(names ...string) FeatureSpec {
	return FeatureSpec{includeDefault: true, features: names}
}

// FeaturesNoDefault enables only the named features
// (--features ... --no-default-features).
func FeaturesNoDefault(names ...string) FeatureSpec {
	return FeatureSpec{features: names}
}

// DefaultFeaturesOnly enables only the default feature set.
func DefaultFeaturesOnly() FeatureSpec {
	return Features()
}

// NoFeatures disables every feature (--no-default-features).
func NoFeatures() FeatureSpec {
	return FeaturesNoDefault()
}

// Append adds a feature to a subset spec. Appending to an all-features
// spec is a no-op, logged at info level.
func (s *FeatureSpec) Append(name string) *FeatureSpec {
	if s.all {
		log.Info().Str("feature", name).Msg("ignoring feature append: spec already enables all features")
		return s
	}
	s.features = append(s.features, name)
	return s
}

// Args returns the cargo arguments this spec serializes to.
func (s FeatureSpec) Args() []string {
	if s.all {
		return []string{"--all-features"}
	}
	var args []string
	if len(s.features) > 0 {
		args = append(args, "--features", strings.Join(s.features, ","))
	}
	if !s.includeDefault {
		args = append(args, "--no-default-features")
	}
	return args
}

// defaultLogger returns the logger a builder uses when none is supplied.
func defaultLogger() zerolog.Logger {
	return log.Logger
}
