package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stevedore-go/stevedore/cargo"
	"github.com/stevedore-go/stevedore/internal/telemetry"
)

// Flags for 'build' command
var (
	buildExample           bool
	buildPackage           string
	buildFeatures          []string
	buildNoDefaultFeatures bool
	buildAllFeatures       bool
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <name>",
		Short: "Compile a binary or example and print its artifact",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}

	cmd.Flags().BoolVar(&buildExample, "example", false, "Build an example instead of a binary")
	cmd.Flags().Bool("release", false, "Build with optimizations")
	cmd.Flags().StringVarP(&buildPackage, "package", "p", "", "Package to build the target from")
	cmd.Flags().StringSliceVarP(&buildFeatures, "features", "F", nil, "Features to enable")
	cmd.Flags().BoolVar(&buildNoDefaultFeatures, "no-default-features", false, "Do not enable default features")
	cmd.Flags().BoolVar(&buildAllFeatures, "all-features", false, "Enable every feature")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := loadSettings(cmd)
	name := args[0]

	builder := cargo.Binary(name)
	selector := "--bin " + name
	if buildExample {
		builder = cargo.Example(name)
		selector = "--example " + name
	}

	builder.
		Workspace(cfg.Workspace).
		CargoPath(cfg.CargoPath).
		Release(cfg.Release).
		Logger(log.Logger)
	if cfg.TargetDir != "" {
		builder.TargetDir(cfg.TargetDir)
	}
	if buildPackage != "" {
		builder.Package(cargo.PackageName(buildPackage))
	}
	if spec, ok := featureSpec(buildAllFeatures, buildNoDefaultFeatures, buildFeatures); ok {
		builder.Features(spec)
	}

	diags, wg := drainDiagnostics(cmd.ErrOrStderr())
	builder.Diagnostics(diags)

	start := time.Now()
	artifact, err := builder.Build(cmd.Context())
	close(diags)
	wg.Wait()

	event := telemetry.Event{
		Subcommand:   "build",
		Selector:     selector,
		Duration:     time.Since(start),
		Success:      err == nil,
		FailureClass: failureClass(err),
	}
	if err == nil {
		event.ArtifactCount = 1
	}
	recordOutcome(cfg, event)

	if err != nil {
		return err
	}

	renderArtifact(cmd.OutOrStdout(), newTheme(), artifact)
	return nil
}

// featureSpec translates the feature flag combination into a spec. The
// second return is false when no feature flag was given at all, so
// cargo's defaults apply.
func featureSpec(all, noDefault bool, features []string) (cargo.FeatureSpec, bool) {
	switch {
	case all:
		return cargo.AllFeatures(), true
	case noDefault:
		return cargo.FeaturesNoDefault(features...), true
	case len(features) > 0:
		return cargo.Features(features...), true
	default:
		return cargo.FeatureSpec{}, false
	}
}
