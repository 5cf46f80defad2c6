package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stevedore-go/stevedore/cargo"
	"github.com/stevedore-go/stevedore/internal/telemetry"
)

// Flags for 'tests' command
var (
	testsExact             bool
	testsLib               bool
	testsBin               string
	testsBins              bool
	testsTest              string
	testsAllTests          bool
	testsExample           string
	testsExamples          bool
	testsDoc               bool
	testsPackage           string
	testsFeatures          []string
	testsNoDefaultFeatures bool
	testsAllFeatures       bool
)

func newTestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tests [filter]",
		Short: "Compile test executables and list the tests inside them",
		Long: `Compiles the selected class of test executables without running them,
then asks each built executable which tests and benches it contains.
An optional filter narrows the listing by substring, or by exact name
with --exact.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTests,
	}

	cmd.Flags().BoolVar(&testsExact, "exact", false, "Match the filter exactly instead of by substring")
	cmd.Flags().BoolVar(&testsLib, "lib", false, "Library unit tests")
	cmd.Flags().StringVar(&testsBin, "bin", "", "Unit tests of the named binary")
	cmd.Flags().BoolVar(&testsBins, "bins", false, "Unit tests of every binary")
	cmd.Flags().StringVar(&testsTest, "test", "", "The named integration test (globs allowed)")
	cmd.Flags().BoolVar(&testsAllTests, "tests", false, "Every integration test")
	cmd.Flags().StringVar(&testsExample, "example", "", "Unit tests of the named example")
	cmd.Flags().BoolVar(&testsExamples, "examples", false, "Unit tests of every example")
	cmd.Flags().BoolVar(&testsDoc, "doc", false, "Documentation tests")
	cmd.Flags().Bool("release", false, "Build with optimizations")
	cmd.Flags().StringVarP(&testsPackage, "package", "p", "", "Package to build tests for")
	cmd.Flags().StringSliceVarP(&testsFeatures, "features", "F", nil, "Features to enable")
	cmd.Flags().BoolVar(&testsNoDefaultFeatures, "no-default-features", false, "Do not enable default features")
	cmd.Flags().BoolVar(&testsAllFeatures, "all-features", false, "Enable every feature")

	return cmd
}

func runTests(cmd *cobra.Command, args []string) error {
	cfg := loadSettings(cmd)

	name := cargo.AnyName()
	if len(args) == 1 {
		if testsExact {
			name = cargo.ExactName(args[0])
		} else {
			name = cargo.SubstringName(args[0])
		}
	}

	testType, selector, err := typeSpecFromFlags()
	if err != nil {
		return err
	}

	builder := cargo.Tests(name, testType).
		Workspace(cfg.Workspace).
		CargoPath(cfg.CargoPath).
		Release(cfg.Release).
		Logger(log.Logger)
	if cfg.TargetDir != "" {
		builder.TargetDir(cfg.TargetDir)
	}
	if testsPackage != "" {
		builder.Package(cargo.PackageName(testsPackage))
	}
	if spec, ok := featureSpec(testsAllFeatures, testsNoDefaultFeatures, testsFeatures); ok {
		builder.Features(spec)
	}

	diags, wg := drainDiagnostics(cmd.ErrOrStderr())
	builder.Diagnostics(diags)

	start := time.Now()
	artifacts, buildErr := builder.Build(cmd.Context())
	close(diags)
	wg.Wait()

	recordOutcome(cfg, telemetry.Event{
		Subcommand:    "tests",
		Selector:      selector,
		Duration:      time.Since(start),
		Success:       buildErr == nil,
		ArtifactCount: len(artifacts),
		FailureClass:  failureClass(buildErr),
	})

	if buildErr != nil {
		return buildErr
	}

	renderTestArtifacts(cmd.OutOrStdout(), newTheme(), artifacts)
	return nil
}

// typeSpecFromFlags maps the selector flags onto a type spec, rejecting
// combinations cargo would also reject.
func typeSpecFromFlags() (cargo.TypeSpec, string, error) {
	type choice struct {
		set      bool
		spec     cargo.TypeSpec
		selector string
	}
	choices := []choice{
		{testsLib, cargo.LibTests(), "--lib"},
		{testsBin != "", cargo.BinTests(testsBin), "--bin " + testsBin},
		{testsBins, cargo.AllBinTests(), "--bins"},
		{testsTest != "", cargo.IntegrationTests(testsTest), "--test " + testsTest},
		{testsAllTests, cargo.AllIntegrationTests(), "--tests"},
		{testsExample != "", cargo.ExampleTests(testsExample), "--example " + testsExample},
		{testsExamples, cargo.AllExampleTests(), "--examples"},
		{testsDoc, cargo.DocTests(), "--doc"},
	}

	var picked *choice
	for i := range choices {
		if !choices[i].set {
			continue
		}
		if picked != nil {
			return cargo.TypeSpec{}, "", fmt.Errorf("flags %s and %s are mutually exclusive", picked.selector, choices[i].selector)
		}
		picked = &choices[i]
	}
	if picked == nil {
		return cargo.AllTests(), "all", nil
	}
	return picked.spec, picked.selector, nil
}
