package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stevedore-go/stevedore/internal/config"
	"github.com/stevedore-go/stevedore/internal/telemetry"
	"github.com/stevedore-go/stevedore/internal/version"
)

// Persistent flags, merged with .stevedore.yaml in loadSettings.
var (
	flagCargoPath string
	flagWorkspace string
	flagTargetDir string
	flagLogLevel  string
	flagTelemetry bool
	flagNoColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "stevedore",
	Short: "Build cargo binaries and discover their tests",
	Long: `stevedore - drive cargo, get typed artifacts back

Compiles binaries, examples and test executables in a Rust workspace and
reports exactly what was built. Test executables are additionally asked
which tests and benches they contain.

Quick Start:
  stevedore build hello_world       Compile a binary, print its artifact
  stevedore tests --lib             Compile lib tests and list them
  stevedore tests --test 'int_*'    Compile matching integration tests`,
	Version: version.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagCargoPath, "cargo", "", "Path to the cargo executable (default \"cargo\" on PATH)")
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "C", "", "Directory to run cargo in")
	rootCmd.PersistentFlags().StringVar(&flagTargetDir, "target-dir", "", "Directory for cargo build output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagTelemetry, "telemetry", false, "Record invocation outcomes in a local database")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable styled output")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newTestsCmd())
	rootCmd.AddCommand(newStatsCmd())
}

// loadSettings merges the config file with the flags that were set on
// this invocation and installs the global logger.
func loadSettings(cmd *cobra.Command) *config.AppConfig {
	flags := config.CliFlags{
		CargoPath:    flagCargoPath,
		Workspace:    flagWorkspace,
		TargetDir:    flagTargetDir,
		LogLevel:     flagLogLevel,
		Telemetry:    flagTelemetry,
		TelemetrySet: cmd.Flags().Changed("telemetry"),
	}
	// Subcommands that build carry a local --release flag.
	if f := cmd.Flags().Lookup("release"); f != nil {
		flags.Release, _ = cmd.Flags().GetBool("release")
		flags.ReleaseSet = cmd.Flags().Changed("release")
	}
	cfg := config.MergeWithFlags(config.Load(), flags)
	setupLogging(cfg.LogLevel)
	return cfg
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: unknown log level %q, using %q\n", level, config.DefaultLogLevel)
		lvl, _ = zerolog.ParseLevel(config.DefaultLogLevel)
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen, NoColor: !stderrIsTTY() || flagNoColor}
	log.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// recordOutcome stores one invocation in the local telemetry database
// when telemetry is on. Recording failures only warn; they never fail
// the build itself.
func recordOutcome(cfg *config.AppConfig, event telemetry.Event) {
	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry unavailable")
		return
	}
	defer tel.Close()

	event.Timestamp = time.Now()
	if err := tel.Record(event); err != nil {
		log.Warn().Err(err).Msg("failed to record telemetry event")
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show recorded failure rates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadSettings(cmd)

			tel, err := telemetry.New(true)
			if err != nil {
				return err
			}
			defer tel.Close()

			for _, sub := range []string{"build", "tests"} {
				rate, err := tel.FailureRate(sub)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %.0f%% failed\n", sub, rate*100)
			}

			classes, err := tel.FailureClasses()
			if err != nil {
				return err
			}
			for class, count := range classes {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", class, count)
			}
			return nil
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
