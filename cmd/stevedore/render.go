package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/stevedore-go/stevedore/cargo"
)

// theme holds the styles for human-facing output. The zero value renders
// everything unstyled, which is what non-TTY and --no-color get.
type theme struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
}

func newTheme() theme {
	if !stdoutIsTTY() || flagNoColor || os.Getenv("NO_COLOR") != "" {
		plain := lipgloss.NewStyle()
		return theme{Success: plain, Error: plain, Muted: plain, Bold: plain}
	}
	return theme{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),  // green
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // red
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")), // gray
		Bold:    lipgloss.NewStyle().Bold(true),
	}
}

func stdoutIsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func stderrIsTTY() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// drainDiagnostics starts printing compiler messages as they arrive.
// Close the returned channel when the build finishes, then wait.
func drainDiagnostics(w io.Writer) (chan cargo.Diagnostic, *sync.WaitGroup) {
	ch := make(chan cargo.Diagnostic)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for d := range ch {
			fmt.Fprint(w, d.Message.Rendered)
		}
	}()
	return ch, &wg
}

// renderArtifact prints one built executable.
func renderArtifact(w io.Writer, th theme, a *cargo.ExecutableArtifact) {
	profile := "debug"
	if a.Profile.OptLevel != "0" {
		profile = "release"
	}
	fmt.Fprintf(w, "%s %s %s\n",
		th.Success.Render("built"),
		th.Bold.Render(a.Target.Name),
		th.Muted.Render("("+profile+")"))
	fmt.Fprintf(w, "  %s\n", a.Executable)
	if len(a.Features) > 0 {
		fmt.Fprintf(w, "  %s %s\n", th.Muted.Render("features:"), strings.Join(a.Features, ", "))
	}
}

// renderTestArtifacts prints each test executable with its discovered
// tests in an aligned table.
func renderTestArtifacts(w io.Writer, th theme, artifacts []cargo.TestArtifact) {
	if len(artifacts) == 0 {
		fmt.Fprintln(w, th.Muted.Render("no matching test artifacts"))
		return
	}

	nameWidth := 0
	for _, art := range artifacts {
		for _, fn := range art.Tests {
			if w := runewidth.StringWidth(fn.Name); w > nameWidth {
				nameWidth = w
			}
		}
	}

	for _, art := range artifacts {
		fmt.Fprintf(w, "%s %s\n",
			th.Success.Render(art.Artifact.Target.Name),
			th.Muted.Render(art.Artifact.Executable))
		if len(art.Tests) == 0 {
			fmt.Fprintf(w, "  %s\n", th.Muted.Render("(no tests matched)"))
			continue
		}
		for _, fn := range art.Tests {
			fmt.Fprintf(w, "  %s  %s\n",
				runewidth.FillRight(fn.Name, nameWidth),
				th.Muted.Render(fn.Kind.String()))
		}
		if runArgs := art.RunArgs(); len(runArgs) > 0 {
			hint := art.Artifact.Executable + " " + strings.Join(runArgs, " ")
			fmt.Fprintf(w, "  %s %s\n", th.Muted.Render("rerun:"), hint)
		}
	}
}

// failureClass names an error's category for telemetry. Empty for nil.
func failureClass(err error) string {
	if err == nil {
		return ""
	}

	var (
		notFound    *cargo.NotFoundError
		pkgNotFound *cargo.PackageNotFoundError
		cargoErr    *cargo.CargoError
		spawnErr    *cargo.SpawnError
		invariant   *cargo.InvariantError
		listErr     *cargo.ListError
		parseErr    *cargo.ParseError
	)
	switch {
	case errors.As(err, &notFound):
		return "not-found"
	case errors.As(err, &pkgNotFound):
		return "package-not-found"
	case errors.As(err, &cargoErr):
		return "cargo"
	case errors.As(err, &spawnErr):
		return "spawn"
	case errors.As(err, &invariant):
		return "invariant"
	case errors.As(err, &listErr):
		return "list"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "other"
	}
}
