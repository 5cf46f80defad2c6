package cargo

import (
	"fmt"
	"regexp"
)

// SpawnError reports that the toolchain (or a built test binary) could not
// be run at all, as opposed to running and failing. Wraps the underlying
// I/O or exec error.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to run cargo: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// NotFoundError reports that cargo knows no target with the requested
// name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("`%s` not found", e.Name)
}

// PackageNotFoundError reports that the --package selector matched no
// packages.
type PackageNotFoundError struct {
	Spec string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package ID specification `%s` did not match any packages", e.Spec)
}

// CargoError is an unclassified build failure carrying cargo's stderr
// verbatim.
type CargoError struct {
	Stderr string
}

func (e *CargoError) Error() string {
	return "cargo build failed, stderr: " + e.Stderr
}

// InvariantError reports a breach of cargo's output contract: the
// structured stream produced a different number of executables than the
// request shape allows. This signals a toolchain change, not a caller
// mistake.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "cargo invariant violated: " + e.Reason
}

// stderrClass pairs an anchored extraction pattern with the error it
// yields. The table is ordered; first match wins.
type stderrClass struct {
	re   *regexp.Regexp
	wrap func(capture string) error
}

// The patterns are deliberately coupled to cargo's current message
// wording. If cargo rewords these errors, classification degrades to
// CargoError; it never misclassifies.
var stderrClasses = []stderrClass{
	{
		re:   regexp.MustCompile("error: no \\w+ target named `(.*?)`"),
		wrap: func(name string) error { return &NotFoundError{Name: name} },
	},
	{
		re:   regexp.MustCompile("error: package ID specification `(.*?)` did not match any packages"),
		wrap: func(spec string) error { return &PackageNotFoundError{Spec: spec} },
	},
}

// classifyStderr maps a failing build's stderr to a typed error. A stderr
// read failure maps to SpawnError, matching the "could not even talk to
// the toolchain" category.
func classifyStderr(stderr string, readErr error) error {
	if readErr != nil {
		return &SpawnError{Err: readErr}
	}
	for _, c := range stderrClasses {
		if m := c.re.FindStringSubmatch(stderr); m != nil {
			return c.wrap(m[1])
		}
	}
	return &CargoError{Stderr: stderr}
}
