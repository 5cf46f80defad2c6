package cargo

// Target describes the buildable unit an artifact was compiled for, as
// reported by cargo's structured output.
type Target struct {
	Name       string   `json:"name"`
	Kind       []string `json:"kind"`
	CrateTypes []string `json:"crate_types"`
	SrcPath    string   `json:"src_path"`
}

// Profile describes the compilation profile an artifact was built with.
type Profile struct {
	OptLevel        string `json:"opt_level"`
	Debuginfo       *int   `json:"debuginfo"`
	DebugAssertions bool   `json:"debug_assertions"`
	OverflowChecks  bool   `json:"overflow_checks"`
	Test            bool   `json:"test"`
}

// Artifact is one compiled output reported on cargo's stdout stream.
// Executable is empty for outputs that are not runnable (e.g. rlibs).
type Artifact struct {
	PackageID  string   `json:"package_id"`
	Target     Target   `json:"target"`
	Profile    Profile  `json:"profile"`
	Features   []string `json:"features"`
	Filenames  []string `json:"filenames"`
	Executable string   `json:"executable"`
	Fresh      bool     `json:"fresh"`
}

// ExecutableArtifact is an [Artifact] that is guaranteed to carry a
// runnable file path. Artifacts without one are dropped before they reach
// a caller.
type ExecutableArtifact struct {
	// PackageID identifies the package this artifact belongs to.
	PackageID string
	// Target is the target this artifact was compiled for.
	Target Target
	// Profile is the profile this artifact was compiled with.
	Profile Profile
	// Features lists the features that were enabled for this artifact.
	Features []string
	// Filenames holds the full paths to every generated file
	// (e.g. the binary and separate debug info).
	Filenames []string
	// Executable is the path to the runnable file.
	Executable string
	// Fresh reports whether cargo reused a previously built output.
	Fresh bool
}

// executableArtifact narrows an Artifact, reporting false when it carries
// no runnable path.
func executableArtifact(a Artifact) (ExecutableArtifact, bool) {
	if a.Executable == "" {
		return ExecutableArtifact{}, false
	}
	return ExecutableArtifact{
		PackageID:  a.PackageID,
		Target:     a.Target,
		Profile:    a.Profile,
		Features:   a.Features,
		Filenames:  a.Filenames,
		Executable: a.Executable,
		Fresh:      a.Fresh,
	}, true
}
