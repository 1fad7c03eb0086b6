package command

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cochaviz/exactiso/internal/build"
)

// ScriptName is the image tool invoked for every build. It must live in the
// application working directory.
const ScriptName = "CreateDriveISO.ps1"

// DefaultInterpreter returns the PowerShell executable name for the host OS.
func DefaultInterpreter() string {
	if runtime.GOOS == "windows" {
		return "pwsh.exe"
	}
	return "pwsh"
}

// Invocation describes an external process ready to be started.
type Invocation struct {
	Program string
	Args    []string
	Dir     string

	// quoted marks argument positions that hold paths. They are rendered
	// double-quoted by CommandLine.
	quoted map[int]bool
}

// CommandLine renders the invocation the way a shell would be handed it, with
// every path argument double-quoted. It is meant for display only; Args is
// what gets executed.
func (inv Invocation) CommandLine() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Program)
	for i, arg := range inv.Args {
		if inv.quoted[i] {
			parts = append(parts, `"`+arg+`"`)
			continue
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Builder assembles image tool invocations from build requests.
type Builder struct {
	// Interpreter is the PowerShell executable. Empty means DefaultInterpreter.
	Interpreter string
	// BaseDir is the directory holding ScriptName.
	BaseDir string
}

// Build returns the invocation for req. It performs no I/O.
func (b Builder) Build(req build.BuildRequest) Invocation {
	program := strings.TrimSpace(b.Interpreter)
	if program == "" {
		program = DefaultInterpreter()
	}

	inv := Invocation{
		Program: program,
		Dir:     b.BaseDir,
		quoted:  map[int]bool{},
	}

	inv.add("-ExecutionPolicy", "Bypass")
	inv.addPath("-File", filepath.Join(b.BaseDir, ScriptName))
	inv.addPath("-SourceDrive", req.SourcePath)
	inv.addPath("-WorkingDir", req.WorkingDirectory)

	if req.BootModeOverride != nil {
		inv.add("-ForceBootMode", req.BootModeOverride.String())
	}

	return inv
}

func (inv *Invocation) add(args ...string) {
	inv.Args = append(inv.Args, args...)
}

func (inv *Invocation) addPath(flag, path string) {
	inv.Args = append(inv.Args, flag)
	inv.quoted[len(inv.Args)] = true
	inv.Args = append(inv.Args, path)
}
