// Package elevate makes sure the process holds the privileges needed to touch
// raw block devices. An unprivileged process is re-launched through the
// platform's elevation mechanism and the caller is told to exit.
package elevate

import (
	"log/slog"
	"os"
)

const (
	// SkipEnv disables elevation entirely when set to "1".
	SkipEnv = "EXACTISO_SKIP_ELEVATION"
	// MarkerEnv is set on relaunched instances so a refused elevation does
	// not turn into a relaunch loop.
	MarkerEnv = "EXACTISO_ELEVATED"
)

// Outcome is the result of the startup elevation check.
type Outcome int

const (
	// Privileged means the process already holds the required privileges.
	Privileged Outcome = iota
	// Relaunched means an elevated copy was requested; this instance must exit.
	Relaunched
	// Declined means this instance is itself a relaunch that still lacks
	// privileges; it must exit without trying again.
	Declined
	// Unsupported means the platform has no elevation concept.
	Unsupported
	// Skipped means elevation was disabled through SkipEnv.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Privileged:
		return "privileged"
	case Relaunched:
		return "relaunched"
	case Declined:
		return "declined"
	case Unsupported:
		return "unsupported"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ShouldExit reports whether the current instance must terminate.
func (o Outcome) ShouldExit() bool {
	return o == Relaunched || o == Declined
}

// Guard performs the elevation check. The zero value is not usable; use
// NewGuard for the host platform.
type Guard struct {
	Logger *slog.Logger

	// Supported reports whether the platform can elevate at all.
	Supported bool
	// IsElevated reports whether the current process is privileged.
	IsElevated func() (bool, error)
	// Relaunch starts exe with args under elevation. On some platforms a
	// successful call never returns.
	Relaunch func(exe string, args []string) error
	// Executable resolves the running binary.
	Executable func() (string, error)
	// Getenv reads the process environment.
	Getenv func(string) string
}

// NewGuard returns a Guard wired to the host platform.
func NewGuard(logger *slog.Logger) *Guard {
	return &Guard{
		Logger:     logger,
		Supported:  platformSupported,
		IsElevated: platformIsElevated,
		Relaunch:   platformRelaunch,
		Executable: os.Executable,
		Getenv:     os.Getenv,
	}
}

func (g *Guard) logger() *slog.Logger {
	if g != nil && g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Ensure checks the process privileges and relaunches when they are missing.
// args are the command-line arguments without the program name. A failed or
// refused relaunch is not an error: the outcome is still Relaunched and the
// caller exits, which is how the operator declining the prompt closes the
// application.
func (g *Guard) Ensure(args []string) (Outcome, error) {
	logger := g.logger().With("component", "elevate")

	if g.Getenv(SkipEnv) == "1" {
		logger.Debug("elevation disabled", "env", SkipEnv)
		return Skipped, nil
	}
	if !g.Supported {
		return Unsupported, nil
	}

	elevated, err := g.IsElevated()
	if err != nil {
		return Privileged, err
	}
	if elevated {
		logger.Debug("process already privileged")
		return Privileged, nil
	}

	if g.Getenv(MarkerEnv) == "1" {
		logger.Warn("relaunched instance is still unprivileged; giving up")
		return Declined, nil
	}

	exe, err := g.Executable()
	if err != nil {
		logger.Debug("cannot resolve executable for relaunch", "error", err)
		return Relaunched, nil
	}

	logger.Info("requesting elevated relaunch", "executable", exe)
	if err := g.Relaunch(exe, args); err != nil {
		logger.Debug("elevated relaunch did not start", "error", err)
	}
	return Relaunched, nil
}

// Ensure runs the host platform guard.
func Ensure(args []string, logger *slog.Logger) (Outcome, error) {
	return NewGuard(logger).Ensure(args)
}
