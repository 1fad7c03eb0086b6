package build

import (
	"fmt"
	"strings"
	"time"
)

// BuildStatus captures the lifecycle states of a build session.
type BuildStatus string

// Supported build statuses.
const (
	BuildStatusIdle      BuildStatus = "idle"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusCompleted BuildStatus = "completed"
	BuildStatusFailed    BuildStatus = "failed"
)

// Terminal reports whether the status ends a session.
func (s BuildStatus) Terminal() bool {
	return s == BuildStatusCompleted || s == BuildStatusFailed
}

// BootMode forces the firmware type the image is prepared for.
type BootMode string

const (
	BootModeBIOS BootMode = "BIOS"
	BootModeUEFI BootMode = "UEFI"
)

// SupportedBootModes returns every boot mode accepted by the image tool.
func SupportedBootModes() []BootMode {
	return []BootMode{BootModeBIOS, BootModeUEFI}
}

// IsValid reports whether m is a supported boot mode.
func (m BootMode) IsValid() bool {
	switch m {
	case BootModeBIOS, BootModeUEFI:
		return true
	default:
		return false
	}
}

func (m BootMode) String() string {
	return string(m)
}

// ParseBootMode returns the canonical BootMode for value, ignoring case.
func ParseBootMode(value string) (BootMode, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(BootModeBIOS), "LEGACY":
		return BootModeBIOS, nil
	case string(BootModeUEFI), "EFI":
		return BootModeUEFI, nil
	default:
		return "", fmt.Errorf("unsupported boot mode %q (supported: BIOS, UEFI)", value)
	}
}

// BuildRequest holds the operator inputs for a single image build.
// BootModeOverride is nil unless the operator explicitly opted in.
type BuildRequest struct {
	SourcePath       string
	WorkingDirectory string
	BootModeOverride *BootMode
}

// WithBootMode returns a copy of r that forces the given boot mode.
func (r BuildRequest) WithBootMode(mode BootMode) BuildRequest {
	r.BootModeOverride = &mode
	return r
}

// BuildSession is one attempt to run the image tool for a BuildRequest.
type BuildSession struct {
	ID         string
	Request    BuildRequest
	Status     BuildStatus
	Log        []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s BuildSession) Clone() BuildSession {
	out := s
	if s.Log != nil {
		out.Log = append([]string(nil), s.Log...)
	}
	if s.Request.BootModeOverride != nil {
		mode := *s.Request.BootModeOverride
		out.Request.BootModeOverride = &mode
	}
	return out
}
