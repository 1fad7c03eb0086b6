//go:build windows

package elevate

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

const platformSupported = true

func platformIsElevated() (bool, error) {
	return windows.GetCurrentProcessToken().IsElevated(), nil
}

// platformRelaunch asks the shell to start exe with the "runas" verb, which
// shows the consent prompt. It does not wait for the elevated instance.
func platformRelaunch(exe string, args []string) error {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	file, err := windows.UTF16PtrFromString(exe)
	if err != nil {
		return fmt.Errorf("encode executable path: %w", err)
	}
	params, err := windows.UTF16PtrFromString(windows.ComposeCommandLine(args))
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}

	var dir *uint16
	if cwd, err := os.Getwd(); err == nil {
		if dir, err = windows.UTF16PtrFromString(cwd); err != nil {
			dir = nil
		}
	}

	if err := windows.ShellExecute(0, verb, file, params, dir, windows.SW_NORMAL); err != nil {
		return fmt.Errorf("shell execute runas: %w", err)
	}
	return nil
}
