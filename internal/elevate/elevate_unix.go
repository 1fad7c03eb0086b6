//go:build unix

package elevate

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

const platformSupported = true

func platformIsElevated() (bool, error) {
	return unix.Geteuid() == 0, nil
}

// platformRelaunch replaces the current process image with sudo running the
// same executable. It only returns on failure.
func platformRelaunch(exe string, args []string) error {
	sudo, err := exec.LookPath("sudo")
	if err != nil {
		return fmt.Errorf("locate sudo: %w", err)
	}

	argv := append([]string{"sudo", "env", MarkerEnv + "=1", exe}, args...)
	if err := unix.Exec(sudo, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec sudo: %w", err)
	}
	return nil
}
