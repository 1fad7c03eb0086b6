//go:build !unix && !windows

package elevate

import "errors"

const platformSupported = false

func platformIsElevated() (bool, error) {
	return true, nil
}

func platformRelaunch(string, []string) error {
	return errors.New("elevation is not supported on this platform")
}
