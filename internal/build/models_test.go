package build

import "testing"

func TestParseBootMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    BootMode
		wantErr bool
	}{
		{input: "BIOS", want: BootModeBIOS},
		{input: "bios", want: BootModeBIOS},
		{input: " legacy ", want: BootModeBIOS},
		{input: "UEFI", want: BootModeUEFI},
		{input: "uefi", want: BootModeUEFI},
		{input: "efi", want: BootModeUEFI},
		{input: "", wantErr: true},
		{input: "coreboot", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseBootMode(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseBootMode(%q) expected error, got %q", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseBootMode(%q) error = %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseBootMode(%q) = %q, want %q", tc.input, got, tc.want)
		}
		if !got.IsValid() {
			t.Fatalf("parsed boot mode %q reported invalid", got)
		}
	}
}

func TestBuildSessionCloneIsIndependent(t *testing.T) {
	t.Parallel()

	req := BuildRequest{SourcePath: "/src", WorkingDirectory: "/work"}.WithBootMode(BootModeUEFI)
	original := BuildSession{
		ID:      "session-1",
		Request: req,
		Status:  BuildStatusRunning,
		Log:     []string{"one", "two"},
	}

	clone := original.Clone()
	clone.Log[0] = "changed"
	*clone.Request.BootModeOverride = BootModeBIOS

	if original.Log[0] != "one" {
		t.Fatalf("clone shares log storage with original")
	}
	if *original.Request.BootModeOverride != BootModeUEFI {
		t.Fatalf("clone shares boot mode override with original")
	}
}

func TestBuildStatusTerminal(t *testing.T) {
	t.Parallel()

	for status, want := range map[BuildStatus]bool{
		BuildStatusIdle:      false,
		BuildStatusRunning:   false,
		BuildStatusCompleted: true,
		BuildStatusFailed:    true,
	} {
		if got := status.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %t, want %t", status, got, want)
		}
	}
}
