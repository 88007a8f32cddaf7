//go:build !windows

package main

import "testing"

func TestHandleServiceCommandNoArgs(t *testing.T) {
	if HandleServiceCommand(nil) {
		t.Error("HandleServiceCommand should return false for empty args")
	}
}

func TestHandleServiceCommandIgnoredOnNonWindows(t *testing.T) {
	for _, cmd := range []string{"install", "uninstall", "start", "stop", "status", "help"} {
		if HandleServiceCommand([]string{cmd}) {
			t.Errorf("HandleServiceCommand(%q) should return false on non-Windows", cmd)
		}
	}
}

func TestRunAsServiceInteractive(t *testing.T) {
	ranAsService, err := RunAsService()
	if err != nil {
		t.Errorf("RunAsService returned error: %v", err)
	}
	if ranAsService {
		t.Error("RunAsService should return false on non-Windows")
	}
}
