package core

import "testing"

func TestSetLogLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", " warn ", "error"} {
		if err := SetLogLevel(name); err != nil {
			t.Errorf("SetLogLevel(%q) = %v", name, err)
		}
	}
	if err := SetLogLevel("verbose"); err == nil {
		t.Error("SetLogLevel(verbose) succeeded")
	}
	_ = SetLogLevel("debug")
}
