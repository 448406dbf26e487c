package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("decoded %d frames", 3)
	if len(got) != 1 || got[0] != "decoded 3 frames" {
		t.Fatalf("custom logger got %q", got)
	}

	SetLogger(nil)
	Logf("dropped")
	if len(got) != 1 {
		t.Errorf("no-op logger should not have reached the previous logger, got %q", got)
	}
}

func TestDebugf(t *testing.T) {
	original := Logf
	wasDebug := DebugEnabled()
	defer func() {
		Logf = original
		SetDebug(wasDebug)
	}()

	calls := 0
	SetLogger(func(string, ...interface{}) { calls++ })

	SetDebug(false)
	Debugf("frame %d dropped", 1)
	if calls != 0 {
		t.Errorf("Debugf logged with debug disabled")
	}

	SetDebug(true)
	if !DebugEnabled() {
		t.Fatal("DebugEnabled() = false after SetDebug(true)")
	}
	Debugf("frame %d dropped", 2)
	if calls != 1 {
		t.Errorf("Debugf calls = %d, want 1", calls)
	}
}
