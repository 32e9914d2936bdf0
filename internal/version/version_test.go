package version

import (
	"strings"
	"testing"
)

func TestString_DefaultBuild(t *testing.T) {
	if !strings.HasPrefix(String(), "quilldocs ") {
		t.Errorf("unexpected version line: %q", String())
	}
	if Version == "" {
		t.Error("Version should not be empty")
	}
}
