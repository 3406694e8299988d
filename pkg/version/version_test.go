package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if info[key] == "" {
			t.Errorf("missing %s", key)
		}
	}
	if !strings.Contains(String(), BuildVersion) {
		t.Errorf("String() = %q does not mention the version", String())
	}
}
