package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertFragmentBuilt checks the log output to confirm that a fragment was
// compiled and written. It abstracts the log line format, making tests more
// resilient to internal refactoring.
func AssertFragmentBuilt(t *testing.T, logOutput, fragmentID string) {
	t.Helper()

	expectedLogSubstring := fmt.Sprintf("fragment=%s", fragmentID)
	for _, line := range strings.Split(logOutput, "\n") {
		if strings.Contains(line, "Fragment built.") && strings.Contains(line, expectedLogSubstring) {
			return
		}
	}
	require.Fail(t, "fragment not built",
		"expected log output for fragment '%s' was not found in logs:\n%s", fragmentID, logOutput)
}
