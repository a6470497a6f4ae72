package compileerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "ParseError", ParseError.String())
	assert.Equal(t, "BackendCompileFailure", BackendCompileFailure.String())
	assert.Equal(t, "Unknown", Kind(0).String())
}

func TestError_Message(t *testing.T) {
	testCases := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "fragment with line and column",
			err:      New(ParseError, Location{FragmentID: "tint", Line: 3, Column: 7}, "expected %s", "identifier"),
			expected: "ParseError at tint:3:7: expected identifier",
		},
		{
			name: "include chain",
			err: New(UnresolvedInclude, Location{
				FragmentID:   "tint",
				Origin:       "Shared/A.ush",
				IncludeChain: []string{"Shared/A.ush", "Missing.ush"},
			}, "include %q not found", "Missing.ush"),
			expected: `UnresolvedInclude at tint in Shared/A.ush (via Shared/A.ush -> Missing.ush): include "Missing.ush" not found`,
		},
		{
			name:     "no location",
			err:      New(TypeMismatch, Location{}, "slot 0"),
			expected: "TypeMismatch: slot 0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestAsAndIsKind(t *testing.T) {
	base := New(CycleDetected, Location{FragmentID: "f"}, "a -> b -> a")
	wrapped := fmt.Errorf("compile failed: %w", base)

	ce, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, base, ce)
	assert.True(t, IsKind(wrapped, CycleDetected))
	assert.False(t, IsKind(wrapped, ParseError))
	assert.False(t, IsKind(fmt.Errorf("plain"), CycleDetected))
}

func TestWithFragment_DoesNotMutateOriginal(t *testing.T) {
	base := New(UnresolvedInclude, Location{IncludeChain: []string{"a.ush"}}, "missing")
	attributed := base.WithFragment("tint")

	assert.Equal(t, "", base.Location.FragmentID)
	assert.Equal(t, "tint", attributed.Location.FragmentID)
	attributed.Location.IncludeChain[0] = "changed"
	assert.Equal(t, "a.ush", base.Location.IncludeChain[0])
}

func TestFormatWithContext(t *testing.T) {
	source := "input float3 Color;\ninput flaot Scale;\n"
	err := New(ParseError, Location{FragmentID: "tint", Line: 2, Column: 7}, "unknown type %q", "flaot")

	out := err.FormatWithContext(source)
	assert.Contains(t, out, "  2| input flaot Scale;")
	assert.Contains(t, out, "   |       ^")

	assert.Equal(t, err.Error(), err.FormatWithContext(""))
}
