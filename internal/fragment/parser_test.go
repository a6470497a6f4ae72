package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fragc/internal/compileerr"
)

func TestParse_SingleLineDeclarations(t *testing.T) {
	src := `input float3 Color; output float3 Result; #include "Utils.ush"` + "\n" +
		"Result = Brighten(Color);\n"

	frag, err := Parse("tint", src)
	require.NoError(t, err)

	require.Len(t, frag.Inputs, 1)
	assert.Equal(t, Input{Name: "Color", Type: "float3", Line: 1}, frag.Inputs[0])
	require.Len(t, frag.Outputs, 1)
	assert.Equal(t, Output{Name: "Result", Type: "float3", Line: 1}, frag.Outputs[0])
	require.Len(t, frag.Includes, 1)
	assert.Equal(t, "Utils.ush", frag.Includes[0].Path)
	assert.False(t, frag.Includes[0].Resolved)
	assert.Equal(t, 43, frag.Includes[0].Column)

	assert.Equal(t, "Result = Brighten(Color);", frag.Body)
	assert.Equal(t, []int{2}, frag.BodyLines)
}

func TestParse_MultiLine(t *testing.T) {
	src := "// header comment\n" +
		"input float Scale = 2.0;\n" +
		"input vec3 Tint = vec3(1, 0.5, 0)\n" +
		"output float4 Out;   // trailing\n" +
		"#include <Common/Math.ush>\n" +
		"#define GAIN 4\n" +
		"\n" +
		"Out = float4(Tint * Scale * GAIN, 1);\r\n"

	frag, err := Parse("f", src)
	require.NoError(t, err)

	assert.Equal(t, []Input{
		{Name: "Scale", Type: "float", Default: "2.0", Line: 2},
		{Name: "Tint", Type: "vec3", Default: "vec3(1, 0.5, 0)", Line: 3},
	}, frag.Inputs)
	assert.Equal(t, []Output{{Name: "Out", Type: "float4", Line: 4}}, frag.Outputs)

	require.Len(t, frag.Includes, 1)
	assert.Equal(t, Directive{Path: "Common/Math.ush", Line: 5, Column: 1, Angled: true}, frag.Includes[0])

	assert.Equal(t, []Define{{Name: "GAIN", Value: "4", Line: 6}}, frag.Defines)

	assert.Equal(t, "// header comment\n#define GAIN 4\n\nOut = float4(Tint * Scale * GAIN, 1);", frag.Body)
	assert.Equal(t, []int{1, 6, 7, 8}, frag.BodyLines)
}

func TestParse_PreservesDeclarationOrder(t *testing.T) {
	frag, err := Parse("f", "input float C;\ninput float A;\ninput float B;\n")
	require.NoError(t, err)

	var names []string
	for _, in := range frag.Inputs {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{"C", "A", "B"}, names)
}

func TestParse_KeywordPrefixIsBodyText(t *testing.T) {
	frag, err := Parse("f", "inputs = 3;\noutputColor = 1;\n#includes\n")
	require.NoError(t, err)

	assert.Empty(t, frag.Inputs)
	assert.Empty(t, frag.Outputs)
	assert.Empty(t, frag.Includes)
	assert.Equal(t, "inputs = 3;\noutputColor = 1;\n#includes", frag.Body)
}

func TestParse_BlockCommentsAreBody(t *testing.T) {
	src := "/*\ninput float Hidden;\n*/\ninput float Shown;\n"
	frag, err := Parse("f", src)
	require.NoError(t, err)

	require.Len(t, frag.Inputs, 1)
	assert.Equal(t, "Shown", frag.Inputs[0].Name)
	assert.Equal(t, "/*\ninput float Hidden;\n*/", frag.Body)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		kind    compileerr.Kind
		line    int
		column  int
		message string
	}{
		{
			name:    "unknown type",
			src:     "input float Ok;\ninput flaot Scale;",
			kind:    compileerr.ParseError,
			line:    2,
			column:  7,
			message: `unknown type "flaot"`,
		},
		{
			name:    "missing name",
			src:     "input float3 ;",
			kind:    compileerr.ParseError,
			line:    1,
			column:  14,
			message: `expected a name after type "float3"`,
		},
		{
			name:    "invalid identifier",
			src:     "output float 3d;",
			kind:    compileerr.ParseError,
			line:    1,
			column:  14,
			message: `invalid identifier "3d"`,
		},
		{
			name:    "missing semicolon",
			src:     "input float A B;",
			kind:    compileerr.ParseError,
			line:    1,
			column:  15,
			message: `expected ';' after declaration of "A"`,
		},
		{
			name:    "output default",
			src:     "output float A = 1;",
			kind:    compileerr.ParseError,
			line:    1,
			column:  16,
			message: `output "A" cannot have a default value`,
		},
		{
			name:    "texture output",
			src:     "output Texture2D Tex;",
			kind:    compileerr.ParseError,
			line:    1,
			column:  8,
			message: "invalid type for an output: Texture2D",
		},
		{
			name:    "bad default",
			src:     "input bool Flag = 1;",
			kind:    compileerr.ParseError,
			line:    1,
			column:  19,
			message: "Flag: invalid default value for type bool: 1",
		},
		{
			name:    "unterminated include",
			src:     `#include "Utils.ush`,
			kind:    compileerr.ParseError,
			line:    1,
			column:  10,
			message: "unterminated include path",
		},
		{
			name:    "unquoted include",
			src:     "#include Utils.ush",
			kind:    compileerr.ParseError,
			line:    1,
			column:  10,
			message: `include path must be quoted, got "Utils.ush"`,
		},
		{
			name:    "text after include",
			src:     `#include "a.ush" x = 1;`,
			kind:    compileerr.ParseError,
			line:    1,
			column:  18,
			message: `unexpected text after include directive: "x = 1;"`,
		},
		{
			name:    "duplicate input",
			src:     "input float A;\ninput float3 A;",
			kind:    compileerr.DuplicateSymbol,
			line:    2,
			column:  14,
			message: `input "A" already declared as input on line 1`,
		},
		{
			name:    "input and output share a name",
			src:     "input float A;\noutput float A;",
			kind:    compileerr.DuplicateSymbol,
			line:    2,
			column:  14,
			message: `output "A" already declared as input on line 1`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("frag", tc.src)
			require.Error(t, err)

			ce, ok := compileerr.As(err)
			require.True(t, ok, "expected a *compileerr.Error, got %T", err)
			assert.Equal(t, tc.kind, ce.Kind)
			assert.Equal(t, "frag", ce.Location.FragmentID)
			assert.Equal(t, tc.line, ce.Location.Line)
			assert.Equal(t, tc.column, ce.Location.Column)
			assert.Equal(t, tc.message, ce.Message)
		})
	}
}

func TestParse_ErrorOffset(t *testing.T) {
	_, err := Parse("frag", "input float Ok;\r\ninput flaot Scale;")
	ce, ok := compileerr.As(err)
	require.True(t, ok)
	// CRLF is folded to LF, so the second line starts at byte 16.
	assert.Equal(t, 16+6, ce.Location.Offset)
}

func TestScanIncludes(t *testing.T) {
	src := "#include \"../Common.ush\"\n" +
		"input float NotADeclaration;\n" +
		"float Helper() { return 1; }\n"

	scan, err := ScanIncludes("Lib/Helpers.ush", src)
	require.NoError(t, err)

	require.Len(t, scan.Includes, 1)
	assert.Equal(t, "../Common.ush", scan.Includes[0].Path)
	assert.Equal(t, "input float NotADeclaration;\nfloat Helper() { return 1; }", scan.Body)
	assert.Equal(t, []int{2, 3}, scan.BodyLines)
}

func TestScanIncludes_ErrorNamesOrigin(t *testing.T) {
	_, err := ScanIncludes("Lib/Helpers.ush", "\n#include Helpers\n")

	ce, ok := compileerr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Lib/Helpers.ush", ce.Location.Origin)
	assert.Empty(t, ce.Location.FragmentID)
	assert.Equal(t, 2, ce.Location.Line)
}
