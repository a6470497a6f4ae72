package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fragc/internal/codegen"
	"github.com/specialistvlad/fragc/internal/compileerr"
	"github.com/specialistvlad/fragc/internal/testutil"
)

const tintSource = `input float3 Color; output float3 Result; #include "Utils.ush"`

func tintRequest() Request {
	return Request{
		FragmentID: "tint",
		Source:     tintSource,
		Inputs:     []codegen.Slot{{Var: "MyColorVar"}},
		Outputs:    []codegen.Slot{{Var: "MyResultVar"}},
	}
}

func newCompiler(t *testing.T, files map[string]string, opts ...Option) (*Compiler, string) {
	t.Helper()
	root := testutil.TempTree(t, files)
	c, err := New(Config{IncludeSearchRoots: []string{root}}, opts...)
	require.NoError(t, err)
	return c, root
}

func TestCompile_EndToEnd(t *testing.T) {
	ctx := context.Background()
	c, _ := newCompiler(t, map[string]string{
		"Utils.ush": "float3 Boost(float3 c) { return c * 2; }\n",
	})

	unit, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)

	src := unit.Source
	boost := strings.Index(src, "float3 Boost(float3 c) { return c * 2; }")
	binding := strings.Index(src, "float3 Color = MyColorVar;")
	assignment := strings.Index(src, "MyResultVar = Result;")
	require.True(t, boost >= 0 && binding >= 0 && assignment >= 0, "missing pieces in:\n%s", src)
	assert.Less(t, boost, binding)
	assert.Less(t, binding, assignment)

	again, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)
	assert.Equal(t, src, again.Source)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Units)
}

func TestCompile_DeletedIncludeIsUnresolved(t *testing.T) {
	ctx := context.Background()
	c, root := newCompiler(t, map[string]string{
		"Utils.ush": "float3 Boost(float3 c) { return c * 2; }\n",
	})

	_, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)

	utils := filepath.Join(root, "Utils.ush")
	require.NoError(t, os.Remove(utils))
	affected, err := c.NotifyFileChanged(ctx, utils)
	require.NoError(t, err)
	assert.Equal(t, []string{"tint"}, affected)
	assert.True(t, c.IsStale("tint"))

	_, err = c.Compile(ctx, tintRequest())
	require.Error(t, err)
	ce, ok := compileerr.As(err)
	require.True(t, ok)
	assert.Equal(t, compileerr.UnresolvedInclude, ce.Kind)
	assert.Equal(t, "tint", ce.Location.FragmentID)
	assert.Contains(t, ce.Error(), "Utils.ush")
	assert.Contains(t, ce.Error(), "tint")

	// Recoverable: the file reappears.
	testutil.WriteFiles(t, root, map[string]string{"Utils.ush": "float3 Boost(float3 c) { return c; }\n"})
	unit, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)
	assert.Contains(t, unit.Source, "return c; }")
}

func TestNotifyFileChanged_OnlyDependentsInvalidated(t *testing.T) {
	ctx := context.Background()
	c, root := newCompiler(t, map[string]string{
		"Utils.ush": "float Utils;\n",
		"Other.ush": "float Other;\n",
	})

	other := Request{FragmentID: "other", Source: "#include \"Other.ush\"\nfloat x = 1;"}
	_, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)
	_, err = c.Compile(ctx, other)
	require.NoError(t, err)

	testutil.WriteFiles(t, root, map[string]string{"Utils.ush": "float Utils; float More;\n"})
	affected, err := c.NotifyFileChanged(ctx, filepath.Join(root, "Utils.ush"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tint"}, affected)

	before, err := c.Stats(ctx)
	require.NoError(t, err)

	_, err = c.Compile(ctx, other)
	require.NoError(t, err)
	after, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Hits+1, after.Hits, "unrelated fragment is a cache hit")

	unit, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)
	assert.Contains(t, unit.Source, "float More;")
	assert.False(t, c.IsStale("tint"))
}

func TestNotifyFileChanged_UnchangedContent(t *testing.T) {
	ctx := context.Background()
	c, root := newCompiler(t, map[string]string{"Utils.ush": "float Utils;\n"})

	_, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)

	affected, err := c.NotifyFileChanged(ctx, filepath.Join(root, "Utils.ush"))
	require.NoError(t, err)
	assert.Empty(t, affected)

	affected, err = c.NotifyFileChanged(ctx, filepath.Join(root, "Unrelated.txt"))
	require.NoError(t, err)
	assert.Empty(t, affected)
}

func TestNotifyFragmentEdited(t *testing.T) {
	ctx := context.Background()
	c, _ := newCompiler(t, map[string]string{"Utils.ush": "float Utils;\n"})

	_, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)
	require.NoError(t, c.SetFragmentDependencies(ctx, "wrapper", []string{"tint"}))

	edited := tintRequest()
	edited.Source += "\nResult = Color;"
	affected, err := c.NotifyFragmentEdited(ctx, "tint", edited.Source)
	require.NoError(t, err)
	assert.Equal(t, []string{"tint", "wrapper"}, affected)

	unit, err := c.Compile(ctx, edited)
	require.NoError(t, err)
	assert.Contains(t, unit.Source, "Result = Color;")
}

func TestNotifyFragmentEdited_WarmsMemoUnderSourcePath(t *testing.T) {
	ctx := context.Background()
	c, _ := newCompiler(t, map[string]string{"Utils.ush": "float Utils;\n"})

	req := tintRequest()
	req.SourcePath = "Fragments/tint.frag"
	_, err := c.Compile(ctx, req)
	require.NoError(t, err)

	req.Source += "\nResult = Color;"
	_, err = c.NotifyFragmentEdited(ctx, "tint", req.Source)
	require.NoError(t, err)

	_, err = c.Compile(ctx, req)
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ParseRuns, "the compile after the edit reuses the pre-parsed text")
	assert.Equal(t, 2, stats.Parses)
}

func TestParse_SharesMemoWithCompile(t *testing.T) {
	ctx := context.Background()
	c, _ := newCompiler(t, map[string]string{"Utils.ush": "float Utils;\n"})

	frag, err := c.Parse(tintRequest())
	require.NoError(t, err)
	require.Len(t, frag.Inputs, 1)
	assert.Equal(t, "Color", frag.Inputs[0].Name)

	_, err = c.Compile(ctx, tintRequest())
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ParseRuns)
}

func TestCompile_Errors(t *testing.T) {
	ctx := context.Background()
	c, _ := newCompiler(t, map[string]string{
		"a.ush": "#include \"b.ush\"",
		"b.ush": "#include \"a.ush\"",
	})

	testCases := []struct {
		name string
		req  Request
		kind compileerr.Kind
	}{
		{
			name: "cycle",
			req:  Request{FragmentID: "f", Source: "#include \"a.ush\""},
			kind: compileerr.CycleDetected,
		},
		{
			name: "duplicate input",
			req:  Request{FragmentID: "f", Source: "input float A;\ninput float A;"},
			kind: compileerr.DuplicateSymbol,
		},
		{
			name: "parse error",
			req:  Request{FragmentID: "f", Source: "input flaot A;"},
			kind: compileerr.ParseError,
		},
		{
			name: "type mismatch",
			req: Request{
				FragmentID: "f",
				Source:     "input float3 A;",
				Inputs:     []codegen.Slot{{Var: "v", Type: "float"}},
			},
			kind: compileerr.TypeMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			unit, err := c.Compile(ctx, tc.req)
			assert.Nil(t, unit)
			assert.True(t, compileerr.IsKind(err, tc.kind), "got %v", err)

			// Errors are stable across repeated requests.
			_, again := c.Compile(ctx, tc.req)
			assert.True(t, compileerr.IsKind(again, tc.kind))
		})
	}
}

func TestCompile_DuplicateIncludeIsError(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"A.ush":      "#include \"Common.ush\"",
		"Common.ush": "float Common;",
	})
	req := Request{FragmentID: "f", Source: "#include \"A.ush\"\n#include \"Common.ush\""}

	lenient, err := New(Config{IncludeSearchRoots: []string{root}})
	require.NoError(t, err)
	unit, err := lenient.Compile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(unit.Source, "float Common;"))

	strict, err := New(Config{IncludeSearchRoots: []string{root}, DuplicateIncludeIsError: true})
	require.NoError(t, err)
	_, err = strict.Compile(context.Background(), req)
	assert.True(t, compileerr.IsKind(err, compileerr.DuplicateSymbol))
}

func TestCompile_Concurrent(t *testing.T) {
	ctx := context.Background()
	c, _ := newCompiler(t, map[string]string{"Utils.ush": "float Utils;\n"})

	var wg sync.WaitGroup
	sources := make([]string, 32)
	for i := range sources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := tintRequest()
			if i%2 == 1 {
				req.FragmentID = "tint-copy"
			}
			unit, err := c.Compile(ctx, req)
			if assert.NoError(t, err) {
				sources[i] = unit.Source
			}
		}(i)
	}
	wg.Wait()

	for i := 2; i < len(sources); i++ {
		assert.Equal(t, sources[i%2], sources[i])
	}
	assert.NotEqual(t, sources[0], sources[1], "fragment id is part of the output")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Units)
}

func TestRemoveFragment(t *testing.T) {
	ctx := context.Background()
	c, _ := newCompiler(t, map[string]string{"Utils.ush": "float Utils;\n"})

	_, err := c.Compile(ctx, tintRequest())
	require.NoError(t, err)
	require.NoError(t, c.SetFragmentDependencies(ctx, "wrapper", []string{"tint"}))

	affected, err := c.RemoveFragment(ctx, "tint")
	require.NoError(t, err)
	assert.Equal(t, []string{"wrapper"}, affected)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Units)
}
