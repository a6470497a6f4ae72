package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/specialistvlad/fragc/internal/codegen"
	"github.com/specialistvlad/fragc/internal/ctxlog"
)

// ErrRejected is returned by a Backend that refused a unit. The diagnostics
// returned alongside it explain why.
var ErrRejected = errors.New("backend rejected unit")

// Backend is the external shader compiler a generated unit is handed to.
type Backend interface {
	// Compile compiles unit and returns the compiler's raw diagnostics. A
	// unit the compiler refuses yields an error wrapping ErrRejected; any
	// other error means the backend itself could not run.
	Compile(ctx context.Context, unit *codegen.CompiledUnit) (diagnostics string, err error)
}

func (c *Compiler) runBackend(ctx context.Context, unit *codegen.CompiledUnit) error {
	diagnostics, err := c.backend.Compile(ctx, unit)
	switch {
	case err == nil:
		if diagnostics != "" {
			ctxlog.FromContext(ctx).Warn("Backend reported diagnostics.",
				"fragment", unit.FragmentID, "diagnostics", diagnostics)
		}
		return nil
	case errors.Is(err, ErrRejected):
		return unit.BackendError(diagnostics)
	default:
		return fmt.Errorf("backend failed for fragment %q: %w", unit.FragmentID, err)
	}
}

// FilePlaceholder in an ExecBackend command is replaced by the path of the
// generated unit.
const FilePlaceholder = "{file}"

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// ExecBackend runs an external compiler command on each generated unit.
type ExecBackend struct {
	// Command is the argv template. If no argument contains FilePlaceholder
	// the unit path is appended.
	Command []string
	// Dir receives the generated files. A temporary directory is used per
	// call when empty.
	Dir string
	// Ext is the extension of generated files.
	Ext string
}

// NewExecBackend parses a whitespace-separated command template.
func NewExecBackend(command string) (*ExecBackend, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, fmt.Errorf("backend command cannot be empty")
	}
	return &ExecBackend{Command: args, Ext: ".usf"}, nil
}

// Compile implements Backend.
func (b *ExecBackend) Compile(ctx context.Context, unit *codegen.CompiledUnit) (string, error) {
	dir := b.Dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "fragc-")
		if err != nil {
			return "", fmt.Errorf("failed to create temp dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	path := filepath.Join(dir, unsafeFileChars.ReplaceAllString(unit.FragmentID, "_")+b.Ext)
	if err := os.WriteFile(path, []byte(unit.Source), 0o644); err != nil {
		return "", fmt.Errorf("failed to write unit: %w", err)
	}

	args := make([]string, 0, len(b.Command)+1)
	substituted := false
	for _, arg := range b.Command {
		if strings.Contains(arg, FilePlaceholder) {
			substituted = true
			arg = strings.ReplaceAll(arg, FilePlaceholder, path)
		}
		args = append(args, arg)
	}
	if !substituted {
		args = append(args, path)
	}

	ctxlog.FromContext(ctx).Debug("Running backend.", "fragment", unit.FragmentID, "args", args)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), fmt.Errorf("%w: %s exited with status %d", ErrRejected, args[0], exitErr.ExitCode())
	}
	if err != nil {
		return "", fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	return string(out), nil
}
