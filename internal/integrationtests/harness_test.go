package integration_tests

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fragc/internal/app"
	"github.com/specialistvlad/fragc/internal/hcl"
	"github.com/specialistvlad/fragc/internal/testutil"
)

// harness runs the application against a temporary project tree.
type harness struct {
	dir  string
	logs *testutil.SafeBuffer
	app  *app.App
	cfg  *app.Config
}

// newHarness writes files (which must include project.hcl) and builds an
// app for them. mutate may adjust the config before the app is created.
func newHarness(t *testing.T, files map[string]string, mutate func(*app.Config)) *harness {
	t.Helper()

	dir := testutil.TempTree(t, files)
	cfg, err := app.NewConfig(app.Config{
		ProjectPath:   filepath.Join(dir, "project.hcl"),
		LogLevel:      "debug",
		LogFormat:     "text",
		WorkerCount:   4,
		WatchDebounce: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	logs := &testutil.SafeBuffer{}
	h := &harness{
		dir:  dir,
		logs: logs,
		cfg:  cfg,
		app:  app.NewApp(logs, cfg, hcl.NewLoader()),
	}
	t.Cleanup(func() {
		if os.Getenv("FRAGC_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return h
}

// runWatch starts the app in watch mode and waits until the watcher is up.
func (h *harness) runWatch(t *testing.T) {
	t.Helper()
	h.cfg.Watch = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), "Watching for changes")
	}, 5*time.Second, 10*time.Millisecond, "watcher did not start")
}

func (h *harness) path(rel string) string {
	return filepath.Join(h.dir, filepath.FromSlash(rel))
}

func (h *harness) write(t *testing.T, rel, content string) {
	t.Helper()
	testutil.WriteFiles(t, h.dir, map[string]string{rel: content})
}

func (h *harness) read(rel string) string {
	data, err := os.ReadFile(h.path(rel))
	if err != nil {
		return ""
	}
	return string(data)
}

// eventuallyContains waits until the file at rel contains want.
func (h *harness) eventuallyContains(t *testing.T, rel, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(h.read(rel), want)
	}, 5*time.Second, 20*time.Millisecond, "%s never contained %q; logs:\n%s", rel, want, h.logs.String())
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
