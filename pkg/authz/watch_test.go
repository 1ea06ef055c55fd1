package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

func writeRoleFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func startWatcher(t *testing.T, engine *Engine, path string) {
	t.Helper()
	watcher, err := NewTableWatcher(engine, path, observability.NewNopLogger(), newTestMetrics())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestTableWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	writeRoleFile(t, path, "roles:\n  MEMBER: [\"task:read\"]\n")

	table, err := LoadRoleTableFile(path)
	require.NoError(t, err)
	engine := NewStandardEngine(table, MemoryCacheConfig{TTL: time.Minute, Size: 16},
		DefaultConfig(), observability.NewNopLogger(), newTestMetrics())
	startWatcher(t, engine, path)

	ctx := context.Background()
	allowed, _, err := engine.Authorize(ctx, memberIdentity(), "task:update", nil)
	require.NoError(t, err)
	require.False(t, allowed)

	writeRoleFile(t, path, "roles:\n  MEMBER: [\"task:read\", \"task:update\"]\n")

	assert.Eventually(t, func() bool {
		allowed, _, err := engine.Authorize(ctx, memberIdentity(), "task:update", nil)
		return err == nil && allowed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestTableWatcherKeepsOldTableOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	writeRoleFile(t, path, "roles:\n  MEMBER: [\"task:read\"]\n")

	table, err := LoadRoleTableFile(path)
	require.NoError(t, err)
	engine := NewStandardEngine(table, MemoryCacheConfig{TTL: time.Minute, Size: 16},
		DefaultConfig(), observability.NewNopLogger(), newTestMetrics())
	startWatcher(t, engine, path)

	writeRoleFile(t, path, "roles: {broken yaml\n")

	// The previous table must keep serving; give the watcher a moment to
	// have seen the event.
	time.Sleep(200 * time.Millisecond)

	allowed, _, err := engine.Authorize(context.Background(), memberIdentity(), "task:read", nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTableWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	writeRoleFile(t, path, "roles:\n  MEMBER: [\"task:read\"]\n")

	table, err := LoadRoleTableFile(path)
	require.NoError(t, err)
	engine := NewStandardEngine(table, MemoryCacheConfig{TTL: time.Minute, Size: 16},
		DefaultConfig(), observability.NewNopLogger(), newTestMetrics())
	startWatcher(t, engine, path)

	writeRoleFile(t, filepath.Join(dir, "unrelated.yaml"), "roles:\n  MEMBER: [\"*:*\"]\n")
	time.Sleep(200 * time.Millisecond)

	allowed, _, err := engine.Authorize(context.Background(), memberIdentity(), "project:delete", nil)
	require.NoError(t, err)
	assert.False(t, allowed)
}
