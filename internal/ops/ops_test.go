package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/denoland/deno-sub011/internal/permissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, grants map[permissions.Kind][]string) *Context {
	t.Helper()
	perms, err := permissions.NewContainer(grants, false, permissions.Options{})
	require.NoError(t, err)
	return &Context{Perms: perms, Resources: NewResources()}
}

func TestDispatchSyncDeniesWithoutPermission(t *testing.T) {
	table := NewTable()
	RegisterBuiltins(table)
	dispatcher := NewDispatcher(table)

	dir := t.TempDir()
	path := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	ctx := newTestContext(t, nil)
	_, err := dispatcher.DispatchSync(ctx, "op_read_file", Args{Values: map[string]any{"path": path}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Read")
}

func TestDispatchSyncAllowsWithGrantedPermission(t *testing.T) {
	table := NewTable()
	RegisterBuiltins(table)
	dispatcher := NewDispatcher(table)

	dir := t.TempDir()
	path := filepath.Join(dir, "ok.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	ctx := newTestContext(t, map[permissions.Kind][]string{permissions.KindRead: {dir + "/**"}})
	result, err := dispatcher.DispatchSync(ctx, "op_read_file", Args{Values: map[string]any{"path": path}})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), result)
}

func TestDispatchSyncPanicBecomesTermination(t *testing.T) {
	table := NewTable()
	table.MustRegister(Op{
		Name: "op_test_panic",
		Kind: Sync,
		SyncFn: func(ctx *Context, args Args) (any, error) {
			panic("boom")
		},
	})
	dispatcher := NewDispatcher(table)
	ctx := newTestContext(t, nil)

	_, err := dispatcher.DispatchSync(ctx, "op_test_panic", Args{})
	require.Error(t, err)
	var term *Termination
	require.ErrorAs(t, err, &term)
}

func TestDispatchAsyncResolvesFuture(t *testing.T) {
	table := NewTable()
	table.MustRegister(Op{
		Name: "op_test_async",
		Kind: Async,
		AsyncFn: func(ctx *Context, args Args) (any, error) {
			return 42, nil
		},
	})
	dispatcher := NewDispatcher(table)
	ctx := newTestContext(t, nil)

	future, err := dispatcher.DispatchAsync(ctx, "op_test_async", Args{})
	require.NoError(t, err)
	result, err := future.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestResourcesCloseReleasesAndRemoves(t *testing.T) {
	resources := NewResources()
	closed := false
	id := resources.Add(CloserFunc(func() error { closed = true; return nil }))

	require.NoError(t, resources.Close(id))
	assert.True(t, closed)

	err := resources.Close(id)
	require.Error(t, err)
}
