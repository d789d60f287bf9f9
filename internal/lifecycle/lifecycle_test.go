package lifecycle

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denoland/deno-sub011/internal/modpath"
)

func TestRunSkipsWithoutApproval(t *testing.T) {
	tmp := t.TempDir()
	r := NewRunner(modpath.AbsolutePathFromUpstream(tmp), func(string) bool { return false }, nil, nil)

	err := r.Run(PackageScripts{Name: "left-pad", Dir: tmp, Scripts: map[string]string{"postinstall": "true"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"left-pad"}, r.Warnings())

	msg, err := r.FlushWarnings()
	require.NoError(t, err)
	assert.Contains(t, msg, "left-pad")
	assert.FileExists(t, filepath.Join(tmp, scriptsWarnedFile))
}

func TestRunExecutesApprovedScriptAndMarksComplete(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a sh-specific marker file script")
	}
	tmp := t.TempDir()
	marker := filepath.Join(tmp, "ran")
	r := NewRunner(modpath.AbsolutePathFromUpstream(tmp), func(string) bool { return true }, map[string]string{"loglevel": "silent"}, nil)

	err := r.Run(PackageScripts{
		Name: "left-pad",
		Dir:  tmp,
		Scripts: map[string]string{
			"postinstall": "touch " + marker,
		},
	}, nil)
	require.NoError(t, err)
	assert.FileExists(t, marker)

	// Second run is a no-op: the completion marker short-circuits it.
	require.NoError(t, os.Remove(marker))
	err = r.Run(PackageScripts{Name: "left-pad", Dir: tmp, Scripts: map[string]string{"postinstall": "touch " + marker}}, nil)
	require.NoError(t, err)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr))
}
