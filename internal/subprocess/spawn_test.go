package subprocess

import (
	"bufio"
	"runtime"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnPipedStdoutAndWait(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix echo invocation")
	}
	p, err := Spawn(SpawnOptions{
		Command: "echo",
		Args:    []string{"hello"},
		Stdout:  StdioPiped,
		Stderr:  StdioNull,
		Stdin:   StdioNull,
	})
	require.NoError(t, err)

	scanner := bufio.NewScanner(p.Stdout())
	require.True(t, scanner.Scan())
	assert.Equal(t, "hello", scanner.Text())

	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestSpawnSignalZeroLivenessProbe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix sleep invocation")
	}
	p, err := Spawn(SpawnOptions{
		Command: "sleep",
		Args:    []string{"5"},
		Stdout:  StdioNull,
		Stderr:  StdioNull,
		Stdin:   StdioNull,
	})
	require.NoError(t, err)
	defer p.Kill()

	require.NoError(t, p.Signal(syscall.Signal(0)))

	_, exited := p.TryWait()
	assert.False(t, exited)
}
