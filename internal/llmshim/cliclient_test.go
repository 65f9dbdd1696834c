package llmshim

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBinary writes a tiny shell script that echoes its -p argument,
// standing in for a real model CLI.
func fakeBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binary script is posix-shell only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-claude")
	script := "#!/bin/sh\nwhile [ \"$1\" != \"-p\" ]; do shift; done\nshift\necho \"$1\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestCLIClientCompleteReturnsTrimmedStdout(t *testing.T) {
	client := NewCLIClient(fakeBinary(t), "")
	out, err := client.Complete(context.Background(), `{"summary":"ok"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
}

func TestNewCLIClientDefaultsBinaryName(t *testing.T) {
	client := NewCLIClient("", "claude-3")
	assert.Equal(t, "claude-3", client.Model)
}

func TestCompleteMissingBinaryReportsRemediation(t *testing.T) {
	client := &CLIClient{BinaryPath: filepath.Join(t.TempDir(), "does-not-exist")}
	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
