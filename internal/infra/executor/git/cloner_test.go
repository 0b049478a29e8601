package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGit writes a script that records its arguments and prompt setting.
func fakeGit(t *testing.T, body string) (bin, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	bin = filepath.Join(dir, "git")
	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$@\" > " + argsFile + "\n" +
		"echo \"prompt=$GIT_TERMINAL_PROMPT\" >> " + argsFile + "\n" +
		body
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsFile
}

func TestArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"clone", "--", "https://github.com/org/repo.git", "/tmp/ws"},
		NewCloner("", 0).Args("https://github.com/org/repo.git", "/tmp/ws"))
	assert.Equal(t,
		[]string{"clone", "--depth", "1", "--", "https://github.com/org/repo.git", "/tmp/ws"},
		NewCloner("git", 1).Args("https://github.com/org/repo.git", "/tmp/ws"))
}

func TestCloneSuccess(t *testing.T) {
	// last argument is the destination
	bin, argsFile := fakeGit(t, "eval last=\\${$#}\nmkdir -p \"$last\" && touch \"$last/README.md\"\necho cloned\n")
	dest := filepath.Join(t.TempDir(), "ws")

	res, err := NewCloner(bin, 0).Clone(context.Background(), "https://github.com/org/repo.git", dest)
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
	assert.Equal(t, "cloned\n", string(res.Stdout))
	assert.FileExists(t, filepath.Join(dest, "README.md"))

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(recorded)), "\n")
	assert.Equal(t, []string{"clone", "--", "https://github.com/org/repo.git", dest, "prompt=0"}, lines)
}

func TestCloneFailureReportsExitCode(t *testing.T) {
	bin, _ := fakeGit(t, "echo \"fatal: repository not found\" >&2\nexit 128\n")

	res, err := NewCloner(bin, 0).Clone(context.Background(), "https://github.com/org/missing.git", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 128, res.ExitCode)
	assert.Contains(t, string(res.Stderr), "repository not found")
}
