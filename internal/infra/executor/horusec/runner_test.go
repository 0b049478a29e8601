package horusec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

const report = `{"analysisVulnerabilities":[{"vulnerabilities":{"severity":"HIGH"}}]}`

// fakeHorusec prints the report to stdout, or writes it to the -O path.
func fakeHorusec(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "horusec")
	script := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-O" ]; then out="$2"; fi
  shift
done
echo "horusec: analysis finished" >&2
if [ -n "$out" ]; then
  printf '%s' '` + report + `' > "$out"
else
  printf '%s' '` + report + `'
fi
`
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin
}

func TestCommandLocal(t *testing.T) {
	r := NewRunner("/usr/bin/horusec", ModeLocal, "", 0, []string{"-D"})

	name, args, err := r.Command(domain.EngineRequest{Workspace: "/tmp/ws"})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/horusec", name)
	assert.Equal(t, []string{"start", "-p", "/tmp/ws", "-o", "json", "-D"}, args)

	_, args, err = r.Command(domain.EngineRequest{Workspace: "/tmp/ws", OutputFile: "/tmp/report.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "-p", "/tmp/ws", "-o", "json", "-O", "/tmp/report.json", "-D"}, args)
}

func TestCommandDocker(t *testing.T) {
	r := NewRunner("horusec", ModeDocker, "horuszup/horusec-cli:latest", 0, nil)

	name, args, err := r.command(domain.EngineRequest{Workspace: "/tmp/ws", OutputFile: "/var/tmp/horusec-report-1.json"}, "horusec-1")
	require.NoError(t, err)
	assert.Equal(t, "docker", name)
	assert.Equal(t, []string{
		"run", "--rm", "--name", "horusec-1",
		"-v", "/tmp/ws:/src",
		"-v", "/var/tmp:/out",
		"horuszup/horusec-cli:latest", "horusec",
		"start", "-p", "/src", "-o", "json", "-O", "/out/horusec-report-1.json",
	}, args)
}

func TestCommandDockerNamesEachContainer(t *testing.T) {
	r := NewRunner("horusec", ModeDocker, "horuszup/horusec-cli:latest", 0, nil)
	req := domain.EngineRequest{Workspace: "/tmp/ws"}

	_, first, err := r.Command(req)
	require.NoError(t, err)
	_, second, err := r.Command(req)
	require.NoError(t, err)

	require.Equal(t, "--name", first[2])
	assert.True(t, strings.HasPrefix(first[3], containerPrefix))
	assert.NotEqual(t, first[3], second[3])
}

func TestCommandUnknownMode(t *testing.T) {
	_, _, err := NewRunner("horusec", "k8s", "", 0, nil).Command(domain.EngineRequest{Workspace: "/tmp/ws"})
	assert.Error(t, err)
}

func TestRunStdout(t *testing.T) {
	r := NewRunner(fakeHorusec(t), ModeLocal, "", 0, nil)

	res, err := r.Run(context.Background(), domain.EngineRequest{Workspace: t.TempDir()})
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
	assert.JSONEq(t, report, string(res.Stdout))
	assert.Contains(t, string(res.Stderr), "analysis finished")
}

func TestRunOutputFile(t *testing.T) {
	r := NewRunner(fakeHorusec(t), ModeLocal, "", 0, nil)
	out := filepath.Join(t.TempDir(), "report.json")

	res, err := r.Run(context.Background(), domain.EngineRequest{Workspace: t.TempDir(), OutputFile: out})
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
	assert.Empty(t, res.Stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, report, string(data))
}

func TestRunTimeout(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "horusec")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 5\n"), 0o755))

	r := NewRunner(bin, ModeLocal, "", 100*time.Millisecond, nil)
	res, err := r.Run(context.Background(), domain.EngineRequest{Workspace: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestRunDockerTimeoutKillsContainer(t *testing.T) {
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls")
	docker := filepath.Join(dir, "docker")
	script := "#!/bin/sh\necho \"$@\" >> " + calls + "\nif [ \"$1\" = run ]; then exec sleep 5; fi\n"
	require.NoError(t, os.WriteFile(docker, []byte(script), 0o755))

	r := NewRunner("horusec", ModeDocker, "horuszup/horusec-cli:latest", 100*time.Millisecond, nil)
	r.DockerBinary = docker
	res, err := r.Run(context.Background(), domain.EngineRequest{Workspace: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)

	data, err := os.ReadFile(calls)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	run := strings.Fields(lines[0])
	require.Equal(t, "--name", run[2])
	assert.Equal(t, "kill "+run[3], lines[1])
}
