package horusec

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
	"github.com/bryanwahyu/horusec-scan/internal/infra/executor"
)

const (
	ModeLocal  = "local"
	ModeDocker = "docker"

	containerSource = "/src"
	containerOutput = "/out"
	containerPrefix = "horusec-"

	// killTimeout bounds `docker kill` once the engine deadline fired.
	killTimeout = 30 * time.Second
)

// Runner invokes `horusec start` against a workspace, either directly or
// inside a container.
type Runner struct {
	Binary      string
	Mode        string
	DockerImage string
	// Timeout <= 0 means the engine runs until it exits on its own.
	Timeout   time.Duration
	ExtraArgs []string
	// DockerBinary is the docker CLI used in docker mode.
	DockerBinary string
}

func NewRunner(binary, mode, image string, timeout time.Duration, extra []string) *Runner {
	if binary == "" {
		binary = "horusec"
	}
	if mode == "" {
		mode = ModeLocal
	}
	return &Runner{Binary: binary, Mode: mode, DockerImage: image, Timeout: timeout, ExtraArgs: extra, DockerBinary: "docker"}
}

// startArgs builds `start -p <path> -o json [-O <file>] extra...`.
func (r *Runner) startArgs(path, outputFile string) []string {
	args := []string{"start", "-p", path, "-o", "json"}
	if outputFile != "" {
		args = append(args, "-O", outputFile)
	}
	return append(args, r.ExtraArgs...)
}

// Command returns the program and arguments used for req. In docker mode the
// container gets a unique name.
func (r *Runner) Command(req domain.EngineRequest) (string, []string, error) {
	return r.command(req, containerPrefix+uuid.NewString())
}

func (r *Runner) command(req domain.EngineRequest, container string) (string, []string, error) {
	switch r.Mode {
	case ModeLocal:
		return r.Binary, r.startArgs(req.Workspace, req.OutputFile), nil

	case ModeDocker:
		args := []string{"run", "--rm", "--name", container,
			"-v", fmt.Sprintf("%s:%s", req.Workspace, containerSource),
		}
		outputFile := ""
		if req.OutputFile != "" {
			args = append(args, "-v", fmt.Sprintf("%s:%s", filepath.Dir(req.OutputFile), containerOutput))
			outputFile = containerOutput + "/" + filepath.Base(req.OutputFile)
		}
		args = append(args, r.DockerImage, r.Binary)
		args = append(args, r.startArgs(containerSource, outputFile)...)
		return r.dockerBinary(), args, nil

	default:
		return "", nil, fmt.Errorf("unsupported engine mode: %s", r.Mode)
	}
}

func (r *Runner) dockerBinary() string {
	if r.DockerBinary == "" {
		return "docker"
	}
	return r.DockerBinary
}

// Run blocks until the engine exits or the configured timeout fires. In
// docker mode cancellation also kills the container, not only the CLI.
func (r *Runner) Run(ctx context.Context, req domain.EngineRequest) (domain.ProcessResult, error) {
	container := containerPrefix + uuid.NewString()
	name, args, err := r.command(req, container)
	if err != nil {
		return domain.ProcessResult{}, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if r.Mode == ModeDocker {
		cmd.Cancel = func() error {
			r.killContainer(container)
			return cmd.Process.Kill()
		}
	}
	return executor.Run(ctx, cmd)
}

func (r *Runner) killContainer(container string) {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	// the container may already be gone; the CLI kill below still runs
	_ = exec.CommandContext(ctx, r.dockerBinary(), "kill", container).Run()
}
