package git

import (
	"context"
	"os"
	"os/exec"
	"strconv"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
	"github.com/bryanwahyu/horusec-scan/internal/infra/executor"
)

// Cloner runs `git clone` as a child process.
type Cloner struct {
	Binary string
	// Depth > 0 makes a shallow clone.
	Depth int
}

func NewCloner(binary string, depth int) *Cloner {
	if binary == "" {
		binary = "git"
	}
	return &Cloner{Binary: binary, Depth: depth}
}

// Args returns the git arguments for cloning url into dest.
func (c *Cloner) Args(url, dest string) []string {
	args := []string{"clone"}
	if c.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(c.Depth))
	}
	// "--" keeps a hostile url from being read as an option
	return append(args, "--", url, dest)
}

// Clone blocks until git exits. A non-zero exit is reported in the result.
func (c *Cloner) Clone(ctx context.Context, url, dest string) (domain.ProcessResult, error) {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args(url, dest)...)
	// never wait for an interactive credential prompt
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	return executor.Run(ctx, cmd)
}
