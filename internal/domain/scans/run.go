package scans

import "time"

// ProcessResult captures one child process execution. Stdout and Stderr are
// captured separately regardless of the output strategy.
type ProcessResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// EngineRequest untuk Engine
type EngineRequest struct {
	// Workspace is the cloned repository directory.
	Workspace string
	// OutputFile is set when the engine must write its report to a file.
	OutputFile string
}
