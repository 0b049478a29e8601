package ai

import "context"

// Client turns a prompt-ready report into an analysis text.
type Client interface {
	Summarize(ctx context.Context, report []byte) (string, error)
}
