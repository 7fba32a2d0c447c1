package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

// ForcedApprover implements the Approver interface for forced (non-interactive)
// approval. It displays a countdown and automatically approves afterwards,
// used when the --force flag is provided.
type ForcedApprover struct {
	verbose bool
	output  io.Writer
	sleepFn func(time.Duration)
}

// NewForcedApprover creates a new ForcedApprover writing to stderr.
func NewForcedApprover(verbose bool) movierank.Approver {
	return &ForcedApprover{
		verbose: verbose,
		output:  os.Stderr,
		sleepFn: time.Sleep,
	}
}

// RequestApproval displays a countdown and automatically approves after it.
func (a *ForcedApprover) RequestApproval(ctx context.Context, dbName string) (bool, error) {
	fmt.Fprintln(a.output)
	fmt.Fprintf(a.output, "!!! DANGER: dropping all movierank tables in database '%s' !!!\n", dbName)
	fmt.Fprintln(a.output, "Movies, users, ratings, tags, and every stored embedding will be deleted.")
	fmt.Fprintln(a.output)

	countdownSeconds := int(movierank.DefaultForceApprovalCountdown.Seconds())
	for i := countdownSeconds; i > 0; i-- {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
			fmt.Fprintf(a.output, "\rDropping in: %d seconds... (Press Ctrl+C to cancel)", i)
			a.sleepFn(1 * time.Second)
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(a.output, "\r✓ Proceeding with schema drop...                              \n")
	return true, nil
}

// Verify ForcedApprover implements the Approver interface at compile time
var _ movierank.Approver = (*ForcedApprover)(nil)
