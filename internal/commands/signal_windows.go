//go:build windows

package commands

import (
	"context"
	"os"
	"os/signal"
)

// notifyShutdown returns a context cancelled on interrupt.
// On Windows, only os.Interrupt is available (SIGTERM is not supported).
func notifyShutdown(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}
