// Command drtune retrains DataRobot models: it builds a model from a blueprint
// in one project, carries the model's advanced tuning to the same blueprint in
// a second project, unlocks the holdout and requests a frozen model.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
