package main

import (
	"context"
	"os"

	intos "github.com/akuity/npmauth/internal/os"
	"github.com/akuity/npmauth/pkg/logging"
)

func main() {
	ctx, cancel := intos.NotifyOnShutdown(context.Background())
	err := Execute(ctx)
	cancel()
	if err != nil {
		logger := logging.LoggerFromContext(ctx)
		logger.Error(err, "")
		_ = logger.Sync()
		os.Exit(1)
	}
}
