// Command radar discovers Solana meme tokens, ranks them by momentum and
// serves the results over HTTP and WebSocket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("radar exited with error")
		stop()
		os.Exit(1)
	}
}
