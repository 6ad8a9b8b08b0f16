// Tourbrowse browses the tour catalog through a local cache that serves
// fresh tours instantly and revalidates them in the background.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	c := &cli{}
	err := c.rootCmd().ExecuteContext(ctx)
	stop()

	if c.app != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if cerr := c.app.close(closeCtx); cerr != nil {
			fmt.Fprintln(os.Stderr, cerr)
		}
		cancel()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
