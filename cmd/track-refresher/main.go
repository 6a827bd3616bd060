package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ShipCove/FreightTrack/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, closeFn, err := newRefresher(cfg, defaultRefresherFactories())
	if err != nil {
		panic(err)
	}
	if closeFn != nil {
		defer closeFn()
	}

	go func() {
		err := runRefresherHTTPServer(ctx, refresherHTTPOpts{
			httpAddr:    cfg.FreightTrack.RefresherHTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			ref:         r,
			cfg:         cfg,
		})
		if err != nil && err != http.ErrServerClosed {
			slog.Error("refresher http server", "error", err.Error())
		}
	}()

	if err := r.Run(ctx); err != nil && err != context.Canceled {
		panic(err)
	}
}
