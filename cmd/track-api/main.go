package main

import (
	"context"
	"net/http"
)

func main() {
	app := mustBootstrapTrackAPI()
	defer app.Close()

	err := runTrackAPI(app.ctx, app.opts, app.svc, app.costSvc, app.trackingConsumer, app.shipmentConsumer)
	if err != nil && err != context.Canceled && err != http.ErrServerClosed {
		panic(err)
	}
}
