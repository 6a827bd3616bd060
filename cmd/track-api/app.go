package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ShipCove/FreightTrack/internal/api/trackapi"
	"github.com/ShipCove/FreightTrack/internal/broker/messages"
	"github.com/ShipCove/FreightTrack/internal/orchestrator"
	"github.com/ShipCove/FreightTrack/internal/services/costing"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type trackAPIOpts struct {
	httpAddr    string
	swaggerPath string

	trackingTopic string
	shipmentTopic string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runTrackAPI(ctx context.Context, opts trackAPIOpts, svc *orchestrator.Service, costSvc *costing.Service, trackingConsumer, shipmentConsumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	trackapi.New(svc).Routes(r)

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	go func() {
		slog.Info("kafka consumer started", "topic", opts.trackingTopic, "group", opts.consumerGroup)
		_ = trackingConsumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.TrackingUpdated
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			return svc.RefreshCache(ctx, m.OrganizationID, m.TrackingNumber)
		})
	}()

	go func() {
		slog.Info("kafka consumer started", "topic", opts.shipmentTopic, "group", opts.consumerGroup)
		_ = shipmentConsumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.ShipmentChanged
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			return costSvc.Recompute(ctx, m.ShipmentID)
		})
	}()

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
