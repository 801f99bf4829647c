// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
	"go.uber.org/zap"

	torchlite "github.com/torchlite-io/torchlite-go"
	"github.com/torchlite-io/torchlite-go/torchhttp"
)

const defaultAddress = ":8080"

type ServerIn struct {
	fx.In
	Logger   *zap.Logger
	Viper    *viper.Viper
	Client   *torchlite.Client
	Tracing  candlelight.Tracing
	Gatherer prometheus.Gatherer
	LC       fx.Lifecycle
}

func runServer(in ServerIn) {
	router := mux.NewRouter()

	options := []otelmux.Option{
		otelmux.WithTracerProvider(in.Tracing.TracerProvider()),
		otelmux.WithPropagators(in.Tracing.Propagator()),
	}

	// Recovery sits outside the reporting middleware so a re-raised panic
	// is reported first, then turned into a response.
	router.Use(
		recovery.Middleware(recovery.WithStatusCode(http.StatusInternalServerError)),
		otelmux.Middleware(applicationName, options...),
		candlelight.EchoFirstTraceNodeInfo(in.Tracing, false),
		torchhttp.MuxMiddleware(in.Client),
	)

	router.HandleFunc("/demo/v1/divide", divideHandler(in.Client)).Methods(http.MethodGet)
	router.HandleFunc("/demo/v1/panic", panicHandler).Methods(http.MethodGet)
	router.Handle("/health", httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(in.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	address := in.Viper.GetString("servers.primary.address")
	if address == "" {
		address = defaultAddress
	}
	server := &http.Server{
		Addr:    address,
		Handler: router,
	}

	in.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			in.Logger.Info("starting server", zap.String("address", address))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					in.Logger.Error("server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// divideHandler reports handled errors explicitly; dividing by zero notifies
// through the request's scope and still answers the caller.
func divideHandler(client *torchlite.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, _ := strconv.Atoi(r.URL.Query().Get("a"))
		b, err := strconv.Atoi(r.URL.Query().Get("b"))
		if err != nil || b == 0 {
			client.SetContext(r.Context(), map[string]interface{}{
				"a": r.URL.Query().Get("a"),
				"b": r.URL.Query().Get("b"),
			})
			client.Notify(r.Context(), fmt.Errorf("cannot divide %d by %q", a, r.URL.Query().Get("b")))
			http.Error(w, "bad divisor", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, "%d\n", a/b)
	}
}

// panicHandler shows the unhandled path: the reporting middleware captures
// the panic and re-raises it for the recovery middleware.
func panicHandler(http.ResponseWriter, *http.Request) {
	panic("demo panic")
}
