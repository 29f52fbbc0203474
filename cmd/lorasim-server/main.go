// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loranet/lorasim-server/logger"
	"github.com/loranet/lorasim-server/progctx"
	"github.com/loranet/lorasim-server/registry"
	"github.com/loranet/lorasim-server/server"
)

func main() {
	addr := flag.String("addr", ":7900", "address to listen for simulated nodes on")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve Prometheus metrics on")
	logLevel := flag.String("log", "info", "log level: trace, debug, info, warn, error, fatal, off")
	flag.Parse()

	logger.SetLevel(parseLevel(*logLevel))

	ctx := progctx.New(context.Background())
	handleSignals(ctx)

	reg := registry.New()

	srv, err := server.New(ctx, *addr, reg)
	logger.PanicIfError(err, "failed to bind listener")

	go serveMetrics(ctx, *metricsAddr, reg)

	logger.Infof("lorasim-server listening on %s", srv.Addr())
	ctx.WaitAdd("accept-loop", 1)
	go func() {
		defer ctx.WaitDone("accept-loop")
		srv.Serve()
	}()

	ctx.Wait()
	os.Exit(0)
}

func serveMetrics(ctx *progctx.ProgCtx, addr string, reg *registry.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	ctx.Defer(func() {
		_ = httpSrv.Close()
	})

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warnf("metrics server exited: %v", err)
	}
}

func handleSignals(ctx *progctx.ProgCtx) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)

	ctx.WaitAdd("handleSignals", 1)
	go func() {
		defer ctx.WaitDone("handleSignals")
		for {
			select {
			case sig := <-c:
				logger.Infof("signal received: %v", sig)
				ctx.Cancel(sig)
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func parseLevel(s string) logger.Level {
	switch s {
	case "trace":
		return logger.TraceLevel
	case "debug":
		return logger.DebugLevel
	case "info":
		return logger.InfoLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	case "fatal":
		return logger.FatalLevel
	case "off":
		return logger.OffLevel
	default:
		return logger.DefaultLevel
	}
}
