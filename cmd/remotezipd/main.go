// remotezipd is the demo HTTP server binary wiring the proxy relay,
// archive, and health endpoint packages over a single ServeMux, the way
// the teacher's root main.go wires its own endpoint.AddXEndpoints(mux)
// calls.
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/madflojo/tasks"

	"github.com/remotezip/remotezip/internal/config"
	"github.com/remotezip/remotezip/internal/endpoint"
	"github.com/remotezip/remotezip/internal/engine"
	"github.com/remotezip/remotezip/internal/logger"
	"github.com/remotezip/remotezip/internal/proxyclient"
	"github.com/remotezip/remotezip/internal/server"
)

var log = logger.Scoped("remotezipd")

func main() {
	configPath := flag.String("config", "", "path to a config file (optional)")
	flag.Parse()

	policy, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		panic(err)
	}
	logger.SetMinLevel(logger.ParseLevel(policy.LogLevel))

	proxyBase := "http://localhost" + policy.ListenAddr + "/v0/proxy"

	eng, err := engine.New(policy, proxyBase)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		panic(err)
	}
	registry := engine.NewRegistry()

	sweeper := tasks.New()
	defer sweeper.Stop()
	if _, err := sweeper.Add(&tasks.Task{
		Interval:          policy.HandleSweepInterval,
		RunSingleInstance: true,
		TaskFunc: func() error {
			evicted := registry.Sweep(policy.HandleTTL)
			if evicted > 0 {
				log.Debug("swept expired archive handles", "evicted", evicted)
			}
			return nil
		},
	}); err != nil {
		log.Error("failed to schedule handle sweep", "error", err)
		panic(err)
	}

	mux := http.NewServeMux()

	proxyclient.NewRelay(policy).AddEndpoints(mux)
	endpoint.NewArchiveAPI(policy, eng, registry).AddEndpoints(mux)
	endpoint.NewHealthAPI(registry).AddEndpoints(mux)

	handler := server.WithRequestContext(mux)

	httpServer := &http.Server{
		Addr:         policy.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // media/zip streaming can run long
	}

	log.Info("remotezipd listening", "addr", policy.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server stopped", "error", err)
		panic(err)
	}
}
