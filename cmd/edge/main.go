// Command edge runs the public HTTP front door (spec §2): signature
// verification, per-identity rate limiting, and forwarding to the engine
// over internal/enginerpc. It never touches the catalog, strategy, or deal
// store directly; every domain decision is the engine's.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"negotiation-engine/internal/authsig"
	"negotiation-engine/internal/config"
	"negotiation-engine/internal/edgeserver"
	"negotiation-engine/internal/enginerpc"
	"negotiation-engine/internal/obslog"
	"negotiation-engine/internal/ratelimit"
)

func main() {
	cfg, err := config.Load("negotiation-engine", []string{".", "/etc/negotiation-engine"}, ".env")
	if err != nil {
		log.Fatalf("edge: load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger := obslog.NewEdgeLogger(level)
	metrics := obslog.NewMetrics()

	verifier := authsig.New(clock.New())

	var store ratelimit.Store
	if cfg.RateLimitLRUCapacity > 0 {
		lruStore, err := ratelimit.NewLRUStore(cfg.RateLimitLRUCapacity)
		if err != nil {
			log.Fatalf("edge: init rate limit lru store: %v", err)
		}
		store = lruStore
	} else {
		store = ratelimit.NewMapStore()
	}
	limiter := ratelimit.New(store, int64(cfg.RateLimitWindowSeconds), int64(cfg.RateLimitMaxRequests), clock.New())

	client := enginerpc.NewClient(cfg.EngineRPCAddr, 30*time.Second)

	srv := edgeserver.New(client, verifier, limiter, logger, metrics, edgeserver.Options{
		CryptoEnabled: cfg.CryptoEnabled,
	})

	log.Printf("edge listening on %s, forwarding to engine at %s", cfg.EdgeBindAddr, cfg.EngineRPCAddr)
	if err := http.ListenAndServe(cfg.EdgeBindAddr, srv.Router()); err != nil {
		logrus.WithError(err).Fatal("edge: server exited")
	}
}
