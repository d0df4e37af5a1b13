package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	fleetreplay "github.com/theoremus-urban-solutions/fleet-replay"
	"github.com/theoremus-urban-solutions/fleet-replay/config"
	"github.com/theoremus-urban-solutions/fleet-replay/history"
	"github.com/theoremus-urban-solutions/fleet-replay/internal"
	"github.com/theoremus-urban-solutions/fleet-replay/store"
)

func main() {
	mode := flag.String("mode", "serve", "serve|oneshot")
	device := flag.String("device", "", "device id (IMEI) for oneshot mode")
	from := flag.Int64("from", 0, "window start, epoch seconds or milliseconds")
	to := flag.Int64("to", 0, "window end, epoch seconds or milliseconds")
	force := flag.Bool("force", false, "bypass the cache coverage check")
	snapshot := flag.String("snapshot", "", "local store snapshot path (overrides config)")
	flag.Parse()

	internal.InitLogging()
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using process environment")
	}
	if err := config.LoadAppConfig(); err != nil {
		log.Printf("no config.yml, using defaults: %v", err)
	}
	cfg := config.Config
	if *snapshot != "" {
		cfg.Cache.SnapshotPath = *snapshot
	}
	if p := os.Getenv("PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}

	cache, err := openStore(cfg)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer cache.Close()

	client := history.NewClient(cfg.API)
	coordinator := history.NewCoordinator(cache, client, cfg)

	switch *mode {
	case "oneshot":
		if *device == "" || *from == 0 || *to == 0 {
			log.Fatal("oneshot mode requires -device, -from and -to")
		}
		res, err := coordinator.GetHistory(context.Background(), *device, *from, *to,
			history.Options{ForceFetch: *force})
		if err != nil {
			log.Fatalf("history fetch: %v", err)
		}
		buf, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			log.Fatalf("encoding result: %v", err)
		}
		fmt.Println(string(buf))
	case "serve":
		server := fleetreplay.NewServer(cfg, coordinator, cache)
		server.Start()
		server.HandleGracefulShutdown()
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

// openStore picks the Postgres backend when DATABASE_URL is set, otherwise
// the snapshot-backed local store.
func openStore(cfg config.AppConfig) (store.Store, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		log.Printf("using SQL sample store")
		return store.OpenSQL(dbURL)
	}
	log.Printf("using local sample store (snapshot: %q)", cfg.Cache.SnapshotPath)
	return store.Open(cfg.Cache.SnapshotPath), nil
}
