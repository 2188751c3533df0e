package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tablesender/internal/config"
	"tablesender/internal/models"
	"tablesender/internal/monitoring"
	"tablesender/internal/protocol"
	"tablesender/internal/state"
	"tablesender/internal/transport"
	"tablesender/internal/ui"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	serverAddr = flag.String("addr", "", "Fixed backend URL (ws://host:port); overrides discovery")
	httpPort   = flag.Int("http-port", 0, "Local HTTP facade port")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Resolve the fixed endpoint, if one is configured
	var fixed *transport.Endpoint
	if cfg.Server.URL != "" {
		ep, err := transport.ParseEndpoint(cfg.Server.URL)
		if err != nil {
			log.Fatalf("Failed to parse backend address: %v", err)
		}
		fixed = &ep
	}

	// Open the local snapshot cache; a broken cache is not fatal, the client
	// just starts empty.
	cache, err := state.OpenCache(cfg.Cache.Path)
	if err != nil {
		log.Printf("Snapshot cache unavailable, starting empty: %v", err)
		cache = nil
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	store := state.NewStore(cache, metrics)

	// Wire transport: discovery, connection manager, encoder
	disc := transport.NewDiscoverer(cfg.Discovery)
	manager := transport.NewManager(cfg.Reconnect, fixed, disc, metrics)
	encoder := protocol.NewEncoder(manager)

	// Local HTTP facade for the presentation layer
	facade := ui.NewServer(store, manager, encoder)

	// Route inbound frames into the store
	router := protocol.NewRouter(protocol.Handlers{
		Error: func(message string) {
			facade.SetAppError(message)
		},
		Menu:        store.ReplaceMenu,
		Ingredients: store.ReplaceIngredients,
		Orders: func(orders []models.Order, totalTables *int) {
			store.ReplaceOrders(orders)
			if totalTables != nil {
				store.SetTableCount(*totalTables)
			}
		},
	}, metrics)
	manager.OnFrame(router.Route)

	// Request fresh snapshots on every (re)connect; the backend is the single
	// source of truth and always sends full state.
	manager.OnStatus(func(st transport.Status) {
		if st.State == transport.StateConnected {
			go func() {
				encoder.RequestState()
				encoder.RequestMenu()
				encoder.RequestIngredients()
			}()
		}
	})

	manager.Connect()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: facade.Router(),
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		manager.Disconnect()
		if cache != nil {
			cache.Close()
		}
	}()

	log.Printf("Starting HTTP facade on port %d", cfg.HTTP.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *serverAddr != "" {
		cfg.Server.URL = *serverAddr
	}
	if *httpPort != 0 {
		cfg.HTTP.Port = *httpPort
	}
	return cfg, nil
}
