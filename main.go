package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"opsboard/commerce"
	"opsboard/config"
	"opsboard/pkg/logger"
	"opsboard/router"
	"opsboard/socket"
	"opsboard/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	logger.Init()
	defer logger.Log.Sync()

	cfg := config.Load()

	// The store lives for the whole process: load once, write once so disk
	// matches memory from the start.
	st, err := store.Open(cfg.DataPath)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open store at %s: %v", cfg.DataPath, err)
	}

	hub := socket.NewHub(st)
	go hub.Run()

	client := commerce.NewClient(cfg.ShopURL, cfg.ShopKey, cfg.ShopSecret)
	rec := commerce.NewReconciler(client, st, hub, cfg.SyncInterval)
	if cfg.ShopURL != "" {
		go rec.Run(context.Background())
		logger.Sugar.Infof("Order sync enabled against %s every %s", cfg.ShopURL, cfg.SyncInterval)
	}

	srv := router.Setup(st, hub, rec, cfg.PublicDir)

	logger.Sugar.Infof("Dashboard backend listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, srv); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
