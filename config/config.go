package config

import (
	"os"
	"strings"
	"time"

	"opsboard/pkg/logger"
)

// Config carries everything read from the environment at boot.
type Config struct {
	Addr         string
	DataPath     string
	PublicDir    string
	ShopURL      string
	ShopKey      string
	ShopSecret   string
	SyncInterval time.Duration
}

// Load reads the process environment. godotenv has already been given a
// chance to populate it in main.
func Load() Config {
	cfg := Config{
		Addr:         ":" + getenv("PORT", "3000"),
		DataPath:     getenv("DATA_PATH", "data.json"),
		PublicDir:    getenv("PUBLIC_DIR", "public"),
		ShopURL:      getenv("SHOP_URL", ""),
		ShopKey:      getenv("SHOP_KEY", ""),
		ShopSecret:   getenv("SHOP_SECRET", ""),
		SyncInterval: 5 * time.Minute,
	}

	if raw := getenv("SYNC_INTERVAL", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			logger.Sugar.Fatalf("Invalid SYNC_INTERVAL %q: %v", raw, err)
		}
		cfg.SyncInterval = d
	}

	if cfg.ShopURL == "" {
		logger.Sugar.Info("SHOP_URL not set, order sync disabled")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
