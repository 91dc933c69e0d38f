package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	// Companion-side settings.
	LocalDBPath string
	CacheDir    string
	GradingURL  string
	GatewayURL  string
	Matricula   string

	MaxWidth    int
	MaxHeight   int
	JPEGQuality int

	CORSOrigins []string
}

// FromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return Config{
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		LocalDBPath: envOr("LOCAL_DB_PATH", "./provafacil.db"),
		CacheDir:    envOr("CACHE_DIR", "./cache/normalized_images"),
		GradingURL:  envOr("GRADING_URL", "http://localhost:5000/corrigir"),
		GatewayURL:  envOr("GATEWAY_URL", "http://localhost:8080"),
		Matricula:   os.Getenv("MATRICULA"),

		MaxWidth:    envInt("MAX_WIDTH", 1200),
		MaxHeight:   envInt("MAX_HEIGHT", 1600),
		JPEGQuality: envInt("JPEG_QUALITY", 90),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:8081"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
